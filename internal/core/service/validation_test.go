package service

import (
	"context"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/ecodeli/delivery-engine/internal/core/domain"
	"github.com/ecodeli/delivery-engine/internal/core/ports"
)

// seedInTransit returns a delivery ready for validation plus its code.
func seedInTransit(t *testing.T, env *testEnv) (*domain.Delivery, string) {
	t.Helper()
	d := seedAcceptedDelivery(t, env)
	advance(t, env, d, domain.DeliveryInTransit)
	stored, err := env.deliveries.FindByID(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("load delivery: %v", err)
	}
	return stored, stored.ValidationCode
}

func TestValidationService_Verify(t *testing.T) {
	env := newTestEnv(MatchingConfig{})
	ctx := context.Background()
	d, code := seedInTransit(t, env)

	proof := ports.ProofInput{
		RecipientName: "M. Dupont",
		Location:      &domain.Coordinates{Lat: 45.7640, Lng: 4.8357},
	}
	if err := env.validation.Verify(ctx, d.ID, code, proof); err != nil {
		t.Fatalf("verify: %v", err)
	}

	stored, _ := env.deliveries.FindByID(ctx, d.ID)
	if stored.Status != domain.DeliveryDelivered {
		t.Errorf("status: got %s, want delivered", stored.Status)
	}
	if !stored.CodeConsumed {
		t.Error("code must be consumed")
	}
	if stored.Proof == nil || stored.Proof.Method != domain.ProofMethodCode ||
		stored.Proof.RecipientName != "M. Dupont" {
		t.Errorf("proof: %+v", stored.Proof)
	}
	if stored.DeliveredAt == nil {
		t.Error("delivered_at must be set")
	}
}

func TestValidationService_WrongCodeIsOpaque(t *testing.T) {
	env := newTestEnv(MatchingConfig{})
	ctx := context.Background()
	d, code := seedInTransit(t, env)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	err := env.validation.Verify(ctx, d.ID, wrong, ports.ProofInput{})
	if !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("got %v, want ErrValidationFailed", err)
	}

	// Nothing changed; the real code still works.
	stored, _ := env.deliveries.FindByID(ctx, d.ID)
	if stored.Status != domain.DeliveryInTransit || stored.CodeConsumed {
		t.Errorf("state changed on bad code: %s consumed=%v", stored.Status, stored.CodeConsumed)
	}
	if err := env.validation.Verify(ctx, d.ID, code, ports.ProofInput{}); err != nil {
		t.Errorf("correct code after failed attempt: %v", err)
	}
}

func TestValidationService_ReplayFails(t *testing.T) {
	env := newTestEnv(MatchingConfig{})
	ctx := context.Background()
	d, code := seedInTransit(t, env)

	if err := env.validation.Verify(ctx, d.ID, code, ports.ProofInput{}); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	// The same code presented again reads exactly like a wrong code.
	err := env.validation.Verify(ctx, d.ID, code, ports.ProofInput{})
	if !errors.Is(err, domain.ErrValidationFailed) {
		t.Errorf("replay: got %v, want ErrValidationFailed", err)
	}
}

func TestValidationService_WrongStateIsOpaque(t *testing.T) {
	env := newTestEnv(MatchingConfig{})
	ctx := context.Background()
	d := seedAcceptedDelivery(t, env)
	stored, _ := env.deliveries.FindByID(ctx, d.ID)

	// Still pending: even the correct code is rejected.
	err := env.validation.Verify(ctx, d.ID, stored.ValidationCode, ports.ProofInput{})
	if !errors.Is(err, domain.ErrValidationFailed) {
		t.Errorf("got %v, want ErrValidationFailed", err)
	}
}

func TestValidationService_VerifyNFC(t *testing.T) {
	env := newTestEnv(MatchingConfig{})
	ctx := context.Background()
	d, _ := seedInTransit(t, env)

	if err := env.validation.VerifyNFC(ctx, d.ID, "", ports.ProofInput{}); !errors.Is(err, domain.ErrValidationFailed) {
		t.Errorf("empty tag: got %v, want ErrValidationFailed", err)
	}

	if err := env.validation.VerifyNFC(ctx, d.ID, "tag-42", ports.ProofInput{RecipientName: "Mme Martin"}); err != nil {
		t.Fatalf("nfc verify: %v", err)
	}
	stored, _ := env.deliveries.FindByID(ctx, d.ID)
	if stored.Status != domain.DeliveryDelivered || !stored.CodeConsumed {
		t.Errorf("after nfc: %s consumed=%v", stored.Status, stored.CodeConsumed)
	}
	if stored.Proof == nil || stored.Proof.Method != domain.ProofMethodNFC {
		t.Errorf("proof method: %+v", stored.Proof)
	}

	// The numeric path is spent too.
	if err := env.validation.VerifyNFC(ctx, d.ID, "tag-42", ports.ProofInput{}); !errors.Is(err, domain.ErrValidationFailed) {
		t.Errorf("nfc replay: got %v, want ErrValidationFailed", err)
	}
}

func TestValidationService_Invalidate(t *testing.T) {
	env := newTestEnv(MatchingConfig{})
	ctx := context.Background()
	d, code := seedInTransit(t, env)

	if err := env.validation.Invalidate(ctx, d.ID, "carrier1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("non-admin: got %v, want ErrUnauthorized", err)
	}
	if err := env.validation.Invalidate(ctx, d.ID, "admin1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	stored, _ := env.deliveries.FindByID(ctx, d.ID)
	if stored.ValidationCode != "" {
		t.Errorf("code not cleared: %q", stored.ValidationCode)
	}
	if stored.Status != domain.DeliveryInTransit {
		t.Errorf("status changed: %s", stored.Status)
	}
	// The old code is dead.
	if err := env.validation.Verify(ctx, d.ID, code, ports.ProofInput{}); !errors.Is(err, domain.ErrValidationFailed) {
		t.Errorf("old code after invalidate: got %v, want ErrValidationFailed", err)
	}
}

func TestValidationService_InvalidateConsumedCode(t *testing.T) {
	env := newTestEnv(MatchingConfig{})
	ctx := context.Background()
	d, code := seedInTransit(t, env)
	if err := env.validation.Verify(ctx, d.ID, code, ports.ProofInput{}); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := env.validation.Invalidate(ctx, d.ID, "admin1"); !errors.Is(err, domain.ErrValidationFailed) {
		t.Errorf("got %v, want ErrValidationFailed", err)
	}
}

func TestValidationService_Reissue(t *testing.T) {
	env := newTestEnv(MatchingConfig{})
	ctx := context.Background()
	d, old := seedInTransit(t, env)

	if _, err := env.validation.Reissue(ctx, d.ID, "client1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("non-admin: got %v, want ErrUnauthorized", err)
	}

	code, err := env.validation.Reissue(ctx, d.ID, "admin1")
	if err != nil {
		t.Fatalf("reissue: %v", err)
	}
	if len(code) != 6 {
		t.Errorf("reissued code: got %q, want 6 digits", code)
	}

	// Only the fresh code validates.
	if old != code {
		if err := env.validation.Verify(ctx, d.ID, old, ports.ProofInput{}); !errors.Is(err, domain.ErrValidationFailed) {
			t.Errorf("old code: got %v, want ErrValidationFailed", err)
		}
	}
	if err := env.validation.Verify(ctx, d.ID, code, ports.ProofInput{}); err != nil {
		t.Errorf("fresh code: %v", err)
	}
}

func TestValidationService_ReissueBlockedWhenSpent(t *testing.T) {
	env := newTestEnv(MatchingConfig{})
	ctx := context.Background()
	d, code := seedInTransit(t, env)
	if err := env.validation.Verify(ctx, d.ID, code, ports.ProofInput{}); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if _, err := env.validation.Reissue(ctx, d.ID, "admin1"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("got %v, want ErrInvalidTransition", err)
	}
}

func TestGenerateValidationCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code := generateValidationCode()
		if len(code) != 6 {
			t.Fatalf("got %q, want 6 digits", code)
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Fatalf("non-digit in %q", code)
			}
		}
		seen[code] = true
	}
	// 50 draws from a million values colliding every time would mean the
	// generator is stuck.
	if len(seen) < 2 {
		t.Error("generator returned the same code repeatedly")
	}
}

type exhaustedReader struct{}

func (exhaustedReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestGenerateValidationCode_PanicsWithoutEntropy(t *testing.T) {
	orig := rand.Reader
	rand.Reader = exhaustedReader{}
	defer func() { rand.Reader = orig }()

	defer func() {
		if recover() == nil {
			t.Error("expected a panic when the entropy source fails")
		}
	}()
	generateValidationCode()
}
