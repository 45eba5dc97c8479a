package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ecodeli/delivery-engine/internal/core/domain"
	"github.com/ecodeli/delivery-engine/internal/core/ports"
)

// advance walks a freshly created delivery to the target status through the
// carrier-facing transitions, validating the code when in_transit is passed.
func advance(t *testing.T, env *testEnv, d *domain.Delivery, target domain.DeliveryStatus) {
	t.Helper()
	ctx := context.Background()
	in := ports.TransitionInput{DeliveryID: d.ID, ActorID: "carrier1"}

	steps := []struct {
		status domain.DeliveryStatus
		fn     func(context.Context, ports.TransitionInput) error
	}{
		{domain.DeliveryAccepted, env.delivery.Accept},
		{domain.DeliveryPickedUp, env.delivery.MarkPickedUp},
		{domain.DeliveryInTransit, env.delivery.MarkInTransit},
	}
	for _, step := range steps {
		if err := step.fn(ctx, in); err != nil {
			t.Fatalf("advance to %s: %v", step.status, err)
		}
		if step.status == target {
			return
		}
	}

	stored, err := env.deliveries.FindByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("load delivery: %v", err)
	}
	if err := env.validation.Verify(ctx, d.ID, stored.ValidationCode, ports.ProofInput{RecipientName: "M. Dupont"}); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if target == domain.DeliveryDelivered {
		return
	}

	if err := env.delivery.Confirm(ctx, ports.TransitionInput{DeliveryID: d.ID, ActorID: "client1"}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
}

func TestDeliveryService_FullLifecycle(t *testing.T) {
	env := newTestEnv(MatchingConfig{})
	ctx := context.Background()
	d := seedAcceptedDelivery(t, env)

	if d.Status != domain.DeliveryPending || d.Version != 1 {
		t.Fatalf("fresh delivery: status %s version %d", d.Status, d.Version)
	}
	stored, _ := env.deliveries.FindByID(ctx, d.ID)
	if len(stored.ValidationCode) != 6 {
		t.Fatalf("validation code: got %q, want 6 digits", stored.ValidationCode)
	}

	advance(t, env, d, domain.DeliveryConfirmed)

	final, _ := env.deliveries.FindByID(ctx, d.ID)
	if final.Status != domain.DeliveryConfirmed {
		t.Errorf("status: got %s, want confirmed", final.Status)
	}
	if final.Proof == nil || final.Proof.Method != domain.ProofMethodCode {
		t.Errorf("proof: %+v", final.Proof)
	}
	if final.AcceptedAt == nil || final.PickedUpAt == nil || final.InTransitAt == nil ||
		final.DeliveredAt == nil || final.ConfirmedAt == nil {
		t.Error("missing lifecycle timestamps")
	}

	if n := env.ledger.count(); n != 1 {
		t.Errorf("ledger dispatches: got %d, want 1", n)
	}
	a, _ := env.announcements.FindByID(ctx, final.AnnouncementID)
	if a.Status != domain.AnnouncementCompleted {
		t.Errorf("announcement status: got %s, want completed", a.Status)
	}

	events, err := env.delivery.Events(ctx, d.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	// creation + accepted + picked_up + in_transit + delivered + confirmed
	if len(events) != 6 {
		t.Fatalf("got %d events, want 6", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].Seq <= events[i-1].Seq {
			t.Errorf("events out of order at %d: %d then %d", i, events[i-1].Seq, events[i].Seq)
		}
		if events[i].FromStatus != events[i-1].ToStatus {
			t.Errorf("event chain broken at %d: %s then from %s", i, events[i-1].ToStatus, events[i].FromStatus)
		}
	}
	if events[len(events)-1].ToStatus != domain.DeliveryConfirmed {
		t.Errorf("last event: got %s, want confirmed", events[len(events)-1].ToStatus)
	}
}

func TestDeliveryService_InvalidTransitions(t *testing.T) {
	env := newTestEnv(MatchingConfig{})
	ctx := context.Background()
	d := seedAcceptedDelivery(t, env)
	in := ports.TransitionInput{DeliveryID: d.ID, ActorID: "carrier1"}

	// pending -> in_transit skips picked_up.
	if err := env.delivery.MarkInTransit(ctx, in); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("skip ahead: got %v, want ErrInvalidTransition", err)
	}
	// pending -> confirmed needs a proof first.
	if err := env.delivery.Confirm(ctx, ports.TransitionInput{DeliveryID: d.ID, ActorID: "client1"}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("premature confirm: got %v, want ErrInvalidTransition", err)
	}

	stored, _ := env.deliveries.FindByID(ctx, d.ID)
	if stored.Status != domain.DeliveryPending || stored.Version != 1 {
		t.Errorf("failed transitions must not change state: %s v%d", stored.Status, stored.Version)
	}
	events, _ := env.delivery.Events(ctx, d.ID)
	if len(events) != 1 {
		t.Errorf("failed transitions must not append events, got %d", len(events))
	}
}

func TestDeliveryService_TransitionAuthorization(t *testing.T) {
	env := newTestEnv(MatchingConfig{})
	ctx := context.Background()
	d := seedAcceptedDelivery(t, env)

	// The client cannot drive carrier transitions.
	if err := env.delivery.Accept(ctx, ports.TransitionInput{DeliveryID: d.ID, ActorID: "client1"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("client accept: got %v, want ErrUnauthorized", err)
	}
	// A stranger cannot cancel.
	if err := env.delivery.Cancel(ctx, ports.TransitionInput{DeliveryID: d.ID, ActorID: "nobody"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("stranger cancel: got %v, want ErrUnauthorized", err)
	}
	// An admin can stand in for the carrier.
	if err := env.delivery.Accept(ctx, ports.TransitionInput{DeliveryID: d.ID, ActorID: "admin1"}); err != nil {
		t.Errorf("admin accept: %v", err)
	}
}

func TestDeliveryService_ConcurrentTransitionOneWinner(t *testing.T) {
	env := newTestEnv(MatchingConfig{})
	ctx := context.Background()
	d := seedAcceptedDelivery(t, env)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = env.delivery.Accept(ctx, ports.TransitionInput{DeliveryID: d.ID, ActorID: "carrier1"})
		}(i)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrConcurrencyConflict) || errors.Is(err, domain.ErrInvalidTransition):
			losses++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Errorf("got %d winners and %d losers, want 1 and 1", wins, losses)
	}
	stored, _ := env.deliveries.FindByID(ctx, d.ID)
	if stored.Status != domain.DeliveryAccepted || stored.Version != 2 {
		t.Errorf("final state: %s v%d, want accepted v2", stored.Status, stored.Version)
	}
}

func TestDeliveryService_ConfirmFiresLedgerOnce(t *testing.T) {
	env := newTestEnv(MatchingConfig{})
	ctx := context.Background()
	d := seedAcceptedDelivery(t, env)
	advance(t, env, d, domain.DeliveryConfirmed)

	if n := env.ledger.count(); n != 1 {
		t.Fatalf("ledger dispatches: got %d, want 1", n)
	}
	// A repeated confirm fails on the state machine, well before the ledger.
	if err := env.delivery.Confirm(ctx, ports.TransitionInput{DeliveryID: d.ID, ActorID: "client1"}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("repeat confirm: got %v, want ErrInvalidTransition", err)
	}
	if n := env.ledger.count(); n != 1 {
		t.Errorf("ledger dispatches after repeat: got %d, want 1", n)
	}
}

func TestDeliveryService_DispatchLedgerDeduplicates(t *testing.T) {
	env := newTestEnv(MatchingConfig{})
	ctx := context.Background()
	d := seedAcceptedDelivery(t, env)

	if err := env.delivery.dispatchLedger(ctx, d); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	if err := env.delivery.dispatchLedger(ctx, d); err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if n := env.ledger.count(); n != 1 {
		t.Errorf("ledger entries: got %d, want 1", n)
	}
	if e := env.ledger.entries[0]; e.DeliveryID != d.ID || e.Amount != 30 || e.Currency != "EUR" ||
		e.PayerID != "client1" || e.PayeeID != "carrier1" {
		t.Errorf("ledger entry: %+v", e)
	}
}

func TestDeliveryService_DispatchLedgerRetriesAfterFailure(t *testing.T) {
	env := newTestEnv(MatchingConfig{})
	ctx := context.Background()
	d := seedAcceptedDelivery(t, env)

	env.ledger.err = errors.New("ledger unavailable")
	if err := env.delivery.dispatchLedger(ctx, d); err == nil {
		t.Fatal("expected dispatch failure")
	}

	// The guard slot was released, so the retry goes through.
	env.ledger.err = nil
	if err := env.delivery.dispatchLedger(ctx, d); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if n := env.ledger.count(); n != 1 {
		t.Errorf("ledger entries: got %d, want 1", n)
	}
}

func TestDeliveryService_CancelReleasesCapacityOnce(t *testing.T) {
	env := newTestEnv(MatchingConfig{})
	ctx := context.Background()
	d := seedAcceptedDelivery(t, env)

	rt, _ := env.routes.FindByID(ctx, d.RouteID)
	if rt.RemainingWeightKg != 90 {
		t.Fatalf("precondition: remaining %v kg, want 90", rt.RemainingWeightKg)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = env.delivery.Cancel(ctx, ports.TransitionInput{DeliveryID: d.ID, ActorID: "client1", Note: "changed plans"})
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("got %d successful cancels, want 1", wins)
	}

	rt, _ = env.routes.FindByID(ctx, d.RouteID)
	if rt.RemainingWeightKg != 100 || rt.RemainingVolumeM3 != 2 {
		t.Errorf("capacity after cancel: %v kg, %v m3, want full restore", rt.RemainingWeightKg, rt.RemainingVolumeM3)
	}

	stored, _ := env.deliveries.FindByID(ctx, d.ID)
	if stored.Status != domain.DeliveryCancelled || !stored.CapacityReleased {
		t.Errorf("delivery after cancel: %s released=%v", stored.Status, stored.CapacityReleased)
	}
	a, _ := env.announcements.FindByID(ctx, d.AnnouncementID)
	if a.Status != domain.AnnouncementOpen {
		t.Errorf("announcement must reopen, got %s", a.Status)
	}
	m, _ := env.matches.FindByID(ctx, d.MatchID)
	if m.Status != domain.MatchReleased {
		t.Errorf("match status: got %s, want released", m.Status)
	}
}

func TestDeliveryService_CancelBlockedAfterValidation(t *testing.T) {
	env := newTestEnv(MatchingConfig{})
	ctx := context.Background()
	d := seedAcceptedDelivery(t, env)
	advance(t, env, d, domain.DeliveryDelivered)

	err := env.delivery.Cancel(ctx, ports.TransitionInput{DeliveryID: d.ID, ActorID: "client1"})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("got %v, want ErrInvalidTransition", err)
	}
	stored, _ := env.deliveries.FindByID(ctx, d.ID)
	if stored.Status != domain.DeliveryDelivered {
		t.Errorf("status: got %s, want delivered", stored.Status)
	}
	rt, _ := env.routes.FindByID(ctx, d.RouteID)
	if rt.RemainingWeightKg != 90 {
		t.Errorf("capacity must stay reserved, remaining %v kg", rt.RemainingWeightKg)
	}
}

func TestDeliveryService_Dispute(t *testing.T) {
	env := newTestEnv(MatchingConfig{})
	ctx := context.Background()
	d := seedAcceptedDelivery(t, env)
	advance(t, env, d, domain.DeliveryDelivered)

	if err := env.delivery.Dispute(ctx, ports.TransitionInput{DeliveryID: d.ID, ActorID: "client1", Note: "parcel damaged"}); err != nil {
		t.Fatalf("dispute: %v", err)
	}
	stored, _ := env.deliveries.FindByID(ctx, d.ID)
	if stored.Status != domain.DeliveryDisputed || stored.DisputedAt == nil {
		t.Errorf("after dispute: %s", stored.Status)
	}
	// Disputed resolves only by cancellation.
	if err := env.delivery.Cancel(ctx, ports.TransitionInput{DeliveryID: d.ID, ActorID: "admin1"}); !errors.Is(err, domain.ErrInvalidTransition) {
		// Cancel after code consumption stays blocked even from disputed.
		t.Errorf("cancel of validated dispute: got %v, want ErrInvalidTransition", err)
	}
}

func TestDeliveryService_PickupBeforeWindowIsAnnotated(t *testing.T) {
	env := newTestEnv(MatchingConfig{})
	ctx := context.Background()
	d := seedAcceptedDelivery(t, env)
	in := ports.TransitionInput{DeliveryID: d.ID, ActorID: "carrier1"}

	if err := env.delivery.Accept(ctx, in); err != nil {
		t.Fatalf("accept: %v", err)
	}
	// The seeded window starts an hour from now, so this pickup is early.
	if err := env.delivery.MarkPickedUp(ctx, in); err != nil {
		t.Fatalf("pickup: %v", err)
	}

	events, _ := env.delivery.Events(ctx, d.ID)
	last := events[len(events)-1]
	if last.ToStatus != domain.DeliveryPickedUp {
		t.Fatalf("last event: %s", last.ToStatus)
	}
	if last.Note == "" {
		t.Error("early pickup must carry a note")
	}

	a, _ := env.announcements.FindByID(ctx, d.AnnouncementID)
	if a.Status != domain.AnnouncementInProgress {
		t.Errorf("announcement status: got %s, want in_progress", a.Status)
	}
}

func TestDeliveryService_ListScoping(t *testing.T) {
	env := newTestEnv(MatchingConfig{})
	ctx := context.Background()
	d := seedAcceptedDelivery(t, env)

	byClient, total, err := env.delivery.List(ctx, ports.ListDeliveriesFilter{ClientID: "client1"})
	if err != nil || total != 1 || byClient[0].ID != d.ID {
		t.Errorf("client scope: %v total=%d", err, total)
	}
	_, total, _ = env.delivery.List(ctx, ports.ListDeliveriesFilter{CarrierID: "carrier2"})
	if total != 0 {
		t.Errorf("foreign carrier scope: total=%d, want 0", total)
	}
	_, total, _ = env.delivery.List(ctx, ports.ListDeliveriesFilter{Status: string(domain.DeliveryPending)})
	if total != 1 {
		t.Errorf("status scope: total=%d, want 1", total)
	}
}
