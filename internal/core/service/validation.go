package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecodeli/delivery-engine/internal/api/metrics"
	"github.com/ecodeli/delivery-engine/internal/core/domain"
	"github.com/ecodeli/delivery-engine/internal/core/ports"
)

// ValidationCodeService verifies the single-use completion proof and, on
// success, moves the delivery to delivered in the same atomic operation.
type ValidationCodeService struct {
	deliveries ports.DeliveryRepository
	tracking   ports.TrackingRepository
	identity   ports.Identity
	notifier   ports.Notifier
	log        zerolog.Logger
}

func NewValidationCodeService(
	deliveries ports.DeliveryRepository,
	tracking ports.TrackingRepository,
	identity ports.Identity,
	notifier ports.Notifier,
	log zerolog.Logger,
) *ValidationCodeService {
	return &ValidationCodeService{
		deliveries: deliveries,
		tracking:   tracking,
		identity:   identity,
		notifier:   notifier,
		log:        log,
	}
}

// Verify checks the presented code against an in-transit delivery. Every
// failure mode collapses into the same opaque error so callers cannot probe
// how close a guess was.
func (s *ValidationCodeService) Verify(ctx context.Context, deliveryID, code string, proof ports.ProofInput) error {
	d, err := s.deliveries.FindByID(ctx, deliveryID)
	if err != nil {
		return err
	}

	if d.Status != domain.DeliveryInTransit || d.CodeConsumed || d.ValidationCode == "" {
		s.failAttempt(d.ID, domain.ProofMethodCode, "rejected")
		return domain.ErrValidationFailed
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(d.ValidationCode)) != 1 {
		s.failAttempt(d.ID, domain.ProofMethodCode, "mismatch")
		return domain.ErrValidationFailed
	}

	return s.consume(ctx, d, domain.ProofMethodCode, proof)
}

// VerifyNFC is the alternate proof path: the tag presence replaces the
// numeric code, under the same single-use, in-transit-only guard.
func (s *ValidationCodeService) VerifyNFC(ctx context.Context, deliveryID, tagID string, proof ports.ProofInput) error {
	if tagID == "" {
		return domain.ErrValidationFailed
	}
	d, err := s.deliveries.FindByID(ctx, deliveryID)
	if err != nil {
		return err
	}

	if d.Status != domain.DeliveryInTransit || d.CodeConsumed {
		s.failAttempt(d.ID, domain.ProofMethodNFC, "rejected")
		return domain.ErrValidationFailed
	}

	return s.consume(ctx, d, domain.ProofMethodNFC, proof)
}

// consume applies the two coupled effects atomically: code marked consumed
// and delivery moved to delivered. A concurrent replay loses the CAS and
// reports the same opaque failure.
func (s *ValidationCodeService) consume(ctx context.Context, d *domain.Delivery, method domain.ProofMethod, proof ports.ProofInput) error {
	now := time.Now().UTC()
	record := domain.ProofOfDelivery{
		Method:        method,
		RecipientName: proof.RecipientName,
		SignatureURL:  proof.SignatureURL,
		PhotoURLs:     proof.PhotoURLs,
		Location:      proof.Location,
		ValidatedAt:   now,
	}

	ok, err := s.deliveries.ConsumeCodeAndDeliver(ctx, d.ID, d.Version, record)
	if err != nil {
		return fmt.Errorf("consume validation code: %w", err)
	}
	if !ok {
		s.failAttempt(d.ID, method, "replay")
		return domain.ErrValidationFailed
	}
	metrics.ValidationAttemptsTotal.WithLabelValues(string(method), "ok").Inc()

	ev := &domain.TrackingEvent{
		DeliveryID: d.ID,
		Seq:        d.Version + 1,
		FromStatus: domain.DeliveryInTransit,
		ToStatus:   domain.DeliveryDelivered,
		Timestamp:  now,
		Location:   proof.Location,
		Note:       "validated via " + string(method),
	}
	if err := s.tracking.Append(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("delivery_id", d.ID).Msg("failed to append tracking event")
	}

	s.log.Info().
		Str("delivery_id", d.ID).
		Str("method", string(method)).
		Msg("delivery validated")

	s.notifier.Notify(d.ClientID, "delivery.delivered", map[string]any{"delivery_id": d.ID})
	s.notifier.Notify(d.CarrierID, "delivery.delivered", map[string]any{"delivery_id": d.ID})
	return nil
}

// Invalidate clears an unconsumed code so it cannot be used if the delivery
// is reassigned. Admin only; the delivery status is left untouched.
func (s *ValidationCodeService) Invalidate(ctx context.Context, deliveryID, actorID string) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	d, err := s.deliveries.FindByID(ctx, deliveryID)
	if err != nil {
		return err
	}
	if d.CodeConsumed {
		return domain.ErrValidationFailed
	}
	if err := s.deliveries.SetValidationCode(ctx, deliveryID, ""); err != nil {
		return err
	}
	s.log.Info().Str("delivery_id", deliveryID).Str("actor_id", actorID).Msg("validation code invalidated")
	return nil
}

// Reissue replaces the code of an active delivery with a fresh one.
func (s *ValidationCodeService) Reissue(ctx context.Context, deliveryID, actorID string) (string, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return "", err
	}
	d, err := s.deliveries.FindByID(ctx, deliveryID)
	if err != nil {
		return "", err
	}
	if d.Status.Terminal() || d.Status == domain.DeliveryDelivered || d.CodeConsumed {
		return "", domain.ErrInvalidTransition
	}

	code := generateValidationCode()
	if err := s.deliveries.SetValidationCode(ctx, deliveryID, code); err != nil {
		return "", err
	}
	s.log.Info().Str("delivery_id", deliveryID).Str("actor_id", actorID).Msg("validation code reissued")
	return code, nil
}

func (s *ValidationCodeService) requireAdmin(ctx context.Context, actorID string) error {
	isAdmin, err := s.identity.HasRole(ctx, actorID, domain.RoleAdmin)
	if err != nil {
		return fmt.Errorf("role check: %w", err)
	}
	if !isAdmin {
		return domain.ErrUnauthorized
	}
	return nil
}

func (s *ValidationCodeService) failAttempt(deliveryID string, method domain.ProofMethod, outcome string) {
	metrics.ValidationAttemptsTotal.WithLabelValues(string(method), "failed").Inc()
	s.log.Warn().
		Str("delivery_id", deliveryID).
		Str("method", string(method)).
		Str("outcome", outcome).
		Msg("validation attempt failed")
}

// generateValidationCode returns a uniformly random 6-digit decimal string,
// independent of the delivery id or any other observable value.
func generateValidationCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		// crypto/rand only fails when the platform entropy source is
		// broken. A guessable substitute would defeat the proof, so stop.
		panic(fmt.Sprintf("validation code generation: %v", err))
	}
	return fmt.Sprintf("%06d", n.Int64())
}
