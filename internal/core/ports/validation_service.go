package ports

import (
	"context"

	"github.com/ecodeli/delivery-engine/internal/core/domain"
)

// ProofInput carries the optional evidence attached to a validation.
type ProofInput struct {
	RecipientName string
	SignatureURL  string
	PhotoURLs     []string
	Location      *domain.Coordinates
}

// ValidationService generates and verifies the single-use completion proof.
type ValidationService interface {
	// Verify checks the presented 6-digit code against an in-transit
	// delivery. On success the code is consumed and the delivery moves to
	// delivered in the same atomic operation. Any failure (wrong code,
	// already consumed, wrong state) surfaces as the same opaque
	// domain.ErrValidationFailed.
	Verify(ctx context.Context, deliveryID, code string, proof ProofInput) error
	// VerifyNFC is the alternate proof path. It bypasses the numeric code
	// but honours the same single-use, in-transit-only guard and produces
	// the same downstream effect.
	VerifyNFC(ctx context.Context, deliveryID, tagID string, proof ProofInput) error
	// Invalidate clears an unconsumed code (admin override). The delivery
	// status is left untouched.
	Invalidate(ctx context.Context, deliveryID, actorID string) error
	// Reissue replaces the code of an active delivery with a fresh one and
	// returns it (admin override, e.g. after reassignment).
	Reissue(ctx context.Context, deliveryID, actorID string) (string, error)
}
