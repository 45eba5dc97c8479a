package ports

import (
	"context"
	"time"

	"github.com/ecodeli/delivery-engine/internal/core/domain"
)

// TransitionUpdate carries the denormalized fields written alongside a
// status change. Nil pointers are left untouched.
type TransitionUpdate struct {
	AcceptedAt  *time.Time
	PickedUpAt  *time.Time
	InTransitAt *time.Time
	ConfirmedAt *time.Time
	CancelledAt *time.Time
	DisputedAt  *time.Time
	// CapacityReleased is set together with the cancelled transition so the
	// release happens exactly once even under concurrent cancels.
	CapacityReleased *bool
}

// ListDeliveriesFilter scopes delivery listings per role.
type ListDeliveriesFilter struct {
	ClientID  string
	CarrierID string
	Status    string
	Page      int
	Limit     int
}

// DeliveryRepository defines persistence operations for deliveries. All
// cross-cutting invariants (one winner per transition, exactly-once code
// consumption) are expressed as conditional updates here so that multiple
// stateless workers can run concurrently.
type DeliveryRepository interface {
	Create(ctx context.Context, d *domain.Delivery) error
	FindByID(ctx context.Context, id string) (*domain.Delivery, error)
	List(ctx context.Context, filter ListDeliveriesFilter) ([]*domain.Delivery, int64, error)
	// TransitionStatus atomically moves the delivery from one status to
	// another, guarded by the optimistic version. It increments the version
	// and applies the update fields in the same operation. Returns false
	// when another transition won the race.
	TransitionStatus(ctx context.Context, id string, from, to domain.DeliveryStatus, version int64, upd TransitionUpdate) (bool, error)
	// ConsumeCodeAndDeliver marks the validation code consumed and moves
	// the delivery from in_transit to delivered in one atomic operation,
	// attaching the proof-of-delivery record. These two effects are applied
	// together or not at all. Returns false when the delivery was not in
	// transit anymore, the code was already consumed, or the version moved.
	ConsumeCodeAndDeliver(ctx context.Context, id string, version int64, proof domain.ProofOfDelivery) (bool, error)
	// SetValidationCode overwrites the stored code (empty string clears it)
	// and resets the consumed flag. Used by admin invalidation and reissue;
	// never touches the delivery status.
	SetValidationCode(ctx context.Context, id string, code string) error
}
