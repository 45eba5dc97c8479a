package ports

import (
	"context"

	"github.com/ecodeli/delivery-engine/internal/core/domain"
)

// TransitionInput carries the common parameters of a carrier- or
// client-driven delivery transition.
type TransitionInput struct {
	DeliveryID string
	ActorID    string
	Location   *domain.Coordinates
	Note       string
}

// DeliveryService owns the delivery entity and its state machine. Every
// transition outside the legal table fails with domain.ErrInvalidTransition
// and leaves state and history unchanged.
type DeliveryService interface {
	// CreateFromMatch instantiates the delivery for a freshly accepted
	// match. Called by the matching engine only.
	CreateFromMatch(ctx context.Context, m *domain.Match, a *domain.Announcement) (*domain.Delivery, error)
	Get(ctx context.Context, deliveryID string) (*domain.Delivery, error)
	List(ctx context.Context, filter ListDeliveriesFilter) ([]*domain.Delivery, int64, error)
	// Accept is the assigned carrier confirming the job (pending -> accepted).
	Accept(ctx context.Context, in TransitionInput) error
	// MarkPickedUp records the physical pickup (accepted -> picked_up). The
	// announced window start is a soft guard: early pickups go through with
	// a note on the tracking event.
	MarkPickedUp(ctx context.Context, in TransitionInput) error
	// MarkInTransit records departure towards the destination.
	MarkInTransit(ctx context.Context, in TransitionInput) error
	// Confirm finalises a delivered delivery (delivered -> confirmed),
	// requires a proof-of-delivery record, fires the ledger trigger exactly
	// once, and completes the source announcement.
	Confirm(ctx context.Context, in TransitionInput) error
	// Cancel aborts a non-terminal delivery, releasing reserved route
	// capacity exactly once and reopening the announcement. Disallowed once
	// the validation code has been consumed.
	Cancel(ctx context.Context, in TransitionInput) error
	// Dispute flags a delivery for manual resolution.
	Dispute(ctx context.Context, in TransitionInput) error
	// Events returns the ordered tracking history of a delivery.
	Events(ctx context.Context, deliveryID string) ([]*domain.TrackingEvent, error)
}
