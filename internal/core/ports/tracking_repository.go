package ports

import (
	"context"

	"github.com/ecodeli/delivery-engine/internal/core/domain"
)

// TrackingRepository is the append-only store for tracking events.
type TrackingRepository interface {
	Append(ctx context.Context, event *domain.TrackingEvent) error
	// ListByDelivery returns all events for a delivery ordered by sequence.
	ListByDelivery(ctx context.Context, deliveryID string) ([]*domain.TrackingEvent, error)
}
