package ports

import (
	"context"
	"time"

	"github.com/ecodeli/delivery-engine/internal/core/domain"
)

// RouteRepository defines persistence operations for routes. Capacity is
// never written directly: ReserveCapacity and ReleaseCapacity are the only
// mutations, each an atomic guarded delta.
type RouteRepository interface {
	Create(ctx context.Context, r *domain.Route) error
	FindByID(ctx context.Context, id string) (*domain.Route, error)
	ListByCarrier(ctx context.Context, carrierID string) ([]*domain.Route, error)
	// ListDeparting returns routes departing at or after the given instant,
	// for candidate enumeration.
	ListDeparting(ctx context.Context, after time.Time, limit int) ([]*domain.Route, error)
	// ReserveCapacity atomically decrements remaining weight and volume.
	// Fails with domain.ErrCapacityExceeded when either would go negative,
	// domain.ErrRouteNotFound when the route does not exist.
	ReserveCapacity(ctx context.Context, id string, weightKg, volumeM3 float64) error
	// ReleaseCapacity atomically increments remaining weight and volume,
	// guarded so remaining can never exceed the declared capacity.
	ReleaseCapacity(ctx context.Context, id string, weightKg, volumeM3 float64) error
}
