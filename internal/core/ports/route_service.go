package ports

import (
	"context"
	"time"

	"github.com/ecodeli/delivery-engine/internal/core/domain"
)

// CreateRouteInput carries all data needed to declare a carrier trip.
type CreateRouteInput struct {
	CarrierID   string
	Origin      AddressInput
	Destination AddressInput
	DepartureAt time.Time
	ArrivalAt   time.Time
	Flexible    bool
	WeightKg    float64
	VolumeM3    float64
	PricePerKg  float64
	Currency    string
}

// RouteService defines the carrier-facing route operations.
type RouteService interface {
	Create(ctx context.Context, in CreateRouteInput) (*domain.Route, error)
	Get(ctx context.Context, id string) (*domain.Route, error)
	ListByCarrier(ctx context.Context, carrierID string) ([]*domain.Route, error)
}
