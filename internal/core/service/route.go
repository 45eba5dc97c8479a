package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecodeli/delivery-engine/internal/core/domain"
	"github.com/ecodeli/delivery-engine/internal/core/ports"
)

// RouteSvc implements the carrier-facing route operations.
type RouteSvc struct {
	repo ports.RouteRepository
	log  zerolog.Logger
}

func NewRouteService(repo ports.RouteRepository, log zerolog.Logger) *RouteSvc {
	return &RouteSvc{repo: repo, log: log}
}

func (s *RouteSvc) Create(ctx context.Context, in ports.CreateRouteInput) (*domain.Route, error) {
	origin := toAddress(in.Origin)
	destination := toAddress(in.Destination)
	if !origin.Coordinates.Valid() || !destination.Coordinates.Valid() {
		return nil, domain.ErrInvalidCoordinate
	}

	r := &domain.Route{
		CarrierID:         in.CarrierID,
		Origin:            origin,
		Destination:       destination,
		DepartureAt:       in.DepartureAt.UTC(),
		ArrivalAt:         in.ArrivalAt.UTC(),
		Flexible:          in.Flexible,
		DeclaredWeightKg:  in.WeightKg,
		RemainingWeightKg: in.WeightKg,
		DeclaredVolumeM3:  in.VolumeM3,
		RemainingVolumeM3: in.VolumeM3,
		PricePerKg:        in.PricePerKg,
		Currency:          in.Currency,
		CreatedAt:         time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, r); err != nil {
		s.log.Error().Err(err).Msg("failed to create route")
		return nil, err
	}

	s.log.Info().
		Str("route_id", r.ID).
		Str("carrier_id", r.CarrierID).
		Float64("weight_kg", r.DeclaredWeightKg).
		Msg("route declared")
	return r, nil
}

func (s *RouteSvc) Get(ctx context.Context, id string) (*domain.Route, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *RouteSvc) ListByCarrier(ctx context.Context, carrierID string) ([]*domain.Route, error) {
	return s.repo.ListByCarrier(ctx, carrierID)
}
