package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecodeli/delivery-engine/internal/core/domain"
	"github.com/ecodeli/delivery-engine/internal/core/ports"
)

// AnnouncementSvc implements the client-facing announcement operations.
type AnnouncementSvc struct {
	repo     ports.AnnouncementRepository
	identity ports.Identity
	log      zerolog.Logger
}

func NewAnnouncementService(repo ports.AnnouncementRepository, identity ports.Identity, log zerolog.Logger) *AnnouncementSvc {
	return &AnnouncementSvc{repo: repo, identity: identity, log: log}
}

func (s *AnnouncementSvc) Create(ctx context.Context, in ports.CreateAnnouncementInput) (*domain.Announcement, error) {
	origin := toAddress(in.Origin)
	destination := toAddress(in.Destination)
	if !origin.Coordinates.Valid() || !destination.Coordinates.Valid() {
		return nil, domain.ErrInvalidCoordinate
	}

	now := time.Now().UTC()
	a := &domain.Announcement{
		ClientID:    in.ClientID,
		Title:       in.Title,
		Origin:      origin,
		Destination: destination,
		Window:      domain.TimeWindow{Start: in.WindowStart, End: in.WindowEnd},
		Package: domain.Package{
			WeightKg:    in.Package.WeightKg,
			VolumeM3:    in.Package.VolumeM3,
			Fragile:     in.Package.Fragile,
			Category:    in.Package.Category,
			Description: in.Package.Description,
		},
		Price:     in.Price,
		Currency:  in.Currency,
		Status:    domain.AnnouncementOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, a); err != nil {
		s.log.Error().Err(err).Msg("failed to create announcement")
		return nil, err
	}

	s.log.Info().
		Str("announcement_id", a.ID).
		Str("client_id", a.ClientID).
		Float64("weight_kg", a.Package.WeightKg).
		Msg("announcement created")
	return a, nil
}

func (s *AnnouncementSvc) Get(ctx context.Context, id string) (*domain.Announcement, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.lazyExpire(ctx, a)
	return a, nil
}

func (s *AnnouncementSvc) List(ctx context.Context, filter ports.ListAnnouncementsFilter) ([]*domain.Announcement, int64, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	for _, a := range items {
		s.lazyExpire(ctx, a)
	}
	return items, total, nil
}

// Update edits the mutable fields. Only the owner may edit, and only while
// the announcement is open.
func (s *AnnouncementSvc) Update(ctx context.Context, in ports.UpdateAnnouncementInput) (*domain.Announcement, error) {
	a, err := s.repo.FindByID(ctx, in.AnnouncementID)
	if err != nil {
		return nil, err
	}
	if a.ClientID != in.ActorID {
		return nil, domain.ErrUnauthorized
	}
	if a.Status != domain.AnnouncementOpen {
		return nil, domain.ErrAnnouncementNotOpen
	}

	if in.Title != "" {
		a.Title = in.Title
	}
	if !in.WindowStart.IsZero() {
		a.Window.Start = in.WindowStart
	}
	if !in.WindowEnd.IsZero() {
		a.Window.End = in.WindowEnd
	}
	if in.Price > 0 {
		a.Price = in.Price
	}
	a.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Cancel soft-cancels an open announcement.
func (s *AnnouncementSvc) Cancel(ctx context.Context, id, actorID string) error {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if a.ClientID != actorID {
		isAdmin, err := s.identity.HasRole(ctx, actorID, domain.RoleAdmin)
		if err != nil {
			return err
		}
		if !isAdmin {
			return domain.ErrUnauthorized
		}
	}

	flipped, err := s.repo.UpdateStatusIf(ctx, id, domain.AnnouncementOpen, domain.AnnouncementCancelled)
	if err != nil {
		return err
	}
	if !flipped {
		return domain.ErrAnnouncementNotOpen
	}

	s.log.Info().Str("announcement_id", id).Str("actor_id", actorID).Msg("announcement cancelled")
	return nil
}

// lazyExpire flags open announcements whose window has closed. Persistence
// is best-effort; the returned view is authoritative either way.
func (s *AnnouncementSvc) lazyExpire(ctx context.Context, a *domain.Announcement) {
	if !a.Expired(time.Now().UTC()) {
		return
	}
	if _, err := s.repo.UpdateStatusIf(ctx, a.ID, domain.AnnouncementOpen, domain.AnnouncementExpired); err != nil {
		s.log.Warn().Err(err).Str("announcement_id", a.ID).Msg("failed to persist expiry")
	}
	a.Status = domain.AnnouncementExpired
}

func toAddress(in ports.AddressInput) domain.Address {
	return domain.Address{
		Address: in.Address,
		City:    in.City,
		ZipCode: in.ZipCode,
		Coordinates: domain.Coordinates{
			Lat: in.Lat,
			Lng: in.Lng,
		},
	}
}
