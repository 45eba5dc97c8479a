package ports

import (
	"context"
	"time"

	"github.com/ecodeli/delivery-engine/internal/core/domain"
)

// AddressInput holds a physical location.
type AddressInput struct {
	Address string
	City    string
	ZipCode string
	Lat     float64
	Lng     float64
}

// PackageInput holds package attributes.
type PackageInput struct {
	WeightKg    float64
	VolumeM3    float64
	Fragile     bool
	Category    string
	Description string
}

// CreateAnnouncementInput carries all data needed to post an announcement.
type CreateAnnouncementInput struct {
	ClientID    string
	Title       string
	Origin      AddressInput
	Destination AddressInput
	WindowStart time.Time
	WindowEnd   time.Time
	Package     PackageInput
	Price       float64
	Currency    string
}

// UpdateAnnouncementInput carries the editable fields. Edits are only
// accepted while the announcement is open and only from its owner.
type UpdateAnnouncementInput struct {
	AnnouncementID string
	ActorID        string
	Title          string
	WindowStart    time.Time
	WindowEnd      time.Time
	Price          float64
}

// AnnouncementService defines the client-facing announcement operations.
type AnnouncementService interface {
	Create(ctx context.Context, in CreateAnnouncementInput) (*domain.Announcement, error)
	Get(ctx context.Context, id string) (*domain.Announcement, error)
	List(ctx context.Context, filter ListAnnouncementsFilter) ([]*domain.Announcement, int64, error)
	Update(ctx context.Context, in UpdateAnnouncementInput) (*domain.Announcement, error)
	// Cancel soft-cancels an open announcement (open -> cancelled).
	Cancel(ctx context.Context, id, actorID string) error
}
