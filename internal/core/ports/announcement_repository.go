package ports

import (
	"context"
	"time"

	"github.com/ecodeli/delivery-engine/internal/core/domain"
)

// ListAnnouncementsFilter carries the query parameters for listing
// announcements. ClientID scoping is enforced by the service layer (RBAC).
type ListAnnouncementsFilter struct {
	ClientID string // empty = no filter (admin/carrier view)
	Status   string // optional: filter by announcement status
	Category string // optional: filter by package category
	Page     int    // 1-based
	Limit    int    // capped by the service
}

// AnnouncementRepository defines persistence operations for announcements.
type AnnouncementRepository interface {
	Create(ctx context.Context, a *domain.Announcement) error
	FindByID(ctx context.Context, id string) (*domain.Announcement, error)
	// Update replaces the mutable fields of an announcement. Only called
	// while the announcement is open.
	Update(ctx context.Context, a *domain.Announcement) error
	List(ctx context.Context, filter ListAnnouncementsFilter) ([]*domain.Announcement, int64, error)
	// ListOpen returns open announcements whose window ends after now,
	// for candidate enumeration.
	ListOpen(ctx context.Context, now time.Time, limit int) ([]*domain.Announcement, error)
	// UpdateStatusIf atomically flips the status from one value to another.
	// It returns false when the announcement was not in the expected status,
	// which is how concurrent matchers lose the race.
	UpdateStatusIf(ctx context.Context, id string, from, to domain.AnnouncementStatus) (bool, error)
}
