package ports

import (
	"context"
	"time"

	"github.com/ecodeli/delivery-engine/internal/core/domain"
)

// MatchRepository defines persistence operations for match proposals.
type MatchRepository interface {
	CreateBatch(ctx context.Context, matches []*domain.Match) error
	FindByID(ctx context.Context, id string) (*domain.Match, error)
	ListByAnnouncement(ctx context.Context, announcementID string) ([]*domain.Match, error)
	// MarkAccepted atomically flips a proposed match to accepted, recording
	// the acceptance time. Returns false when the match was no longer in
	// proposed state.
	MarkAccepted(ctx context.Context, id string, at time.Time) (bool, error)
	// MarkReleased flags an accepted match whose delivery was cancelled.
	MarkReleased(ctx context.Context, id string) error
}
