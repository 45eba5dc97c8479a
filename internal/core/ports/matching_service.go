package ports

import (
	"context"
	"time"

	"github.com/ecodeli/delivery-engine/internal/core/domain"
)

// MatchProposal is one ranked pairing returned by the matching engine.
type MatchProposal struct {
	MatchID        string
	AnnouncementID string
	RouteID        string
	CarrierID      string
	Score          float64
	RouteDeparture time.Time
	ProposedAt     time.Time
	ExpiresAt      time.Time
}

// AcceptMatchInput identifies which proposal to accept and who is accepting.
type AcceptMatchInput struct {
	MatchID string
	ActorID string
}

// DirectOfferInput is a carrier volunteering for an announcement without a
// declared route.
type DirectOfferInput struct {
	AnnouncementID string
	CarrierID      string
}

// MatchingService proposes and accepts announcement-route pairings.
type MatchingService interface {
	// ProposeForAnnouncement enumerates compatible routes for an open
	// announcement and returns ranked proposals, best first.
	ProposeForAnnouncement(ctx context.Context, announcementID string) ([]MatchProposal, error)
	// ProposeForRoute enumerates compatible open announcements for a route.
	ProposeForRoute(ctx context.Context, routeID string) ([]MatchProposal, error)
	// OfferDirect records a carrier volunteering for an open announcement
	// without a declared route. The resulting match consumes no route
	// capacity when accepted.
	OfferDirect(ctx context.Context, in DirectOfferInput) (MatchProposal, error)
	// AcceptMatch atomically reserves route capacity, flips the
	// announcement to matched, and hands off to the delivery lifecycle to
	// create the delivery. Exactly one concurrent acceptance wins; the
	// losers receive domain.ErrConcurrencyConflict.
	AcceptMatch(ctx context.Context, in AcceptMatchInput) (*domain.Delivery, error)
}
