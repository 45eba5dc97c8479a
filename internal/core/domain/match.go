package domain

import "time"

// MatchStatus represents the lifecycle state of a match proposal.
type MatchStatus string

const (
	MatchProposed MatchStatus = "proposed"
	MatchAccepted MatchStatus = "accepted"
	MatchExpired  MatchStatus = "expired"
	MatchReleased MatchStatus = "released"
)

// Match is a proposed or accepted pairing of one announcement with one route,
// or with a carrier directly (RouteID empty). An announcement holds at most
// one accepted match at any time; that invariant is enforced by the
// announcement status CAS in the matching engine, not here.
type Match struct {
	ID             string      `json:"id" bson:"_id,omitempty"`
	AnnouncementID string      `json:"announcement_id" bson:"announcement_id"`
	RouteID        string      `json:"route_id,omitempty" bson:"route_id,omitempty"`
	CarrierID      string      `json:"carrier_id" bson:"carrier_id"`
	Score          float64     `json:"score" bson:"score"`
	Status         MatchStatus `json:"status" bson:"status"`
	ProposedAt     time.Time   `json:"proposed_at" bson:"proposed_at"`
	ExpiresAt      time.Time   `json:"expires_at" bson:"expires_at"`
	AcceptedAt     *time.Time  `json:"accepted_at,omitempty" bson:"accepted_at,omitempty"`
}

// Direct reports whether this is a carrier assignment without a declared
// route; such matches consume no route capacity.
func (m *Match) Direct() bool {
	return m.RouteID == ""
}
