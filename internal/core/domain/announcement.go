package domain

import "time"

// AnnouncementStatus represents the lifecycle state of a transport request.
type AnnouncementStatus string

const (
	AnnouncementOpen       AnnouncementStatus = "open"
	AnnouncementMatched    AnnouncementStatus = "matched"
	AnnouncementInProgress AnnouncementStatus = "in_progress"
	AnnouncementCompleted  AnnouncementStatus = "completed"
	AnnouncementCancelled  AnnouncementStatus = "cancelled"
	AnnouncementExpired    AnnouncementStatus = "expired"
)

// Package contains the attributes matched against route capacity.
type Package struct {
	WeightKg    float64 `json:"weight_kg" bson:"weight_kg"`
	VolumeM3    float64 `json:"volume_m3" bson:"volume_m3"`
	Fragile     bool    `json:"fragile" bson:"fragile"`
	Category    string  `json:"category" bson:"category"`
	Description string  `json:"description,omitempty" bson:"description,omitempty"`
}

// Announcement is a client's transport request awaiting a carrier.
// Edits are allowed only while the announcement is open; the matcher owns
// every status transition after that.
type Announcement struct {
	ID          string             `json:"id" bson:"_id,omitempty"`
	ClientID    string             `json:"client_id" bson:"client_id"`
	Title       string             `json:"title" bson:"title"`
	Origin      Address            `json:"origin" bson:"origin"`
	Destination Address            `json:"destination" bson:"destination"`
	Window      TimeWindow         `json:"window" bson:"window"`
	Package     Package            `json:"package" bson:"package"`
	Price       float64            `json:"price" bson:"price"`
	Currency    string             `json:"currency" bson:"currency"`
	Status      AnnouncementStatus `json:"status" bson:"status"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}

// Expired reports whether an open announcement's window has already closed.
func (a *Announcement) Expired(now time.Time) bool {
	return a.Status == AnnouncementOpen && now.After(a.Window.End)
}
