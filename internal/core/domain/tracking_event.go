package domain

import "time"

// TrackingEvent is an immutable, append-only log entry capturing one status
// change on a delivery. Seq mirrors the delivery version at the time the
// transition was accepted, so events for one delivery are strictly ordered.
type TrackingEvent struct {
	ID         string         `json:"id" bson:"_id,omitempty"`
	DeliveryID string         `json:"delivery_id" bson:"delivery_id"`
	Seq        int64          `json:"seq" bson:"seq"`
	FromStatus DeliveryStatus `json:"from_status" bson:"from_status"`
	ToStatus   DeliveryStatus `json:"to_status" bson:"to_status"`
	ActorID    string         `json:"actor_id,omitempty" bson:"actor_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp" bson:"timestamp"`
	Location   *Coordinates   `json:"location,omitempty" bson:"location,omitempty"`
	Note       string         `json:"note,omitempty" bson:"note,omitempty"`
}
