package domain

import "time"

// DeliveryStatus represents the lifecycle state of a delivery.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryAccepted  DeliveryStatus = "accepted"
	DeliveryPickedUp  DeliveryStatus = "picked_up"
	DeliveryInTransit DeliveryStatus = "in_transit"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryConfirmed DeliveryStatus = "confirmed"
	DeliveryCancelled DeliveryStatus = "cancelled"
	DeliveryDisputed  DeliveryStatus = "disputed"
)

// validDeliveryTransitions defines the allowed state machine transitions.
// Confirmed and cancelled are terminal. A delivered parcel can no longer be
// cancelled; disputes are the only way out of delivered besides confirmation.
var validDeliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryPending:   {DeliveryAccepted, DeliveryCancelled, DeliveryDisputed},
	DeliveryAccepted:  {DeliveryPickedUp, DeliveryCancelled, DeliveryDisputed},
	DeliveryPickedUp:  {DeliveryInTransit, DeliveryCancelled, DeliveryDisputed},
	DeliveryInTransit: {DeliveryDelivered, DeliveryCancelled, DeliveryDisputed},
	DeliveryDelivered: {DeliveryConfirmed, DeliveryDisputed},
	DeliveryDisputed:  {DeliveryCancelled},
}

// CanTransitionTo reports whether a transition from s to next is valid.
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	for _, allowed := range validDeliveryTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryConfirmed || s == DeliveryCancelled
}

// ProofMethod identifies how a delivery was validated.
type ProofMethod string

const (
	ProofMethodCode ProofMethod = "code"
	ProofMethodNFC  ProofMethod = "nfc"
)

// ProofOfDelivery is the recorded evidence backing a delivered transition.
type ProofOfDelivery struct {
	Method        ProofMethod  `json:"method" bson:"method"`
	RecipientName string       `json:"recipient_name,omitempty" bson:"recipient_name,omitempty"`
	SignatureURL  string       `json:"signature_url,omitempty" bson:"signature_url,omitempty"`
	PhotoURLs     []string     `json:"photo_urls,omitempty" bson:"photo_urls,omitempty"`
	Location      *Coordinates `json:"location,omitempty" bson:"location,omitempty"`
	ValidatedAt   time.Time    `json:"validated_at" bson:"validated_at"`
}

// Delivery is the operational record tracking one accepted match from
// acceptance to confirmation. Version is the optimistic-concurrency counter:
// every successful transition increments it, and it doubles as the sequence
// number of the tracking event appended for that transition.
type Delivery struct {
	ID             string         `json:"id" bson:"_id,omitempty"`
	MatchID        string         `json:"match_id" bson:"match_id"`
	AnnouncementID string         `json:"announcement_id" bson:"announcement_id"`
	RouteID        string         `json:"route_id,omitempty" bson:"route_id,omitempty"`
	ClientID       string         `json:"client_id" bson:"client_id"`
	CarrierID      string         `json:"carrier_id" bson:"carrier_id"`
	Status         DeliveryStatus `json:"status" bson:"status"`
	Version        int64          `json:"version" bson:"version"`

	// ValidationCode is the single-use 6-digit completion proof. It is
	// generated at creation, cleared by admin invalidation, and flagged
	// consumed in the same atomic operation that moves the delivery to
	// delivered. Never serialised to clients.
	ValidationCode string `json:"-" bson:"validation_code,omitempty"`
	CodeConsumed   bool   `json:"-" bson:"code_consumed"`

	// Reserved capacity to restore if the delivery is cancelled.
	ReservedWeightKg float64 `json:"-" bson:"reserved_weight_kg"`
	ReservedVolumeM3 float64 `json:"-" bson:"reserved_volume_m3"`
	CapacityReleased bool    `json:"-" bson:"capacity_released"`

	Proof *ProofOfDelivery `json:"proof,omitempty" bson:"proof,omitempty"`

	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty" bson:"accepted_at,omitempty"`
	PickedUpAt  *time.Time `json:"picked_up_at,omitempty" bson:"picked_up_at,omitempty"`
	InTransitAt *time.Time `json:"in_transit_at,omitempty" bson:"in_transit_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty" bson:"delivered_at,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty" bson:"confirmed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	DisputedAt  *time.Time `json:"disputed_at,omitempty" bson:"disputed_at,omitempty"`
}
