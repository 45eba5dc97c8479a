package domain

import "time"

// Route is a carrier's declared trip with spare capacity. Remaining capacity
// is the principal shared mutable resource: it is only ever changed through
// the repository's atomic reserve/release primitives and must stay within
// [0, declared].
type Route struct {
	ID                string    `json:"id" bson:"_id,omitempty"`
	CarrierID         string    `json:"carrier_id" bson:"carrier_id"`
	Origin            Address   `json:"origin" bson:"origin"`
	Destination       Address   `json:"destination" bson:"destination"`
	DepartureAt       time.Time `json:"departure_at" bson:"departure_at"`
	ArrivalAt         time.Time `json:"arrival_at" bson:"arrival_at"`
	Flexible          bool      `json:"flexible" bson:"flexible"`
	DeclaredWeightKg  float64   `json:"declared_weight_kg" bson:"declared_weight_kg"`
	RemainingWeightKg float64   `json:"remaining_weight_kg" bson:"remaining_weight_kg"`
	DeclaredVolumeM3  float64   `json:"declared_volume_m3" bson:"declared_volume_m3"`
	RemainingVolumeM3 float64   `json:"remaining_volume_m3" bson:"remaining_volume_m3"`
	PricePerKg        float64   `json:"price_per_kg" bson:"price_per_kg"`
	Currency          string    `json:"currency" bson:"currency"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at"`
}

// Fits reports whether the package fits in the route's remaining capacity.
func (r *Route) Fits(p Package) bool {
	return p.WeightKg <= r.RemainingWeightKg && p.VolumeM3 <= r.RemainingVolumeM3
}

// CoversWindow reports whether the route's travel can serve the desired
// window: a flexible route always can, otherwise the trip must fit inside it.
func (r *Route) CoversWindow(w TimeWindow) bool {
	if r.Flexible {
		return true
	}
	return w.Contains(r.DepartureAt, r.ArrivalAt)
}
