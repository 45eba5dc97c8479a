package domain

import "time"

// Coordinates represents a geographic point in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// Valid reports whether the point lies within [-90,90] latitude and
// [-180,180] longitude.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Address represents a physical location.
type Address struct {
	Address     string      `json:"address" bson:"address"`
	City        string      `json:"city" bson:"city"`
	ZipCode     string      `json:"zip_code" bson:"zip_code"`
	Coordinates Coordinates `json:"coordinates" bson:"coordinates"`
}

// TimeWindow is the interval inside which a transport must take place.
type TimeWindow struct {
	Start time.Time `json:"start" bson:"start"`
	End   time.Time `json:"end" bson:"end"`
}

// Contains reports whether the [from, to] interval fits inside the window.
func (w TimeWindow) Contains(from, to time.Time) bool {
	return !from.Before(w.Start) && !to.After(w.End)
}
