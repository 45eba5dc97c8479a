package handler

import (
	"time"

	"github.com/ecodeli/delivery-engine/internal/core/ports"
)

type coordinatesRequest struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

type addressRequest struct {
	Address     string             `json:"address"  validate:"required"`
	City        string             `json:"city"     validate:"required"`
	ZipCode     string             `json:"zip_code"`
	Coordinates coordinatesRequest `json:"coordinates"`
}

func (r addressRequest) toInput() ports.AddressInput {
	return ports.AddressInput{
		Address: r.Address,
		City:    r.City,
		ZipCode: r.ZipCode,
		Lat:     r.Coordinates.Lat,
		Lng:     r.Coordinates.Lng,
	}
}

type packageRequest struct {
	WeightKg    float64 `json:"weight_kg" validate:"gt=0"`
	VolumeM3    float64 `json:"volume_m3" validate:"gte=0"`
	Fragile     bool    `json:"fragile"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
}

type createAnnouncementRequest struct {
	Title       string         `json:"title"        validate:"required"`
	Origin      addressRequest `json:"origin"       validate:"required"`
	Destination addressRequest `json:"destination"  validate:"required"`
	WindowStart time.Time      `json:"window_start" validate:"required"`
	WindowEnd   time.Time      `json:"window_end"   validate:"required,gtfield=WindowStart"`
	Package     packageRequest `json:"package"      validate:"required"`
	Price       float64        `json:"price"        validate:"gt=0"`
	Currency    string         `json:"currency"     validate:"required,len=3"`
}

type updateAnnouncementRequest struct {
	Title       string    `json:"title"        validate:"required"`
	WindowStart time.Time `json:"window_start" validate:"required"`
	WindowEnd   time.Time `json:"window_end"   validate:"required,gtfield=WindowStart"`
	Price       float64   `json:"price"        validate:"gt=0"`
}

type createRouteRequest struct {
	Origin      addressRequest `json:"origin"       validate:"required"`
	Destination addressRequest `json:"destination"  validate:"required"`
	DepartureAt time.Time      `json:"departure_at" validate:"required"`
	ArrivalAt   time.Time      `json:"arrival_at"   validate:"required,gtfield=DepartureAt"`
	Flexible    bool           `json:"flexible"`
	WeightKg    float64        `json:"weight_kg"    validate:"gt=0"`
	VolumeM3    float64        `json:"volume_m3"    validate:"gte=0"`
	PricePerKg  float64        `json:"price_per_kg" validate:"gte=0"`
	Currency    string         `json:"currency"     validate:"required,len=3"`
}

type transitionRequest struct {
	Location *coordinatesRequest `json:"location"`
	Note     string              `json:"note"`
}

type validateRequest struct {
	Code          string              `json:"code" validate:"required,len=6,numeric"`
	RecipientName string              `json:"recipient_name"`
	SignatureURL  string              `json:"signature_url"`
	PhotoURLs     []string            `json:"photo_urls"`
	Location      *coordinatesRequest `json:"location"`
}

type validateNFCRequest struct {
	TagID         string              `json:"tag_id" validate:"required"`
	RecipientName string              `json:"recipient_name"`
	SignatureURL  string              `json:"signature_url"`
	PhotoURLs     []string            `json:"photo_urls"`
	Location      *coordinatesRequest `json:"location"`
}
