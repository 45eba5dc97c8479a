package domain

import "errors"

// Expected outcomes returned to callers as typed results. The API layer maps
// each one to an HTTP status; anything else is treated as an internal fault.
var (
	ErrInvalidCoordinate    = errors.New("invalid coordinate")
	ErrAnnouncementNotFound = errors.New("announcement not found")
	ErrRouteNotFound        = errors.New("route not found")
	ErrMatchNotFound        = errors.New("match not found")
	ErrDeliveryNotFound     = errors.New("delivery not found")
	ErrCapacityExceeded     = errors.New("route capacity exceeded")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrConcurrencyConflict  = errors.New("concurrent modification conflict")
	ErrValidationFailed     = errors.New("validation failed")
	ErrUnauthorized         = errors.New("operation not permitted")
	ErrMatchExpired         = errors.New("match proposal expired")
	ErrAnnouncementNotOpen  = errors.New("announcement is not open")
)

// Auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
)
