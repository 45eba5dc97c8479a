package domain

import "time"

const (
	RoleAdmin   = "admin"
	RoleClient  = "client"
	RoleCarrier = "carrier"
)

// User models an authenticated actor: a client posting announcements, a
// carrier declaring routes, or an admin.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Name         string    `json:"name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
