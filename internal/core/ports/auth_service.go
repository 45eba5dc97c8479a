package ports

import (
	"context"

	"github.com/ecodeli/delivery-engine/internal/core/domain"
)

// AuthService implements account registration and login.
type AuthService interface {
	Register(ctx context.Context, email, password, name, role string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
}
