package service

import (
	"context"
	"errors"

	"github.com/ecodeli/delivery-engine/internal/core/domain"
	"github.com/ecodeli/delivery-engine/internal/core/ports"
)

// IdentityService answers authorization questions from persisted state.
// It implements ports.Identity.
type IdentityService struct {
	users      ports.AuthRepository
	deliveries ports.DeliveryRepository
}

func NewIdentityService(users ports.AuthRepository, deliveries ports.DeliveryRepository) *IdentityService {
	return &IdentityService{users: users, deliveries: deliveries}
}

// HasRole reports whether the user exists and carries the given role.
// An unknown user simply has no roles.
func (s *IdentityService) HasRole(ctx context.Context, userID, role string) (bool, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return u.Role == role, nil
}

// IsAssignedCarrier reports whether the user is the carrier assigned to the
// delivery.
func (s *IdentityService) IsAssignedCarrier(ctx context.Context, userID, deliveryID string) (bool, error) {
	d, err := s.deliveries.FindByID(ctx, deliveryID)
	if err != nil {
		if errors.Is(err, domain.ErrDeliveryNotFound) {
			return false, nil
		}
		return false, err
	}
	return d.CarrierID == userID, nil
}
