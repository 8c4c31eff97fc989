package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/procura-ims/procura/internal/shared"
)

// Service wraps authentication business rules. Lookup failures, inactive
// accounts and wrong passwords all collapse into ErrInvalidCredentials.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// AuthenticateStaff validates staff credentials and returns the actor.
func (s *Service) AuthenticateStaff(ctx context.Context, email, password string) (shared.Actor, error) {
	user, err := s.repo.FindStaffByEmail(ctx, email)
	if err != nil {
		return shared.Actor{}, shared.ErrInvalidCredentials
	}
	if !user.Active {
		return shared.Actor{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return shared.Actor{}, shared.ErrInvalidCredentials
	}
	return shared.Actor{
		Kind:        shared.ActorStaff,
		UserID:      user.ID,
		Role:        user.Role,
		DisplayName: user.Username,
		Email:       user.Email,
	}, nil
}

// AuthenticateSupplier validates supplier portal credentials.
func (s *Service) AuthenticateSupplier(ctx context.Context, email, password string) (shared.Actor, error) {
	account, err := s.repo.FindSupplierByEmail(ctx, email)
	if err != nil {
		return shared.Actor{}, shared.ErrInvalidCredentials
	}
	if !account.Active {
		return shared.Actor{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return shared.Actor{}, shared.ErrInvalidCredentials
	}
	return shared.Actor{
		Kind:        shared.ActorSupplier,
		SupplierID:  account.SupplierID,
		DisplayName: account.CompanyName,
		Email:       account.Email,
	}, nil
}
