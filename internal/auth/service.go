package auth

import (
	"context"
	"errors"

	"github.com/Ruokavalitys/rv-update-backend/internal/shared"
	"github.com/Ruokavalitys/rv-update-backend/internal/users"
)

// Service wraps authentication business rules.
type Service struct {
	accounts Accounts
}

// NewService constructs a new Service.
func NewService(accounts Accounts) *Service {
	return &Service{accounts: accounts}
}

// Authenticate validates username/password credentials. Inactive accounts
// and unknown usernames fail identically.
func (s *Service) Authenticate(ctx context.Context, username, password string) (users.User, error) {
	user, err := s.accounts.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return users.User{}, shared.ErrInvalidCredentials
		}
		return users.User{}, err
	}
	if user.Role == users.RoleInactive {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if !s.accounts.VerifyPassword(user, password) {
		return users.User{}, shared.ErrInvalidCredentials
	}
	return user, nil
}

// AuthenticateRFID validates an RFID tag read at a kiosk terminal.
func (s *Service) AuthenticateRFID(ctx context.Context, rfid string) (users.User, error) {
	user, err := s.accounts.FindByRFID(ctx, rfid)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return users.User{}, shared.ErrInvalidCredentials
		}
		return users.User{}, err
	}
	if user.Role == users.RoleInactive {
		return users.User{}, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Register creates a new account through the accounts service.
func (s *Service) Register(ctx context.Context, reg users.Registration) (users.User, error) {
	return s.accounts.Register(ctx, reg)
}
