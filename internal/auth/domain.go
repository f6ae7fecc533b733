package auth

import (
	"context"

	"github.com/Ruokavalitys/rv-update-backend/internal/users"
)

// Accounts resolves and verifies kiosk accounts for login and registration.
type Accounts interface {
	FindByUsername(ctx context.Context, username string) (users.User, error)
	FindByRFID(ctx context.Context, rfid string) (users.User, error)
	VerifyPassword(u users.User, password string) bool
	Register(ctx context.Context, reg users.Registration) (users.User, error)
}
