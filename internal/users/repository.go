package users

import "context"

// RepositoryPort defines data access for kiosk accounts.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	FindByID(ctx context.Context, userID int64) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)

	// RFIDCredentials returns every account with an RFID hash set.
	RFIDCredentials(ctx context.Context) ([]RFIDCredential, error)

	// InsertUser creates an account with role USER1 and zero balance,
	// returning its id. shared.ErrDuplicate on username or email collision.
	InsertUser(ctx context.Context, reg Registration, passwordHash string) (int64, error)

	// UpdateUser applies non-nil fields. A role change resolves the role
	// name through the role table; unknown roles return shared.ErrNotFound.
	UpdateUser(ctx context.Context, userID int64, upd Update) error
}
