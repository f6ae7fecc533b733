package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/Ruokavalitys/rv-update-backend/internal/shared"
)

// bcryptCost matches the cost the legacy account hashes were created with,
// so old and new credentials verify interchangeably.
const bcryptCost = 11

// BalanceRecorder applies a balance delta through the ledger so admin
// balance edits land in the account history like any other money movement.
type BalanceRecorder interface {
	AdjustBalance(ctx context.Context, userID, delta, actorID int64) (int64, error)
}

// Service handles account business logic.
type Service struct {
	repo     RepositoryPort
	balances BalanceRecorder
	logger   *slog.Logger
}

// NewService builds Service. balances may be nil when balance edits are not
// exposed.
func NewService(repo RepositoryPort, balances BalanceRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, balances: balances, logger: logger}
}

// ListUsers returns all accounts.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// Get resolves one account by id.
func (s *Service) Get(ctx context.Context, userID int64) (User, error) {
	return s.repo.FindByID(ctx, userID)
}

// Balance reports the account's current balance. Satisfies the purchase
// route's balance lookup.
func (s *Service) Balance(ctx context.Context, userID int64) (int64, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return u.Balance, nil
}

// Register creates an account. Username and email must be unused.
func (s *Service) Register(ctx context.Context, reg Registration) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	userID, err := s.repo.InsertUser(ctx, reg, string(hash))
	if err != nil {
		return User{}, err
	}
	s.logger.Info("account registered", slog.Int64("user_id", userID), slog.String("username", reg.Username))
	return s.repo.FindByID(ctx, userID)
}

// VerifyPassword reports whether password matches the account's hash.
func (s *Service) VerifyPassword(u User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// FindByUsername resolves one account by username.
func (s *Service) FindByUsername(ctx context.Context, username string) (User, error) {
	return s.repo.FindByUsername(ctx, username)
}

// FindByRFID resolves the account whose stored RFID hash matches the tag.
// Hashes are salted, so this compares against every stored credential; the
// account population of a snack kiosk keeps that cheap.
func (s *Service) FindByRFID(ctx context.Context, rfid string) (User, error) {
	creds, err := s.repo.RFIDCredentials(ctx)
	if err != nil {
		return User{}, err
	}
	for _, c := range creds {
		if bcrypt.CompareHashAndPassword([]byte(c.RFIDHash), []byte(rfid)) == nil {
			return s.repo.FindByID(ctx, c.UserID)
		}
	}
	return User{}, shared.ErrNotFound
}

// AccountEdit carries self-service edits to the calling account.
type AccountEdit struct {
	FullName     *string
	Email        *string
	Password     *string
	RFID         *string
	PrivacyLevel *int
}

// UpdateOwn applies self-service edits and returns the refreshed account.
func (s *Service) UpdateOwn(ctx context.Context, userID int64, edit AccountEdit) (User, error) {
	upd := Update{
		FullName:     edit.FullName,
		Email:        edit.Email,
		PrivacyLevel: edit.PrivacyLevel,
	}
	if err := s.hashCredentials(&upd, edit.Password, edit.RFID); err != nil {
		return User{}, err
	}
	if err := s.repo.UpdateUser(ctx, userID, upd); err != nil {
		return User{}, err
	}
	return s.repo.FindByID(ctx, userID)
}

// AdminEdit carries administrative edits, including role and balance.
type AdminEdit struct {
	Username     *string
	FullName     *string
	Email        *string
	Role         *string
	PrivacyLevel *int
	Password     *string
	RFID         *string
	Balance      *int64
}

// AdminUpdate applies administrative edits. A balance edit goes through the
// ledger so the movement shows up in the account history.
func (s *Service) AdminUpdate(ctx context.Context, userID int64, edit AdminEdit, actorID int64) (User, error) {
	upd := Update{
		Username:     edit.Username,
		FullName:     edit.FullName,
		Email:        edit.Email,
		Role:         edit.Role,
		PrivacyLevel: edit.PrivacyLevel,
	}
	if err := s.hashCredentials(&upd, edit.Password, edit.RFID); err != nil {
		return User{}, err
	}
	if err := s.repo.UpdateUser(ctx, userID, upd); err != nil {
		return User{}, err
	}

	if edit.Balance != nil {
		if s.balances == nil {
			return User{}, errors.New("balance edits not configured")
		}
		current, err := s.repo.FindByID(ctx, userID)
		if err != nil {
			return User{}, err
		}
		if delta := *edit.Balance - current.Balance; delta != 0 {
			if _, err := s.balances.AdjustBalance(ctx, userID, delta, actorID); err != nil {
				return User{}, err
			}
			s.logger.Info("balance adjusted by admin",
				slog.Int64("user_id", userID), slog.Int64("delta", delta), slog.Int64("actor_id", actorID))
		}
	}
	return s.repo.FindByID(ctx, userID)
}

func (s *Service) hashCredentials(upd *Update, password, rfid *string) error {
	if password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcryptCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		h := string(hash)
		upd.PasswordHash = &h
	}
	if rfid != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*rfid), bcryptCost)
		if err != nil {
			return fmt.Errorf("hash rfid: %w", err)
		}
		h := string(hash)
		upd.RFIDHash = &h
	}
	return nil
}
