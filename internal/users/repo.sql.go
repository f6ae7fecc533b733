package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ruokavalitys/rv-update-backend/internal/shared"
)

// Repository provides PostgreSQL backed persistence over the legacy
// rvperson and role tables.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userSelect = `SELECT u.userid, u.name, COALESCE(u.realname, u.name), u.univident,
	u.saldo, COALESCE(r.role, 'INACTIVE'), COALESCE(u.privacy_level, 0),
	u.pass, COALESCE(u.rfid, '')
FROM rvperson u
LEFT JOIN role r ON r.roleid = u.roleid`

func scanUser(row pgx.CollectableRow) (User, error) {
	var u User
	err := row.Scan(&u.UserID, &u.Username, &u.FullName, &u.Email,
		&u.Balance, &u.Role, &u.PrivacyLevel, &u.PasswordHash, &u.RFIDHash)
	return u, err
}

func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, userSelect+"\nORDER BY u.userid")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return pgx.CollectRows(rows, scanUser)
}

func (r *Repository) FindByID(ctx context.Context, userID int64) (User, error) {
	return r.findOne(ctx, "u.userid = $1", userID)
}

func (r *Repository) FindByUsername(ctx context.Context, username string) (User, error) {
	return r.findOne(ctx, "u.name = $1", username)
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (User, error) {
	return r.findOne(ctx, "u.univident = $1", email)
}

func (r *Repository) findOne(ctx context.Context, cond string, arg any) (User, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf("%s\nWHERE %s", userSelect, cond), arg)
	if err != nil {
		return User{}, fmt.Errorf("find user: %w", err)
	}
	u, err := pgx.CollectOneRow(rows, scanUser)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, shared.ErrNotFound
	}
	return u, err
}

func (r *Repository) RFIDCredentials(ctx context.Context) ([]RFIDCredential, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT userid, rfid FROM rvperson WHERE rfid IS NOT NULL AND rfid <> ''`)
	if err != nil {
		return nil, fmt.Errorf("list rfid credentials: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (RFIDCredential, error) {
		var c RFIDCredential
		err := row.Scan(&c.UserID, &c.RFIDHash)
		return c, err
	})
}

func (r *Repository) InsertUser(ctx context.Context, reg Registration, passwordHash string) (int64, error) {
	var userID int64
	err := r.pool.QueryRow(ctx, `INSERT INTO rvperson (createdate, roleid, name, univident, pass, saldo, realname)
VALUES (now(), (SELECT roleid FROM role WHERE role = $5), $1, $2, $3, 0, $4)
RETURNING userid`,
		reg.Username, reg.Email, passwordHash, reg.FullName, RoleUser).Scan(&userID)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, shared.ErrDuplicate
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return userID, nil
}

func (r *Repository) UpdateUser(ctx context.Context, userID int64, upd Update) error {
	sets := []string{}
	args := []any{userID}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Username != nil {
		add("name", *upd.Username)
	}
	if upd.FullName != nil {
		add("realname", *upd.FullName)
	}
	if upd.Email != nil {
		add("univident", *upd.Email)
	}
	if upd.PrivacyLevel != nil {
		add("privacy_level", *upd.PrivacyLevel)
	}
	if upd.PasswordHash != nil {
		add("pass", *upd.PasswordHash)
	}
	if upd.RFIDHash != nil {
		add("rfid", *upd.RFIDHash)
	}
	if upd.Role != nil {
		var roleID int64
		err := r.pool.QueryRow(ctx, `SELECT roleid FROM role WHERE role = $1`, *upd.Role).Scan(&roleID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return fmt.Errorf("resolve role: %w", err)
		}
		add("roleid", roleID)
	}
	if len(sets) == 0 {
		return nil
	}

	tag, err := r.pool.Exec(ctx,
		fmt.Sprintf("UPDATE rvperson SET %s WHERE userid = $1", strings.Join(sets, ", ")), args...)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.ErrDuplicate
		}
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
