package auth_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Ruokavalitys/rv-update-backend/internal/auth"
	"github.com/Ruokavalitys/rv-update-backend/internal/shared"
	"github.com/Ruokavalitys/rv-update-backend/internal/users"
)

type stubAccounts struct {
	user users.User
	rfid string
}

func (s *stubAccounts) FindByUsername(_ context.Context, username string) (users.User, error) {
	if s.user.Username != username {
		return users.User{}, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubAccounts) FindByRFID(_ context.Context, rfid string) (users.User, error) {
	if s.rfid == "" || s.rfid != rfid {
		return users.User{}, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubAccounts) VerifyPassword(u users.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func (s *stubAccounts) Register(_ context.Context, reg users.Registration) (users.User, error) {
	if s.user.Username == reg.Username {
		return users.User{}, shared.ErrDuplicate
	}
	return users.User{UserID: 99, Username: reg.Username, FullName: reg.FullName, Email: reg.Email, Role: users.RoleUser}, nil
}

func testUser(t *testing.T, role string) users.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)
	require.NoError(t, err)
	return users.User{
		UserID:       7,
		Username:     "ville",
		FullName:     "Ville Esimerkki",
		Email:        "ville@example.org",
		Role:         role,
		PasswordHash: string(hash),
	}
}

func newAuthRouter(t *testing.T, accounts *stubAccounts) (http.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, time.Hour)

	handler := auth.NewHandler(slog.Default(), auth.NewService(accounts), sessions)
	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	return r, sessions
}

func postJSON(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestAuthenticateIssuesSession(t *testing.T) {
	accounts := &stubAccounts{user: testUser(t, users.RoleUser)}
	router, sessions := newAuthRouter(t, accounts)

	res := postJSON(t, router, "/auth/authenticate", `{"username":"ville","password":"correct-password"}`)
	require.Equal(t, http.StatusOK, res.Code)

	var payload struct {
		AccessToken string     `json:"accessToken"`
		User        users.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	require.NotEmpty(t, payload.AccessToken)
	require.Equal(t, int64(7), payload.User.UserID)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+payload.AccessToken)
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, int64(7), sess.UserID)
	require.Equal(t, users.RoleUser, sess.Role)
}

func TestAuthenticateRejectsBadPassword(t *testing.T) {
	accounts := &stubAccounts{user: testUser(t, users.RoleUser)}
	router, _ := newAuthRouter(t, accounts)

	res := postJSON(t, router, "/auth/authenticate", `{"username":"ville","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestAuthenticateRejectsInactiveAccount(t *testing.T) {
	accounts := &stubAccounts{user: testUser(t, users.RoleInactive)}
	router, _ := newAuthRouter(t, accounts)

	res := postJSON(t, router, "/auth/authenticate", `{"username":"ville","password":"correct-password"}`)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestAuthenticateRFID(t *testing.T) {
	accounts := &stubAccounts{user: testUser(t, users.RoleUser), rfid: "04A224E2C33080"}
	router, _ := newAuthRouter(t, accounts)

	res := postJSON(t, router, "/auth/authenticate/rfid", `{"rfid":"04A224E2C33080"}`)
	require.Equal(t, http.StatusOK, res.Code)

	res = postJSON(t, router, "/auth/authenticate/rfid", `{"rfid":"other"}`)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRegisterConflict(t *testing.T) {
	accounts := &stubAccounts{user: testUser(t, users.RoleUser)}
	router, _ := newAuthRouter(t, accounts)

	res := postJSON(t, router, "/auth/register",
		`{"username":"ville","password":"longenough","fullName":"V","email":"v@example.org"}`)
	require.Equal(t, http.StatusConflict, res.Code)
}

func TestLogoutDestroysSession(t *testing.T) {
	accounts := &stubAccounts{user: testUser(t, users.RoleUser)}
	router, sessions := newAuthRouter(t, accounts)

	res := postJSON(t, router, "/auth/authenticate", `{"username":"ville","password":"correct-password"}`)
	require.Equal(t, http.StatusOK, res.Code)
	var payload struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+payload.AccessToken)
	out := httptest.NewRecorder()
	router.ServeHTTP(out, req)
	require.Equal(t, http.StatusNoContent, out.Code)

	check := httptest.NewRequest(http.MethodGet, "/", nil)
	check.Header.Set("Authorization", "Bearer "+payload.AccessToken)
	_, err := sessions.Load(context.Background(), check)
	require.ErrorIs(t, err, shared.ErrSessionNotFound)
}

func TestMiddlewareRoles(t *testing.T) {
	accounts := &stubAccounts{user: testUser(t, users.RoleUser)}
	_, sessions := newAuthRouter(t, accounts)
	mw := auth.NewMiddleware(slog.Default(), sessions)

	sess, err := sessions.Create(context.Background(), 7, users.RoleUser)
	require.NoError(t, err)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found := shared.SessionFromContext(r.Context())
		require.True(t, found)
		require.Equal(t, int64(7), got.UserID)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	res := httptest.NewRecorder()
	mw.RequireUser(ok).ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	res = httptest.NewRecorder()
	mw.RequireAdmin(ok).ServeHTTP(res, req.Clone(req.Context()))
	require.Equal(t, http.StatusForbidden, res.Code)

	anon := httptest.NewRequest(http.MethodGet, "/", nil)
	res = httptest.NewRecorder()
	mw.RequireUser(ok).ServeHTTP(res, anon)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}
