package auth_test

import (
	"context"
	"encoding/json"
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

	"github.com/parkyard/parkyard/internal/auth"
	"github.com/parkyard/parkyard/internal/shared"
	_ "github.com/parkyard/parkyard/testing"
)

type stubRepo struct {
	account *auth.Account
}

func (s *stubRepo) FindByUsername(ctx context.Context, username string) (*auth.Account, error) {
	if s.account == nil || !strings.EqualFold(s.account.Username, username) {
		return nil, shared.ErrNotFound
	}
	return s.account, nil
}

func (s *stubRepo) TouchLogin(ctx context.Context, id int64) error {
	return nil
}

func newAuthRouter(t *testing.T, role shared.Role) (http.Handler, *auth.Service) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &stubRepo{account: &auth.Account{ID: 7, Username: "ana", PasswordHash: string(hash), Role: role, IsActive: true}}
	svc := auth.NewService(repo, shared.NewTokenStore(client, "test_token", "test-secret", time.Hour), nil)

	r := chi.NewRouter()
	r.Route("/auth", auth.NewHandler(nil, svc).MountRoutes)
	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(svc, nil))
		r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
			op, _ := shared.OperatorFromContext(r.Context())
			_ = json.NewEncoder(w).Encode(op)
		})
		r.With(auth.RequireRole(shared.RoleManager)).Post("/managed", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})
	return r, svc
}

func login(t *testing.T, h http.Handler, password string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"username":"ana","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func TestLoginIssuesUsableToken(t *testing.T) {
	h, _ := newAuthRouter(t, shared.RoleNormal)

	res := login(t, h, "secret123")
	require.Equal(t, http.StatusOK, res.Code)
	var out auth.LoginResult
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	require.NotEmpty(t, out.Token)
	require.Equal(t, shared.RoleNormal, out.Operator.Role)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+out.Token)
	me := httptest.NewRecorder()
	h.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	require.Contains(t, me.Body.String(), `"username":"ana"`)
}

func TestLoginInvalidCredentials(t *testing.T) {
	h, _ := newAuthRouter(t, shared.RoleNormal)

	res := login(t, h, "wrong-password")
	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Contains(t, res.Body.String(), "INVALID_CREDENTIALS")
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	h, _ := newAuthRouter(t, shared.RoleNormal)

	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/me", nil))
	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Contains(t, res.Body.String(), "TOKEN_MISSING")
}

func TestRequireRoleRejectsLowerRole(t *testing.T) {
	h, svc := newAuthRouter(t, shared.RoleNormal)
	out, err := svc.Login(context.Background(), "ana", "secret123")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/managed", nil)
	req.Header.Set("Authorization", "Bearer "+out.Token)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	require.Equal(t, http.StatusForbidden, res.Code)
	require.Contains(t, res.Body.String(), "FORBIDDEN")
}

func TestLogoutRevokesToken(t *testing.T) {
	h, svc := newAuthRouter(t, shared.RoleAdmin)
	out, err := svc.Login(context.Background(), "ana", "secret123")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+out.Token)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	require.Equal(t, http.StatusNoContent, res.Code)

	_, err = svc.Resolve(context.Background(), out.Token)
	require.ErrorIs(t, err, shared.ErrTokenInvalid)
}

func TestCheckRoleHierarchy(t *testing.T) {
	ctx := shared.ContextWithOperator(context.Background(), shared.Operator{ID: 1, Role: shared.RoleAdmin})
	require.NoError(t, auth.CheckRole(ctx, shared.RoleManager))
	require.NoError(t, auth.CheckRole(ctx, shared.RoleNormal))

	ctx = shared.ContextWithOperator(context.Background(), shared.Operator{ID: 2, Role: shared.RoleManager})
	require.ErrorIs(t, auth.CheckRole(ctx, shared.RoleAdmin), shared.ErrForbidden)

	require.ErrorIs(t, auth.CheckRole(context.Background(), shared.RoleNormal), shared.ErrTokenMissing)
}
