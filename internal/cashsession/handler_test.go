package cashsession_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/parkyard/parkyard/internal/cashsession"
	"github.com/parkyard/parkyard/internal/platform/httpx"
	"github.com/parkyard/parkyard/internal/shared"
)

func newSessionRouter(f *fixture, role shared.Role) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithOperator(req.Context(), shared.Operator{ID: 9, Username: "op", Role: role})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/session", cashsession.NewHandler(nil, f.svc).MountRoutes)
	return r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func TestHandlerOpenAndStatus(t *testing.T) {
	f := newFixture(t)
	h := newSessionRouter(f, shared.RoleNormal)

	res := do(h, http.MethodPost, "/session/open", `{"initialValue":"100.00"}`)
	require.Equal(t, http.StatusCreated, res.Code)
	require.Contains(t, res.Body.String(), `"initialValue":"100.00"`)

	res = do(h, http.MethodGet, "/session/status", "")
	require.Equal(t, http.StatusOK, res.Code)
	var status cashsession.Status
	require.NoError(t, json.NewDecoder(res.Body).Decode(&status))
	require.Equal(t, cashsession.StateOpen, status.State)

	res = do(h, http.MethodPost, "/session/open", `{"initialValue":"1.005"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestHandlerCloseReportsParkedVehicles(t *testing.T) {
	f := newFixture(t)
	h := newSessionRouter(f, shared.RoleNormal)
	opened, err := f.svc.Open(operatorCtx(), 0)
	require.NoError(t, err)
	f.lot.inside = 3
	path := "/session/" + strconv.FormatInt(opened.ID, 10) + "/close"

	res := do(h, http.MethodPost, path, "")
	require.Equal(t, http.StatusConflict, res.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.NewDecoder(res.Body).Decode(&problem))
	require.Equal(t, cashsession.ReasonVehiclesStillParked, problem.Code)
	require.EqualValues(t, 3, problem.Details["count"])

	res = do(h, http.MethodPost, path, `{"confirmDestroy":true}`)
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `"state":"CLOSED"`)
}

func TestHandlerReopenNeedsManager(t *testing.T) {
	f := newFixture(t)
	opened, err := f.svc.Open(operatorCtx(), 0)
	require.NoError(t, err)
	_, err = f.svc.Close(operatorCtx(), opened.ID, false)
	require.NoError(t, err)
	path := "/session/" + strconv.FormatInt(opened.ID, 10) + "/reopen"

	res := do(newSessionRouter(f, shared.RoleNormal), http.MethodPost, path, "")
	require.Equal(t, http.StatusForbidden, res.Code)

	status, err := f.svc.Status(operatorCtx())
	require.NoError(t, err)
	require.Equal(t, cashsession.StateClosed, status.State)

	res = do(newSessionRouter(f, shared.RoleManager), http.MethodPost, path, "")
	require.Equal(t, http.StatusOK, res.Code)
}
