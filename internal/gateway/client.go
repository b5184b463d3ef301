package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parkyard/parkyard/internal/auth"
	"github.com/parkyard/parkyard/internal/billing"
	"github.com/parkyard/parkyard/internal/cashsession"
	"github.com/parkyard/parkyard/internal/ledger"
	"github.com/parkyard/parkyard/internal/money"
	"github.com/parkyard/parkyard/internal/platform/httpx"
	"github.com/parkyard/parkyard/internal/shared"
	"github.com/parkyard/parkyard/internal/vehicles"
)

// Client talks to the parkyard API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a Client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token, e.g. after login.
func (c *Client) SetToken(token string) {
	c.token = token
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates and keeps the returned token.
func (c *Client) Login(ctx context.Context, username, password string) Result[auth.LoginResult] {
	res := call[auth.LoginResult](ctx, c, http.MethodPost, "/auth/login", loginRequest{Username: username, Password: password}, nil)
	if v, ok := res.Value(); ok {
		c.token = v.Token
	}
	return res
}

// SessionStatus fetches the authoritative session state.
func (c *Client) SessionStatus(ctx context.Context) Result[cashsession.Status] {
	return call[cashsession.Status](ctx, c, http.MethodGet, "/session/status", nil, nil)
}

type initialValueRequest struct {
	InitialValue money.Amount `json:"initialValue"`
}

// OpenSession opens a new session.
func (c *Client) OpenSession(ctx context.Context, initial money.Amount) Result[cashsession.Session] {
	return call[cashsession.Session](ctx, c, http.MethodPost, "/session/open", initialValueRequest{InitialValue: initial}, nil)
}

type closeRequest struct {
	ConfirmDestroy bool `json:"confirmDestroy"`
}

// CloseSession closes a session. A refusal because vehicles are still parked
// comes back as a successful result carrying RequiresConfirmation.
func (c *Client) CloseSession(ctx context.Context, id int64, confirmDestroy bool) Result[cashsession.CloseResult] {
	res := call[cashsession.CloseResult](ctx, c, http.MethodPost, sessionPath(id, "/close"), closeRequest{ConfirmDestroy: confirmDestroy}, nil)
	if e := res.Err(); e != nil && e.Code == cashsession.ReasonVehiclesStillParked {
		return Ok(cashsession.CloseResult{RequiresConfirmation: &cashsession.Confirmation{
			Reason:  e.Code,
			Details: normalizeDetails(e.Details),
		}})
	}
	return res
}

// ReopenSession reopens a closed session.
func (c *Client) ReopenSession(ctx context.Context, id int64) Result[cashsession.Session] {
	return call[cashsession.Session](ctx, c, http.MethodPost, sessionPath(id, "/reopen"), nil, nil)
}

// UpdateInitialValue edits a session's initial value.
func (c *Client) UpdateInitialValue(ctx context.Context, id int64, v money.Amount) Result[cashsession.Session] {
	return call[cashsession.Session](ctx, c, http.MethodPut, sessionPath(id, ""), initialValueRequest{InitialValue: v}, nil)
}

// SessionLedger fetches the server-side totals.
func (c *Client) SessionLedger(ctx context.Context, id int64) Result[ledger.SessionTotals] {
	return call[ledger.SessionTotals](ctx, c, http.MethodGet, sessionPath(id, "/ledger"), nil, nil)
}

// ListMethods lists billing methods.
func (c *Client) ListMethods(ctx context.Context, activeOnly bool) Result[[]billing.Method] {
	return call[[]billing.Method](ctx, c, http.MethodGet, "/billing-methods?active="+strconv.FormatBool(activeOnly), nil, nil)
}

// CreateMethod creates a billing method.
func (c *Client) CreateMethod(ctx context.Context, in billing.MethodInput) Result[billing.Method] {
	return call[billing.Method](ctx, c, http.MethodPost, "/billing-methods", in, nil)
}

// UpdateMethod edits a billing method.
func (c *Client) UpdateMethod(ctx context.Context, id int64, in billing.MethodInput) Result[billing.Method] {
	return call[billing.Method](ctx, c, http.MethodPut, methodPath(id), in, nil)
}

// DeactivateMethod deactivates a billing method.
func (c *Client) DeactivateMethod(ctx context.Context, id int64) Result[billing.Method] {
	return call[billing.Method](ctx, c, http.MethodDelete, methodPath(id), nil, nil)
}

// ReactivateMethod reactivates a billing method.
func (c *Client) ReactivateMethod(ctx context.Context, id int64) Result[billing.Method] {
	return call[billing.Method](ctx, c, http.MethodPatch, methodPath(id), nil, nil)
}

// Calculate asks the server to quote a stay at the given instant.
func (c *Client) Calculate(ctx context.Context, stayID int64, at time.Time) Result[vehicles.Calculation] {
	path := "/vehicles/" + strconv.FormatInt(stayID, 10) + "/calculate"
	if !at.IsZero() {
		path += "?at=" + url.QueryEscape(at.Format(time.RFC3339))
	}
	return call[vehicles.Calculation](ctx, c, http.MethodGet, path, nil, nil)
}

type exitRequest struct {
	PaymentMethod  ledger.PaymentMethod `json:"paymentMethod"`
	Discount       money.Amount         `json:"discount"`
	AmountReceived money.Amount         `json:"amountReceived"`
}

// CommitExit books the exit. An empty idempotency key gets a fresh one.
func (c *Client) CommitExit(ctx context.Context, stayID int64, in vehicles.ExitInput) Result[vehicles.ExitResult] {
	key := in.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	body := exitRequest{PaymentMethod: in.PaymentMethod, Discount: in.Discount, AmountReceived: in.AmountReceived}
	path := "/vehicles/" + strconv.FormatInt(stayID, 10) + "/exit"
	return call[vehicles.ExitResult](ctx, c, http.MethodPost, path, body, map[string]string{"Idempotency-Key": key})
}

func sessionPath(id int64, suffix string) string {
	return "/session/" + strconv.FormatInt(id, 10) + suffix
}

func methodPath(id int64) string {
	return "/billing-methods/" + strconv.FormatInt(id, 10)
}

func call[T any](ctx context.Context, c *Client, method, path string, body any, headers map[string]string) Result[T] {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return Err[T](shared.KindValidation, fmt.Sprintf("encode request: %v", err))
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return Err[T](shared.KindNetwork, err.Error())
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("api request failed", slog.String("method", method), slog.String("path", path), slog.Any("error", err))
		return Err[T](shared.KindNetwork, networkMessage(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return Result[T]{err: decodeProblem(resp)}
	}
	var out T
	if resp.StatusCode == http.StatusNoContent {
		return Ok(out)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Err[T](shared.KindRemote, fmt.Sprintf("malformed response from %s: %v", path, err))
	}
	return Ok(out)
}

func networkMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	return "network unavailable: " + err.Error()
}

func decodeProblem(resp *http.Response) *shared.Error {
	var problem httpx.ProblemDetail
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(raw, &problem); err != nil || problem.Status == 0 {
		return shared.NewError(shared.KindRemote, "REMOTE_ERROR", fmt.Sprintf("server returned %d", resp.StatusCode))
	}
	kind := shared.Kind(problem.Kind)
	if kind == "" {
		kind = kindForStatus(resp.StatusCode)
	}
	code := problem.Code
	if code == "" {
		code = string(kind)
	}
	message := problem.Detail
	if message == "" {
		message = problem.Title
	}
	e := shared.NewError(kind, code, message)
	if len(problem.Details) > 0 {
		e = e.WithDetails(problem.Details)
	}
	return e
}

func kindForStatus(status int) shared.Kind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return shared.KindValidation
	case http.StatusConflict:
		return shared.KindStateConflict
	case http.StatusNotFound:
		return shared.KindNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return shared.KindPermission
	default:
		return shared.KindRemote
	}
}

// normalizeDetails turns JSON numbers that hold integers back into ints.
func normalizeDetails(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if f, ok := v.(float64); ok && f == float64(int(f)) {
			out[k] = int(f)
			continue
		}
		out[k] = v
	}
	return out
}
