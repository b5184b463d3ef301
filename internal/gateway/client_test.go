package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parkyard/parkyard/internal/cashsession"
	"github.com/parkyard/parkyard/internal/gateway"
	"github.com/parkyard/parkyard/internal/ledger"
	"github.com/parkyard/parkyard/internal/money"
	"github.com/parkyard/parkyard/internal/platform/httpx"
	"github.com/parkyard/parkyard/internal/shared"
	"github.com/parkyard/parkyard/internal/vehicles"
)

func TestClientMapsProblemToTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondError(w, cashsession.ErrInvalidTransition.Wrapf("cannot reopen from OPEN"))
	}))
	defer srv.Close()

	res := gateway.NewClient(srv.URL).ReopenSession(context.Background(), 3)
	require.False(t, res.IsOk())
	require.Equal(t, shared.KindStateConflict, res.Kind())
	_, err := res.Unwrap()
	require.ErrorIs(t, err, cashsession.ErrInvalidTransition)
	require.Contains(t, err.Error(), "cannot reopen from OPEN")
}

func TestClientCloseNeedsConfirmation(t *testing.T) {
	var confirm []bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/session/5/close", r.URL.Path)
		var body struct {
			ConfirmDestroy bool `json:"confirmDestroy"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		confirm = append(confirm, body.ConfirmDestroy)
		if !body.ConfirmDestroy {
			_, err := cashsession.ParkedConfirmation(2)
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, cashsession.CloseResult{
			Session:           &cashsession.Session{ID: 5, State: cashsession.StateClosed},
			DiscardedVehicles: 2,
		})
	}))
	defer srv.Close()
	c := gateway.NewClient(srv.URL)

	res, err := c.CloseSession(context.Background(), 5, false).Unwrap()
	require.NoError(t, err)
	require.Nil(t, res.Session)
	require.NotNil(t, res.RequiresConfirmation)
	require.Equal(t, cashsession.ReasonVehiclesStillParked, res.RequiresConfirmation.Reason)
	require.Equal(t, 2, res.RequiresConfirmation.Details["count"])

	res, err = c.CloseSession(context.Background(), 5, true).Unwrap()
	require.NoError(t, err)
	require.Equal(t, cashsession.StateClosed, res.Session.State)
	require.Equal(t, 2, res.DiscardedVehicles)
	require.Equal(t, []bool{false, true}, confirm)
}

func TestClientCommitExitSendsKeyAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.Equal(t, "exit-42", r.Header.Get("Idempotency-Key"))
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"paymentMethod":"CASH","discount":"0.00","amountReceived":"30.00"}`, string(raw))
		httpx.JSON(w, http.StatusOK, vehicles.ExitResult{Transaction: ledger.Transaction{
			ID:          1,
			FinalAmount: money.MustParse("23.50"),
			ChangeGiven: money.MustParse("6.50"),
		}})
	}))
	defer srv.Close()

	c := gateway.NewClient(srv.URL, gateway.WithToken("tok"))
	res, err := c.CommitExit(context.Background(), 42, vehicles.ExitInput{
		PaymentMethod:  ledger.PaymentCash,
		AmountReceived: money.MustParse("30.00"),
		IdempotencyKey: "exit-42",
	}).Unwrap()
	require.NoError(t, err)
	require.Equal(t, money.MustParse("6.50"), res.Transaction.ChangeGiven)
}

func TestClientTransportAndPayloadFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/session/status":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"state":`))
		default:
			http.Error(w, "upstream down", http.StatusBadGateway)
		}
	}))
	c := gateway.NewClient(srv.URL)

	res := c.SessionStatus(context.Background())
	require.Equal(t, shared.KindRemote, res.Kind())

	res2 := c.SessionLedger(context.Background(), 1)
	require.Equal(t, shared.KindRemote, res2.Kind())

	srv.Close()
	res = c.SessionStatus(context.Background())
	require.Equal(t, shared.KindNetwork, res.Kind())
}

func TestResultHelpers(t *testing.T) {
	ok := gateway.Ok(7)
	v, valid := ok.Value()
	require.True(t, valid)
	require.Equal(t, 7, v)
	require.Nil(t, ok.Err())

	failed := gateway.Fail[int](cashsession.ErrNoOpenSession)
	require.Equal(t, shared.KindStateConflict, failed.Kind())
	_, err := failed.Unwrap()
	require.ErrorIs(t, err, cashsession.ErrNoOpenSession)

	plain := gateway.Fail[int](errors.New("boom"))
	require.Equal(t, shared.KindInternal, plain.Kind())
}
