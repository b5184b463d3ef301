package report_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/parkyard/parkyard/internal/cashsession"
	"github.com/parkyard/parkyard/internal/ledger"
	"github.com/parkyard/parkyard/internal/money"
	"github.com/parkyard/parkyard/report"
)

type stubSessions struct{}

func (stubSessions) Get(ctx context.Context, id int64) (*cashsession.Session, error) {
	if id != 7 {
		return nil, cashsession.ErrSessionNotFound
	}
	opened := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	return &cashsession.Session{ID: 7, Operator: "joao", State: cashsession.StateClosed, OpeningDate: &opened}, nil
}

type stubLedgers struct{}

func (stubLedgers) SessionLedger(ctx context.Context, id int64) (ledger.SessionTotals, error) {
	return ledger.SessionTotals{
		SessionID:        id,
		InitialValue:     money.MustParse("100.00"),
		ByMethod:         map[ledger.PaymentMethod]money.Amount{ledger.PaymentCash: money.MustParse("15.00"), ledger.PaymentPix: money.MustParse("8.00")},
		ExpensesByMethod: map[ledger.PaymentMethod]money.Amount{ledger.PaymentCash: money.MustParse("5.00")},
		VehicleTotal:     money.MustParse("15.00"),
		ProductTotal:     money.MustParse("8.00"),
		ExpenseTotal:     money.MustParse("5.00"),
		FinalValue:       money.MustParse("1118.00"),
	}, nil
}

func TestClosingReportHTML(t *testing.T) {
	rep, err := report.NewBuilder(stubSessions{}, stubLedgers{}).Build(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, rep.Lines, len(ledger.PaymentMethods))
	require.Equal(t, ledger.PaymentCash, rep.Lines[0].Method)

	html, err := rep.HTML()
	require.NoError(t, err)
	require.Contains(t, html, "Fechamento de caixa #7")
	require.Contains(t, html, "R$ 1.118,00")
	require.Contains(t, html, "01/07/2026 08:00")
	require.NotContains(t, html, "Inconsistências")
}

func TestClosingReportUnknownSession(t *testing.T) {
	_, err := report.NewBuilder(stubSessions{}, stubLedgers{}).Build(context.Background(), 9)
	require.ErrorIs(t, err, cashsession.ErrSessionNotFound)
}

func TestClosingPDFThroughGotenberg(t *testing.T) {
	gotenberg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/forms/chromium/convert/html", r.URL.Path)
		file, _, err := r.FormFile("files")
		require.NoError(t, err)
		body, err := io.ReadAll(file)
		require.NoError(t, err)
		require.True(t, strings.Contains(string(body), "Valor final"))
		switch r.FormValue("paperWidth") {
		case "8.27":
			require.Equal(t, "false", r.FormValue("singlePage"))
		case "3.15":
			require.Equal(t, "true", r.FormValue("singlePage"))
		default:
			t.Errorf("unexpected paperWidth %q", r.FormValue("paperWidth"))
		}
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer gotenberg.Close()

	h := report.NewHandler(report.NewBuilder(stubSessions{}, stubLedgers{}), report.NewClient(gotenberg.URL), nil)
	r := chi.NewRouter()
	r.Route("/session", h.MountSessionRoutes)

	res := httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/session/7/report.pdf", nil))
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "application/pdf", res.Header().Get("Content-Type"))
	require.Equal(t, "%PDF-1.7", res.Body.String())

	res = httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/session/7/report.pdf?paper=receipt", nil))
	require.Equal(t, http.StatusOK, res.Code)

	res = httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/session/7/report.pdf?paper=letter", nil))
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/session/9/report.pdf", nil))
	require.Equal(t, http.StatusNotFound, res.Code)
}

func TestGotenbergFailureIsRemote(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	_, err := report.NewClient(down.URL).RenderHTML(context.Background(), "<html></html>", report.PaperA4)
	require.ErrorIs(t, err, report.ErrRenderFailed)
}
