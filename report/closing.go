// Package report renders the cash session closing report and converts it to
// PDF through Gotenberg.
package report

import (
	"bytes"
	"context"
	"html/template"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/parkyard/parkyard/internal/cashsession"
	"github.com/parkyard/parkyard/internal/ledger"
	"github.com/parkyard/parkyard/internal/money"
)

// Sessions loads a cash session.
type Sessions interface {
	Get(ctx context.Context, id int64) (*cashsession.Session, error)
}

// Ledgers computes a session's totals.
type Ledgers interface {
	SessionLedger(ctx context.Context, sessionID int64) (ledger.SessionTotals, error)
}

// MethodLine is one payment method row of the report.
type MethodLine struct {
	Method   ledger.PaymentMethod
	Inflow   money.Amount
	Expenses money.Amount
}

// ClosingReport is the data behind the closing report.
type ClosingReport struct {
	Session     cashsession.Session
	Totals      ledger.SessionTotals
	Lines       []MethodLine
	GeneratedAt time.Time
}

// Builder assembles closing reports.
type Builder struct {
	sessions Sessions
	ledgers  Ledgers
	now      func() time.Time
}

// NewBuilder constructs a Builder.
func NewBuilder(sessions Sessions, ledgers Ledgers) *Builder {
	return &Builder{sessions: sessions, ledgers: ledgers, now: time.Now}
}

// Build loads the session and its totals.
func (b *Builder) Build(ctx context.Context, sessionID int64) (ClosingReport, error) {
	var (
		session *cashsession.Session
		totals  ledger.SessionTotals
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		session, err = b.sessions.Get(gctx, sessionID)
		return err
	})
	g.Go(func() error {
		var err error
		totals, err = b.ledgers.SessionLedger(gctx, sessionID)
		return err
	})
	if err := g.Wait(); err != nil {
		return ClosingReport{}, err
	}
	return ClosingReport{
		Session:     *session,
		Totals:      totals,
		Lines:       methodLines(totals),
		GeneratedAt: b.now(),
	}, nil
}

// methodLines lists the recognized methods in display order, then any
// unrecognized method found in the totals.
func methodLines(t ledger.SessionTotals) []MethodLine {
	methods := append([]ledger.PaymentMethod(nil), ledger.PaymentMethods...)
	var extra []ledger.PaymentMethod
	for _, m := range []map[ledger.PaymentMethod]money.Amount{t.ByMethod, t.ExpensesByMethod} {
		for pm := range m {
			if !pm.Valid() && !slices.Contains(extra, pm) {
				extra = append(extra, pm)
			}
		}
	}
	slices.Sort(extra)
	methods = append(methods, extra...)

	lines := make([]MethodLine, 0, len(methods))
	for _, pm := range methods {
		lines = append(lines, MethodLine{Method: pm, Inflow: t.ByMethod[pm], Expenses: t.ExpensesByMethod[pm]})
	}
	return lines
}

var closingTemplate = template.Must(template.New("closing").Funcs(template.FuncMap{
	"brl": money.Format,
	"when": func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.Format("02/01/2006 15:04")
	},
}).Parse(`<!DOCTYPE html>
<html lang="pt-BR"><head><meta charset="utf-8"><title>Fechamento de caixa #{{.Session.ID}}</title>
<style>body{font-family:sans-serif;font-size:12px}table{border-collapse:collapse;width:100%}td,th{border:1px solid #999;padding:4px;text-align:right}th:first-child,td:first-child{text-align:left}</style>
</head><body>
<h1>Fechamento de caixa #{{.Session.ID}}</h1>
<p>Operador: {{.Session.Operator}} | Estado: {{.Session.State}}</p>
<p>Abertura: {{when .Session.OpeningDate}} | Fechamento: {{when .Session.ClosingDate}}</p>
<table>
<tr><th>Forma de pagamento</th><th>Entradas</th><th>Despesas</th></tr>
{{range .Lines}}<tr><td>{{.Method}}</td><td>{{brl .Inflow}}</td><td>{{brl .Expenses}}</td></tr>
{{end}}</table>
<table>
<tr><td>Valor inicial</td><td>{{brl .Totals.InitialValue}}</td></tr>
<tr><td>Veículos</td><td>{{brl .Totals.VehicleTotal}}</td></tr>
<tr><td>Produtos</td><td>{{brl .Totals.ProductTotal}}</td></tr>
<tr><td>Despesas</td><td>{{brl .Totals.ExpenseTotal}}</td></tr>
<tr><th>Valor final</th><th>{{brl .Totals.FinalValue}}</th></tr>
</table>
{{if .Totals.Warnings}}<h2>Inconsistências</h2><ul>
{{range .Totals.Warnings}}<li>{{.Code}}: transação {{.TransactionID}} ({{.PaymentMethod}}) {{brl .Amount}}</li>
{{end}}</ul>{{end}}
<p>Gerado em {{.GeneratedAt.Format "02/01/2006 15:04"}}</p>
</body></html>`))

// HTML renders the report as an HTML document.
func (r ClosingReport) HTML() (string, error) {
	var buf bytes.Buffer
	if err := closingTemplate.Execute(&buf, r); err != nil {
		return "", err
	}
	return buf.String(), nil
}
