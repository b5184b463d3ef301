package report

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/parkyard/parkyard/internal/shared"
)

// ErrRenderFailed is returned when Gotenberg is unreachable or rejects a document.
var ErrRenderFailed = shared.NewError(shared.KindRemote, "PDF_RENDER_FAILED", "pdf rendering failed")

// ErrUnknownPaper is returned for a paper name the renderer does not know.
var ErrUnknownPaper = shared.NewError(shared.KindValidation, "UNKNOWN_PAPER", "unknown paper size")

// Paper is the page geometry sent to Chromium, in inches.
type Paper struct {
	Name   string
	Width  float64
	Height float64
	Margin float64
	// SinglePage lets the page grow to fit the content (thermal receipt rolls).
	SinglePage bool
}

var (
	PaperA4      = Paper{Name: "a4", Width: 8.27, Height: 11.7, Margin: 0.4}
	PaperReceipt = Paper{Name: "receipt", Width: 3.15, Height: 11.7, Margin: 0.1, SinglePage: true}
)

// PaperByName resolves a ?paper= value. Empty selects A4.
func PaperByName(name string) (Paper, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PaperA4.Name:
		return PaperA4, nil
	case PaperReceipt.Name:
		return PaperReceipt, nil
	default:
		return Paper{}, ErrUnknownPaper.Wrapf("%q", name)
	}
}

func (p Paper) fields() map[string]string {
	inches := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	return map[string]string{
		"paperWidth":      inches(p.Width),
		"paperHeight":     inches(p.Height),
		"marginTop":       inches(p.Margin),
		"marginBottom":    inches(p.Margin),
		"marginLeft":      inches(p.Margin),
		"marginRight":     inches(p.Margin),
		"printBackground": "true",
		"singlePage":      strconv.FormatBool(p.SinglePage),
	}
}

// Client wraps interactions with the Gotenberg API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Ping checks if the remote Gotenberg service is available.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	_, err = c.do(req)
	return err
}

// RenderHTML converts an HTML document into a PDF laid out on paper.
func (c *Client) RenderHTML(ctx context.Context, html string, paper Paper) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, value := range paper.fields() {
		if err := writer.WriteField(name, value); err != nil {
			return nil, err
		}
	}
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(part, html); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/forms/chromium/convert/html", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ErrRenderFailed.Wrapf("%v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, ErrRenderFailed.Wrapf("gotenberg returned status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ErrRenderFailed.Wrapf("read response: %v", err)
	}
	return data, nil
}
