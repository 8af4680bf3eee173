package document

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"billingflow/billing"
)

var invoiceTemplate = template.Must(template.New("invoice").Parse(`<!doctype html>
<html>
<body>
  <h1>Billing statement</h1>
  <p>Debtor: {{.Name}}</p>
  <p>Government ID: {{.GovernmentID}}</p>
  <p>Amount due: {{.Amount}}</p>
  <p>Due date: {{.DueDate}}</p>
  <p>Reference: {{.DebtID}}</p>
</body>
</html>`))

// Client renders a billing document for one record through an HTML-to-PDF
// converter service. Rendering is keyed by the debt identifier, so repeated
// executions for the same record overwrite the same document.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient constructs a document client against the converter base URL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// HealthCheck probes the converter's liveness endpoint. It has no side
// effects and is used by monitoring and integration tests.
func (c *Client) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/health", c.baseURL), nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return resp.StatusCode < 400
}

// Execute renders the billing document for one record. It reports success as
// a boolean: failures are expected to be retried by a later pass, not to
// propagate as errors.
func (c *Client) Execute(ctx context.Context, rec billing.Record) bool {
	c.logger.Info("creating billing document", slog.String("debt_id", rec.DebtID.String()))

	html, err := renderInvoice(rec)
	if err != nil {
		c.logger.Warn("render invoice html", slog.String("debt_id", rec.DebtID.String()), slog.Any("error", err))
		return false
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", DocumentName(rec))
	if err != nil {
		return false
	}
	if _, err := io.Copy(part, bytes.NewBufferString(html)); err != nil {
		return false
	}
	if err := writer.Close(); err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/forms/chromium/convert/html", c.baseURL), body)
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("document request failed", slog.String("debt_id", rec.DebtID.String()), slog.Any("error", err))
		return false
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		c.logger.Warn("document render failed",
			slog.String("debt_id", rec.DebtID.String()),
			slog.Int("status", resp.StatusCode))
		return false
	}
	return true
}

// DocumentName derives a stable artifact name from the debt identifier.
func DocumentName(rec billing.Record) string {
	return fmt.Sprintf("invoice-%s.html", rec.DebtID)
}

func renderInvoice(rec billing.Record) (string, error) {
	data := struct {
		Name         string
		GovernmentID string
		Amount       string
		DueDate      string
		DebtID       string
	}{
		Name:         rec.Name,
		GovernmentID: rec.GovernmentID,
		Amount:       rec.DebtAmount.StringFixed(2),
		DueDate:      rec.DebtDueDate.Format("2006-01-02"),
		DebtID:       rec.DebtID.String(),
	}
	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
