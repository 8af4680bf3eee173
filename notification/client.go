package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"billingflow/billing"
)

const defaultLinkTTL = 72 * time.Hour

// Config collects the dispatch endpoint and document-link signing material.
type Config struct {
	BaseURL string
	// SigningSecret signs the time-limited document access token embedded in
	// each message, so the recipient can fetch the rendered invoice without
	// an account.
	SigningSecret string
	LinkTTL       time.Duration
}

// Client dispatches one notification message per billing record. Messages
// are keyed by debt identifier, so a repeated execution for the same record
// is deduplicated downstream.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signingKey []byte
	linkTTL    time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// message is the wire payload sent to the dispatch service.
type message struct {
	DebtID        string `json:"debtId"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Amount        string `json:"amount"`
	DueDate       string `json:"dueDate"`
	DocumentToken string `json:"documentToken,omitempty"`
}

// NewClient constructs a notification client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	ttl := cfg.LinkTTL
	if ttl <= 0 {
		ttl = defaultLinkTTL
	}
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signingKey: []byte(cfg.SigningSecret),
		linkTTL:    ttl,
		logger:     logger,
		now:        time.Now,
	}
}

// HealthCheck probes the dispatch service's liveness endpoint.
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

// Execute dispatches the notification for one record and reports success as
// a boolean.
func (c *Client) Execute(ctx context.Context, rec billing.Record) bool {
	c.logger.Info("dispatching notification",
		slog.String("debt_id", rec.DebtID.String()),
		slog.String("email", rec.Email))

	token, err := c.documentToken(rec)
	if err != nil {
		c.logger.Warn("sign document token", slog.String("debt_id", rec.DebtID.String()), slog.Any("error", err))
		return false
	}

	payload, err := json.Marshal(message{
		DebtID:        rec.DebtID.String(),
		Email:         rec.Email,
		Name:          rec.Name,
		Amount:        rec.DebtAmount.StringFixed(2),
		DueDate:       rec.DebtDueDate.Format("2006-01-02"),
		DocumentToken: token,
	})
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/notifications", c.baseURL), bytes.NewReader(payload))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("notification request failed",
			slog.String("debt_id", rec.DebtID.String()),
			slog.Any("error", err))
		return false
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		c.logger.Warn("notification dispatch failed",
			slog.String("debt_id", rec.DebtID.String()),
			slog.Int("status", resp.StatusCode))
		return false
	}
	return true
}

// documentToken signs a short-lived capability token that lets the recipient
// fetch the rendered billing document for this record.
func (c *Client) documentToken(rec billing.Record) (string, error) {
	if len(c.signingKey) == 0 {
		return "", nil
	}
	now := c.now()
	claims := jwt.MapClaims{
		"sub": rec.DebtID.String(),
		"doc": fmt.Sprintf("invoice-%s.pdf", rec.DebtID),
		"iat": now.Unix(),
		"exp": now.Add(c.linkTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.signingKey)
}
