// Package notify delivers saved estimates to clients.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/Simplici0/estimator/internal/apperr"
)

// Message describes one estimate delivery.
type Message struct {
	To             string
	ToName         string
	EstimateNumber string
	DocumentURL    string
	CompanyName    string
	Total          string
}

// Validate checks the recipient and estimate number.
func (m Message) Validate() error {
	if _, err := mail.ParseAddress(m.To); err != nil {
		return apperr.InvalidInput("clientEmail", "must be a valid email address (got %q)", m.To)
	}
	if m.EstimateNumber == "" {
		return apperr.InvalidInput("estimateNumber", "is required")
	}
	return nil
}

// Subject is the email subject line.
func (m Message) Subject() string {
	return "Your Project Estimate #" + m.EstimateNumber
}

// Body is the plain-text email body.
func (m Message) Body() string {
	name := m.ToName
	if name == "" {
		name = "there"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", name)
	b.WriteString("Thank you for requesting an estimate. We've prepared a detailed cost breakdown for your project based on current market pricing.\n\n")
	fmt.Fprintf(&b, "Estimate #: %s\n", m.EstimateNumber)
	if m.Total != "" {
		fmt.Fprintf(&b, "Total: %s\n", m.Total)
	}
	if m.DocumentURL != "" {
		fmt.Fprintf(&b, "View your estimate: %s\n", m.DocumentURL)
	}
	b.WriteString("\nThis estimate is valid for 30 days.\n")
	if m.CompanyName != "" {
		fmt.Fprintf(&b, "\n%s\n", m.CompanyName)
	}
	return b.String()
}

// ErrNotDelivered is returned by notifiers that accept a message without delivering it.
var ErrNotDelivered = errors.New("estimate was not delivered")

// Notifier sends an estimate and returns the provider's message id.
type Notifier interface {
	SendEstimate(ctx context.Context, m Message) (string, error)
}

// EmailConfig configures EmailNotifier.
type EmailConfig struct {
	BaseURL    string
	APIKey     string
	From       string
	MaxElapsed time.Duration
}

// EmailNotifier posts to a Resend-compatible email API.
type EmailNotifier struct {
	cfg    EmailConfig
	http   *http.Client
	logger *zap.Logger
}

// NewEmailNotifier returns an EmailNotifier. httpClient may be nil.
func NewEmailNotifier(cfg EmailConfig, httpClient *http.Client, logger *zap.Logger) *EmailNotifier {
	if cfg.MaxElapsed == 0 {
		cfg.MaxElapsed = 15 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &EmailNotifier{cfg: cfg, http: httpClient, logger: logger.Named("email")}
}

type emailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

type emailResponse struct {
	ID string `json:"id"`
}

func (n *EmailNotifier) SendEstimate(ctx context.Context, m Message) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}

	from := n.cfg.From
	if m.CompanyName != "" {
		from = fmt.Sprintf("%s <%s>", m.CompanyName, n.cfg.From)
	}
	body, err := json.Marshal(emailRequest{From: from, To: []string{m.To}, Subject: m.Subject(), Text: m.Body()})
	if err != nil {
		return "", apperr.Internal("encode email", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = n.cfg.MaxElapsed

	var id string
	err = backoff.RetryNotify(
		func() error {
			var sendErr error
			id, sendErr = n.post(ctx, body)
			return sendErr
		},
		backoff.WithContext(policy, ctx),
		func(err error, next time.Duration) {
			n.logger.Warn("email send failed, retrying",
				zap.String("estimate", m.EstimateNumber),
				zap.Error(err),
				zap.Duration("next_attempt_in", next))
		},
	)
	if err != nil {
		return "", apperr.UpstreamUnavailable("email delivery failed", err)
	}

	n.logger.Info("estimate emailed", zap.String("estimate", m.EstimateNumber), zap.String("message_id", id))
	return id, nil
}

func (n *EmailNotifier) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.BaseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.cfg.APIKey)

	resp, err := n.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("post email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("email API status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	var out emailResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", backoff.Permanent(fmt.Errorf("decode email response: %w", err))
	}
	return out.ID, nil
}

// LogNotifier only logs deliveries and always reports ErrNotDelivered.
// It is used when no email API key is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier returns a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("email")}
}

func (n *LogNotifier) SendEstimate(_ context.Context, m Message) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	n.logger.Warn("email API not configured, estimate not delivered",
		zap.String("estimate", m.EstimateNumber),
		zap.String("to", m.To),
		zap.String("document_url", m.DocumentURL))
	return "", ErrNotDelivered
}
