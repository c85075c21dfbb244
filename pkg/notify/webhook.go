// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jllopis/flowgate/pkg/errors"
	"github.com/jllopis/flowgate/pkg/resilience"
)

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 10 * time.Second

// WebhookSink posts the notification as JSON to a URL.
type WebhookSink struct {
	url     string
	client  *http.Client
	retry   resilience.RetryConfig
	timeout time.Duration
	logger  *slog.Logger
}

// WebhookOption configures a WebhookSink.
type WebhookOption func(*WebhookSink)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(s *WebhookSink) {
		s.client = client
	}
}

// WithRetry sets the retry policy.
func WithRetry(retry resilience.RetryConfig) WebhookOption {
	return func(s *WebhookSink) {
		s.retry = retry
	}
}

// WithAttemptTimeout bounds each attempt. Zero disables the bound.
func WithAttemptTimeout(d time.Duration) WebhookOption {
	return func(s *WebhookSink) {
		s.timeout = d
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(logger *slog.Logger) WebhookOption {
	return func(s *WebhookSink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewWebhookSink creates a sink posting to url.
func NewWebhookSink(url string, opts ...WebhookOption) *WebhookSink {
	s := &WebhookSink{
		url:     url,
		client:  http.DefaultClient,
		retry:   resilience.DefaultRetryConfig(),
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Sink.
func (s *WebhookSink) Name() string { return "webhook" }

// Deliver posts n, retrying network failures, timeouts, 429 and 5xx
// responses. Other non-2xx responses fail immediately.
func (s *WebhookSink) Deliver(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return errors.New(errors.CodeInvalidInput, "encode notification", err)
	}
	retry := s.retry.WithOnRetry(func(attempt int, err error) {
		s.logger.WarnContext(ctx, "webhook delivery failed, retrying",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
	})
	return retry.Do(ctx, func(ctx context.Context, attempt int) error {
		return resilience.WithTimeout(ctx, s.timeout, func(ctx context.Context) error {
			return s.post(ctx, body)
		})
	})
}

func (s *WebhookSink) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return errors.New(errors.CodeInvalidInput, "build webhook request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.New(errors.CodeDeliveryFailed, "webhook request failed", err).
			WithRecoverable(true)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return statusError(resp.StatusCode)
}

func statusError(code int) error {
	return errors.New(errors.CodeDeliveryFailed, fmt.Sprintf("webhook returned status %d", code), nil).
		WithAttribute("status_code", fmt.Sprint(code)).
		WithRecoverable(code == http.StatusTooManyRequests || code >= 500)
}
