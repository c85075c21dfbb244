// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jllopis/flowgate/pkg/errors"
	"github.com/jllopis/flowgate/pkg/resilience"
)

// discordContentLimit is the maximum message length Discord accepts.
const discordContentLimit = 2000

// DiscordSink posts a formatted message through a Discord webhook.
type DiscordSink struct {
	session *discordgo.Session
	id      string
	token   string
	retry   resilience.RetryConfig
	timeout time.Duration
}

// DiscordOption configures a DiscordSink.
type DiscordOption func(*DiscordSink)

// WithDiscordRetry sets the retry policy.
func WithDiscordRetry(retry resilience.RetryConfig) DiscordOption {
	return func(s *DiscordSink) {
		s.retry = retry
	}
}

// WithDiscordAttemptTimeout bounds each attempt. Zero disables the bound.
func WithDiscordAttemptTimeout(d time.Duration) DiscordOption {
	return func(s *DiscordSink) {
		s.timeout = d
	}
}

// NewDiscordSink parses a webhook URL of the form
// https://discord.com/api/webhooks/<id>/<token>.
func NewDiscordSink(webhookURL string, client *http.Client, opts ...DiscordOption) (*DiscordSink, error) {
	id, token, err := ParseDiscordWebhook(webhookURL)
	if err != nil {
		return nil, err
	}
	session, err := discordgo.New("")
	if err != nil {
		return nil, errors.New(errors.CodeConfig, "create discord session", err)
	}
	if client != nil {
		session.Client = client
	}
	s := &DiscordSink{
		session: session,
		id:      id,
		token:   token,
		retry:   resilience.DefaultRetryConfig(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ParseDiscordWebhook extracts the webhook id and token from its URL.
func ParseDiscordWebhook(webhookURL string) (id, token string, err error) {
	u, err := url.Parse(webhookURL)
	if err != nil {
		return "", "", errors.New(errors.CodeConfig, "invalid discord webhook url", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, part := range parts {
		if part == "webhooks" && i+2 < len(parts) && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", errors.New(errors.CodeConfig, "discord webhook url must end in /webhooks/<id>/<token>", nil).
		WithContext("url", u.Redacted())
}

// Name implements Sink.
func (s *DiscordSink) Name() string { return "discord" }

// Deliver implements Sink.
func (s *DiscordSink) Deliver(ctx context.Context, n Notification) error {
	params := &discordgo.WebhookParams{
		Content:         FormatDiscordMessage(n),
		AllowedMentions: allowedMentions(n.DiscordID),
	}
	return s.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		return resilience.WithTimeout(ctx, s.timeout, func(ctx context.Context) error {
			_, err := s.session.WebhookExecute(s.id, s.token, true, params, discordgo.WithContext(ctx))
			return discordError(err)
		})
	})
}

// FormatDiscordMessage renders the mention, verdict and report text.
func FormatDiscordMessage(n Notification) string {
	verdict := "FAILED"
	if n.Passed() {
		verdict = "PASSED"
	}
	header := fmt.Sprintf("%s Workflow check **%s** for %s on `%s`",
		mention(n.DiscordID), verdict, n.BuilderName, n.Repo)
	header = strings.TrimSpace(header)
	if n.RunID != "" {
		header += fmt.Sprintf(" (run %s)", n.RunID)
	}

	const fence = "```"
	room := discordContentLimit - len(header) - len("\n"+fence+"\n"+"\n"+fence)
	text := n.TestResults
	if len(text) > room {
		text = truncate(text, room)
	}
	return header + "\n" + fence + "\n" + text + "\n" + fence
}

// mention formats a user id as <@id>. Role ids are configured with a
// leading "&" and render as <@&id>.
func mention(id string) string {
	switch {
	case id == "":
		return ""
	case strings.HasPrefix(id, "<"):
		return id
	default:
		return "<@" + id + ">"
	}
}

func allowedMentions(id string) *discordgo.MessageAllowedMentions {
	am := &discordgo.MessageAllowedMentions{}
	switch {
	case id == "" || strings.HasPrefix(id, "<"):
	case strings.HasPrefix(id, "&"):
		am.Roles = []string{strings.TrimPrefix(id, "&")}
	default:
		am.Users = []string{id}
	}
	return am
}

func truncate(text string, limit int) string {
	const marker = "\n..."
	if limit <= len(marker) {
		return ""
	}
	cut := limit - len(marker)
	// back up to a rune boundary
	for cut > 0 && !isRuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + marker
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func discordError(err error) error {
	if err == nil {
		return nil
	}
	recoverable := true
	var rest *discordgo.RESTError
	if stderrors.As(err, &rest) && rest.Response != nil {
		code := rest.Response.StatusCode
		recoverable = code == http.StatusTooManyRequests || code >= 500
	}
	return errors.New(errors.CodeDeliveryFailed, "discord webhook failed", err).
		WithRecoverable(recoverable)
}
