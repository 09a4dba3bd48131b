// Package notify delivers escalation alerts to on-call reviewers over SMS.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Notifier sends a short escalation alert. Delivery failures are reported but
// must never block conversation processing.
type Notifier interface {
	NotifyEscalation(ctx context.Context, reportID, reason, tier string) error
}

// Opts holds configuration options for the Twilio SMS notifier.
type Opts struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string
}

// Option defines a configuration option for the Twilio SMS notifier.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFrom sets the sending phone number.
func WithFrom(from string) Option {
	return func(o *Opts) { o.From = from }
}

// WithTo sets the on-call phone number that receives escalation alerts.
func WithTo(to string) Option {
	return func(o *Opts) { o.To = to }
}

// TwilioNotifier sends escalation alerts through the Twilio messaging API.
type TwilioNotifier struct {
	client *twilio.RestClient
	from   string
	to     string
}

// NewTwilioNotifier creates a notifier from options, falling back to the
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_FROM_NUMBER and
// TWILIO_ONCALL_NUMBER environment variables.
func NewTwilioNotifier(opts ...Option) (*TwilioNotifier, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.From == "" {
		cfg.From = os.Getenv("TWILIO_FROM_NUMBER")
	}
	if cfg.To == "" {
		cfg.To = os.Getenv("TWILIO_ONCALL_NUMBER")
	}
	slog.Debug("Twilio notifier config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"From_set", cfg.From != "",
		"To_set", cfg.To != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.From == "" || cfg.To == "" {
		return nil, fmt.Errorf("from and on-call numbers must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioNotifier{client: client, from: cfg.From, to: cfg.To}, nil
}

// NotifyEscalation sends a one-line alert describing the escalated report.
func (n *TwilioNotifier) NotifyEscalation(ctx context.Context, reportID, reason, tier string) error {
	body := fmt.Sprintf("Escalation for report %s: %s", reportID, reason)
	if tier != "" {
		body += fmt.Sprintf(" (recommended tier: %s)", tier)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(n.to)
	params.SetFrom(n.from)
	params.SetBody(body)

	if _, err := n.client.Api.CreateMessage(params); err != nil {
		slog.Error("Twilio escalation notify failed", "error", err, "reportID", reportID)
		return fmt.Errorf("failed to send escalation alert: %w", err)
	}
	slog.Info("Escalation alert sent", "reportID", reportID, "tier", tier)
	return nil
}

// NoopNotifier discards escalation alerts. Used when Twilio is not configured.
type NoopNotifier struct{}

// NotifyEscalation logs the alert and returns nil.
func (NoopNotifier) NotifyEscalation(ctx context.Context, reportID, reason, tier string) error {
	slog.Debug("Escalation alert suppressed (no notifier configured)", "reportID", reportID, "reason", reason, "tier", tier)
	return nil
}
