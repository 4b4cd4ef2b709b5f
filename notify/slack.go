// notify/slack.go
package notify

import (
	"context"
	"fmt"
	"time"

	"captain_grid_go/logs"

	"github.com/go-resty/resty/v2"
)

// Notifier delivers operator notices (pause, resume, phase change, start-up).
type Notifier interface {
	Send(ctx context.Context, msg string) error
}

// Nop discards every message. Used when no webhook is configured.
type Nop struct{}

func (Nop) Send(context.Context, string) error { return nil }

const slackHeader = "🤖 Captain Grid Bot\n"

// Slack posts messages to an incoming-webhook URL.
type Slack struct {
	webhookURL string
	http       *resty.Client
}

// NewSlack creates a webhook notifier.
func NewSlack(webhookURL string, timeout time.Duration) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		http:       resty.New().SetTimeout(timeout),
	}
}

func (s *Slack) Send(ctx context.Context, msg string) error {
	resp, err := s.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"text": slackHeader + msg}).
		Post(s.webhookURL)
	if err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("slack webhook: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// New returns a Slack notifier for a non-empty webhook and Nop otherwise.
func New(webhookURL string, timeout time.Duration) Notifier {
	if webhookURL == "" {
		return Nop{}
	}
	return NewSlack(webhookURL, timeout)
}

// BestEffort sends msg and only logs a failure. Notifications never stop the bot.
func BestEffort(ctx context.Context, n Notifier, msg string) {
	if n == nil {
		return
	}
	if err := n.Send(ctx, msg); err != nil {
		logs.Warnf("[Notify] Notification failed, continuing: %v", err)
	}
}
