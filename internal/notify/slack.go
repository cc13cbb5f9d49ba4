package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/dmarquez/pcitrack/internal/model"
)

// SlackChannel delivers notifications to Slack users or channels.
type SlackChannel struct {
	client *slack.Client
}

// NewSlackChannel builds a Slack channel from a bot token.
func NewSlackChannel(token string) *SlackChannel {
	return &SlackChannel{client: slack.New(token)}
}

func (c *SlackChannel) Name() model.NotificationChannel { return model.ChannelSlack }

// Send posts a message to the recipient (a Slack user ID or channel ID).
func (c *SlackChannel) Send(ctx context.Context, recipient, subject, body string) error {
	text := fmt.Sprintf("*%s*\n%s", subject, body)
	_, _, err := c.client.PostMessageContext(ctx, recipient, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("post slack message: %w", err)
	}
	return nil
}
