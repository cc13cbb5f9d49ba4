package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dmarquez/pcitrack/internal/model"
)

// Channel is a single notification transport (email, Slack).
type Channel interface {
	Name() model.NotificationChannel
	Send(ctx context.Context, recipient, subject, body string) error
}

// UserDirectory resolves recipients for document events.
type UserDirectory interface {
	FindActiveAdmins(ctx context.Context) ([]model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// DefaultDispatchTimeout bounds a single channel call. A hung provider turns
// into a Failed record instead of stalling the batch.
const DefaultDispatchTimeout = 15 * time.Second

// Dispatcher fans a document event out to every opted-in recipient on every
// configured channel. Each attempt yields its own NotificationRecord.
type Dispatcher struct {
	users        UserDirectory
	email        Channel
	slack        Channel
	slackChannel string // optional team-wide Slack channel ID
	timeout      time.Duration
	now          func() time.Time
}

// NewDispatcher constructs a Dispatcher. Either channel may be nil when the
// transport is not configured.
func NewDispatcher(users UserDirectory, email, slack Channel, slackChannelID string, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	return &Dispatcher{
		users:        users,
		email:        email,
		slack:        slack,
		slackChannel: slackChannelID,
		timeout:      timeout,
		now:          time.Now,
	}
}

// DispatchDocument alerts the document's assigned reviewer and the active
// admins about an event. It returns one record per attempt; delivery failures
// are recorded, not returned as errors.
func (d *Dispatcher) DispatchDocument(ctx context.Context, doc *model.Document, kind model.NotificationKind, daysRemaining int) []model.NotificationRecord {
	subject, body := documentMessage(doc, kind, daysRemaining)

	var assigned *model.User
	if doc.AssignedTo != nil {
		u, err := d.users.FindByID(ctx, *doc.AssignedTo)
		if err != nil {
			log.Warn().Err(err).Str("document", doc.ID).Str("user", *doc.AssignedTo).Msg("assigned user lookup failed")
		} else {
			assigned = u
		}
	}
	admins, err := d.users.FindActiveAdmins(ctx)
	if err != nil {
		log.Error().Err(err).Str("document", doc.ID).Msg("admin lookup failed")
	}

	var records []model.NotificationRecord
	if d.email != nil {
		for _, rcpt := range emailRecipients(assigned, admins) {
			records = append(records, d.attempt(ctx, d.email, kind, rcpt, subject, body))
		}
	}
	if d.slack != nil {
		for _, rcpt := range d.slackRecipients(assigned) {
			records = append(records, d.attempt(ctx, d.slack, kind, rcpt, subject, body))
		}
	}
	return records
}

// DispatchDigest sends a report digest to a single recipient over email.
func (d *Dispatcher) DispatchDigest(ctx context.Context, user model.User, subject, body string) model.NotificationRecord {
	if d.email == nil {
		return model.NotificationRecord{
			ID:        uuid.NewString(),
			Kind:      model.KindReport,
			Timestamp: d.now().UTC(),
			Channel:   model.ChannelEmail,
			Recipient: user.Email,
			Outcome:   model.OutcomeFailed,
			Message:   "email channel not configured",
		}
	}
	return d.attempt(ctx, d.email, model.KindReport, user.Email, subject, body)
}

// attempt performs one bounded channel call and records the outcome.
func (d *Dispatcher) attempt(ctx context.Context, ch Channel, kind model.NotificationKind, recipient, subject, body string) model.NotificationRecord {
	rec := model.NotificationRecord{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: d.now().UTC(),
		Channel:   ch.Name(),
		Recipient: recipient,
		Outcome:   model.OutcomeSent,
		Message:   subject,
	}
	if err := d.sendBounded(ctx, ch, recipient, subject, body); err != nil {
		rec.Outcome = model.OutcomeFailed
		rec.Message = fmt.Sprintf("%s - error: %v", subject, err)
		log.Warn().Err(err).Str("channel", string(ch.Name())).Str("recipient", recipient).Msg("dispatch failed")
	}
	return rec
}

// sendBounded runs the channel call under the per-call timeout. Transports
// that ignore context (SMTP) are abandoned in their goroutine once the
// deadline fires; the batch keeps moving.
func (d *Dispatcher) sendBounded(ctx context.Context, ch Channel, recipient, subject, body string) error {
	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- ch.Send(cctx, recipient, subject, body)
	}()
	select {
	case err := <-done:
		return err
	case <-cctx.Done():
		return fmt.Errorf("dispatch timed out after %s", d.timeout)
	}
}

func emailRecipients(assigned *model.User, admins []model.User) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(u model.User) {
		if !u.Preferences.Email.Enabled || u.Email == "" || seen[u.Email] {
			return
		}
		seen[u.Email] = true
		out = append(out, u.Email)
	}
	if assigned != nil {
		add(*assigned)
	}
	for _, admin := range admins {
		add(admin)
	}
	return out
}

func (d *Dispatcher) slackRecipients(assigned *model.User) []string {
	var out []string
	if assigned != nil && assigned.Preferences.Slack.Enabled && assigned.Preferences.Slack.SlackUserID != "" {
		out = append(out, assigned.Preferences.Slack.SlackUserID)
	}
	if d.slackChannel != "" {
		out = append(out, d.slackChannel)
	}
	return out
}
