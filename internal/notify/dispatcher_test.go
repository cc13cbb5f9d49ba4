package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarquez/pcitrack/internal/model"
)

type fakeDirectory struct {
	admins []model.User
	byID   map[string]model.User
}

func (f *fakeDirectory) FindActiveAdmins(context.Context) ([]model.User, error) {
	return f.admins, nil
}

func (f *fakeDirectory) FindByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &u, nil
}

type fakeChannel struct {
	name  model.NotificationChannel
	err   error
	block bool
	sent  []string
}

func (f *fakeChannel) Name() model.NotificationChannel { return f.name }

func (f *fakeChannel) Send(ctx context.Context, recipient, subject, body string) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, recipient)
	return nil
}

func emailEnabledUser(id, email string) model.User {
	return model.User{
		ID: id, Email: email, Role: model.RoleAdmin, IsActive: true,
		Preferences: model.NotificationPreferences{Email: model.EmailPreference{Enabled: true}},
	}
}

func testDocument(assigned *string) *model.Document {
	return &model.Document{
		ID:             "doc-1",
		MerchantName:   "Acme Payments",
		DocumentType:   model.TypeAOC,
		IssueDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpirationDate: time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC),
		Status:         model.StatusExpiringSoon,
		AssignedTo:     assigned,
	}
}

func TestDispatchDocumentFanOut(t *testing.T) {
	reviewerID := "user-1"
	reviewer := emailEnabledUser(reviewerID, "reviewer@example.com")
	reviewer.Preferences.Slack = model.SlackPreference{Enabled: true, SlackUserID: "U123"}
	dir := &fakeDirectory{
		admins: []model.User{emailEnabledUser("admin-1", "admin@example.com")},
		byID:   map[string]model.User{reviewerID: reviewer},
	}
	email := &fakeChannel{name: model.ChannelEmail}
	slack := &fakeChannel{name: model.ChannelSlack}
	d := NewDispatcher(dir, email, slack, "C999", time.Second)

	records := d.DispatchDocument(context.Background(), testDocument(&reviewerID), model.KindExpiration, 15)

	// Two emails (reviewer + admin), two slack messages (reviewer DM + team channel).
	require.Len(t, records, 4)
	for _, rec := range records {
		assert.Equal(t, model.OutcomeSent, rec.Outcome)
		assert.Equal(t, model.KindExpiration, rec.Kind)
		assert.Contains(t, rec.Message, "15 days")
		assert.NotEmpty(t, rec.ID)
	}
	assert.ElementsMatch(t, []string{"reviewer@example.com", "admin@example.com"}, email.sent)
	assert.ElementsMatch(t, []string{"U123", "C999"}, slack.sent)
}

func TestDispatchDocumentRecordsFailures(t *testing.T) {
	dir := &fakeDirectory{admins: []model.User{emailEnabledUser("admin-1", "admin@example.com")}}
	email := &fakeChannel{name: model.ChannelEmail, err: errors.New("smtp unreachable")}
	d := NewDispatcher(dir, email, nil, "", time.Second)

	records := d.DispatchDocument(context.Background(), testDocument(nil), model.KindExpiration, 3)

	require.Len(t, records, 1)
	assert.Equal(t, model.OutcomeFailed, records[0].Outcome)
	assert.Contains(t, records[0].Message, "smtp unreachable")
}

func TestDispatchTimeoutBecomesFailure(t *testing.T) {
	dir := &fakeDirectory{admins: []model.User{emailEnabledUser("admin-1", "admin@example.com")}}
	email := &fakeChannel{name: model.ChannelEmail, block: true}
	d := NewDispatcher(dir, email, nil, "", 20*time.Millisecond)

	start := time.Now()
	records := d.DispatchDocument(context.Background(), testDocument(nil), model.KindExpiration, 3)

	require.Len(t, records, 1)
	assert.Equal(t, model.OutcomeFailed, records[0].Outcome)
	assert.Contains(t, records[0].Message, "timed out")
	assert.Less(t, time.Since(start), time.Second, "hung channel must not block the batch")
}

func TestDispatchSkipsOptedOutRecipients(t *testing.T) {
	optedOut := emailEnabledUser("admin-2", "quiet@example.com")
	optedOut.Preferences.Email.Enabled = false
	dir := &fakeDirectory{admins: []model.User{emailEnabledUser("admin-1", "admin@example.com"), optedOut}}
	email := &fakeChannel{name: model.ChannelEmail}
	d := NewDispatcher(dir, email, nil, "", time.Second)

	records := d.DispatchDocument(context.Background(), testDocument(nil), model.KindExpiration, 3)

	require.Len(t, records, 1)
	assert.Equal(t, "admin@example.com", records[0].Recipient)
}

func TestDispatchDigest(t *testing.T) {
	email := &fakeChannel{name: model.ChannelEmail}
	d := NewDispatcher(&fakeDirectory{}, email, nil, "", time.Second)

	rec := d.DispatchDigest(context.Background(), emailEnabledUser("admin-1", "admin@example.com"), "Weekly report", "body")
	assert.Equal(t, model.OutcomeSent, rec.Outcome)
	assert.Equal(t, model.KindReport, rec.Kind)
	assert.Equal(t, "admin@example.com", rec.Recipient)
}
