package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmarquez/pcitrack/internal/model"
	"github.com/dmarquez/pcitrack/internal/storage"
)

type dispatchCall struct {
	DocumentID    string
	Kind          model.NotificationKind
	DaysRemaining int
}

// fakeDispatcher produces one Sent email record per document call, without
// touching any real transport.
type fakeDispatcher struct {
	mu       sync.Mutex
	calls    []dispatchCall
	failFor  map[string]bool // digest recipients that should fail
	sequence int
	now      func() time.Time // fake clock; falls back to time.Now
}

func (f *fakeDispatcher) timestamp() time.Time {
	if f.now != nil {
		return f.now().UTC()
	}
	return time.Now().UTC()
}

func (f *fakeDispatcher) DispatchDocument(_ context.Context, doc *model.Document, kind model.NotificationKind, daysRemaining int) []model.NotificationRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dispatchCall{DocumentID: doc.ID, Kind: kind, DaysRemaining: daysRemaining})
	f.sequence++
	return []model.NotificationRecord{{
		ID:        fmt.Sprintf("rec-%d", f.sequence),
		Kind:      kind,
		Timestamp: f.timestamp(),
		Channel:   model.ChannelEmail,
		Recipient: "admin@example.com",
		Outcome:   model.OutcomeSent,
		Message:   fmt.Sprintf("%s in %d days", doc.MerchantName, daysRemaining),
	}}
}

func (f *fakeDispatcher) DispatchDigest(_ context.Context, user model.User, subject, _ string) model.NotificationRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	outcome := model.OutcomeSent
	if f.failFor[user.Email] {
		outcome = model.OutcomeFailed
	}
	f.sequence++
	return model.NotificationRecord{
		ID:        fmt.Sprintf("rec-%d", f.sequence),
		Kind:      model.KindReport,
		Timestamp: f.timestamp(),
		Channel:   model.ChannelEmail,
		Recipient: user.Email,
		Outcome:   outcome,
		Message:   subject,
	}
}

func (f *fakeDispatcher) documentCalls() []dispatchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dispatchCall(nil), f.calls...)
}

func seedDocument(store *storage.MemoryStore, id string, issue, exp time.Time, st model.Status) *model.Document {
	doc := &model.Document{
		ID:             id,
		MerchantName:   "merchant-" + id,
		DocumentType:   model.TypeAOC,
		FileName:       id + ".pdf",
		IssueDate:      issue,
		ExpirationDate: exp,
		Status:         st,
	}
	if err := store.Create(context.Background(), doc); err != nil {
		panic(err)
	}
	return doc
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
