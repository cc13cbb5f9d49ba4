package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarquez/pcitrack/internal/model"
)

func newDoc(id string, exp time.Time, st model.Status) *model.Document {
	return &model.Document{
		ID:             id,
		MerchantName:   "merchant-" + id,
		DocumentType:   model.TypeAOC,
		FileName:       id + ".pdf",
		IssueDate:      exp.AddDate(-1, 0, 0),
		ExpirationDate: exp,
		Status:         st,
	}
}

func TestMemoryStoreVersioning(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	exp := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Create(ctx, newDoc("a", exp, model.StatusValid)))

	doc, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Version)

	// First claim wins, second claim with the stale version conflicts.
	require.NoError(t, store.Claim(ctx, "a", doc.Version))
	assert.ErrorIs(t, store.Claim(ctx, "a", doc.Version), model.ErrConflict)

	// UpdateStatus follows the same rule.
	assert.ErrorIs(t, store.UpdateStatus(ctx, "a", doc.Version, model.StatusExpired), model.ErrConflict)
	cur, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, store.UpdateStatus(ctx, "a", cur.Version, model.StatusExpired))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, got.Status)
}

func TestMemoryStoreQueries(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Create(ctx, newDoc("soon", now.AddDate(0, 0, 10), model.StatusExpiringSoon)))
	require.NoError(t, store.Create(ctx, newDoc("later", now.AddDate(0, 0, 20), model.StatusValid)))
	require.NoError(t, store.Create(ctx, newDoc("far", now.AddDate(0, 6, 0), model.StatusValid)))
	require.NoError(t, store.Create(ctx, newDoc("gone", now.AddDate(0, 0, 5), model.StatusExpired)))

	within, err := store.FindExpiringWithin(ctx, now, 30*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, within, 2, "expired documents and far-out expirations are excluded")
	assert.Equal(t, "soon", within[0].ID, "ordered by expiration ascending")
	assert.Equal(t, "later", within[1].ID)

	active, err := store.FindActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 3)

	counts, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[model.StatusValid])
	assert.Equal(t, 1, counts[model.StatusExpired])
}

func TestMemoryStoreAppendNotifications(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	exp := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Create(ctx, newDoc("a", exp, model.StatusValid)))

	first := model.NotificationRecord{ID: "n1", Kind: model.KindExpiration, Outcome: model.OutcomeSent, Timestamp: exp}
	second := model.NotificationRecord{ID: "n2", Kind: model.KindExpiration, Outcome: model.OutcomeFailed, Timestamp: exp.Add(time.Minute)}
	require.NoError(t, store.AppendNotifications(ctx, "a", []model.NotificationRecord{first}))
	require.NoError(t, store.AppendNotifications(ctx, "a", []model.NotificationRecord{second}))

	doc, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.Len(t, doc.Notifications, 2)
	assert.Equal(t, "n1", doc.Notifications[0].ID, "history stays chronological")
	assert.Equal(t, "n2", doc.Notifications[1].ID)

	assert.ErrorIs(t, store.AppendNotifications(ctx, "missing", []model.NotificationRecord{first}), model.ErrNotFound)
}

func TestMemoryStoreCreateRejectsBadDates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	doc := newDoc("bad", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), model.StatusPendingReview)
	doc.IssueDate = doc.ExpirationDate
	err := store.Create(ctx, doc)
	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)
}
