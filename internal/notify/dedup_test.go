package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmarquez/pcitrack/internal/model"
)

func TestShouldNotify(t *testing.T) {
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	cooldown := 7 * 24 * time.Hour

	sentAt := func(ts time.Time) model.NotificationRecord {
		return model.NotificationRecord{Kind: model.KindExpiration, Outcome: model.OutcomeSent, Timestamp: ts}
	}

	t.Run("no history", func(t *testing.T) {
		assert.True(t, ShouldNotify(nil, model.KindExpiration, now, cooldown))
	})

	t.Run("recent send suppresses", func(t *testing.T) {
		recs := []model.NotificationRecord{sentAt(now.Add(-24 * time.Hour))}
		assert.False(t, ShouldNotify(recs, model.KindExpiration, now, cooldown))
	})

	t.Run("send older than cooldown does not suppress", func(t *testing.T) {
		recs := []model.NotificationRecord{sentAt(now.Add(-8 * 24 * time.Hour))}
		assert.True(t, ShouldNotify(recs, model.KindExpiration, now, cooldown))
	})

	t.Run("cooldown boundary allows resend", func(t *testing.T) {
		// Exactly cooldown ago is no longer "within" the window.
		recs := []model.NotificationRecord{sentAt(now.Add(-cooldown))}
		assert.True(t, ShouldNotify(recs, model.KindExpiration, now, cooldown))
		recs = []model.NotificationRecord{sentAt(now.Add(-cooldown + time.Second))}
		assert.False(t, ShouldNotify(recs, model.KindExpiration, now, cooldown))
	})

	t.Run("failed attempts never suppress", func(t *testing.T) {
		recs := []model.NotificationRecord{{
			Kind: model.KindExpiration, Outcome: model.OutcomeFailed, Timestamp: now.Add(-time.Hour),
		}}
		assert.True(t, ShouldNotify(recs, model.KindExpiration, now, cooldown))
	})

	t.Run("other kinds never suppress", func(t *testing.T) {
		recs := []model.NotificationRecord{{
			Kind: model.KindUpdate, Outcome: model.OutcomeSent, Timestamp: now.Add(-time.Hour),
		}}
		assert.True(t, ShouldNotify(recs, model.KindExpiration, now, cooldown))
	})

	t.Run("zero cooldown falls back to default", func(t *testing.T) {
		recs := []model.NotificationRecord{sentAt(now.Add(-24 * time.Hour))}
		assert.False(t, ShouldNotify(recs, model.KindExpiration, now, 0))
	})
}
