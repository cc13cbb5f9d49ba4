// Package notify decides whether a document event should be alerted and fans
// the alert out to the configured channels.
package notify

import (
	"time"

	"github.com/dmarquez/pcitrack/internal/model"
)

// DefaultCooldown is the minimum interval between repeat notifications of the
// same kind for the same document.
const DefaultCooldown = 7 * 24 * time.Hour

// ShouldNotify reports whether a notification of the given kind may be sent
// as of now. A prior record suppresses the send only when it is the same
// kind, was actually delivered, and still falls inside the cooldown window.
// Failed attempts never suppress a retry.
func ShouldNotify(records []model.NotificationRecord, kind model.NotificationKind, now time.Time, cooldown time.Duration) bool {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	for _, rec := range records {
		if rec.Kind != kind || rec.Outcome != model.OutcomeSent {
			continue
		}
		if now.Sub(rec.Timestamp) < cooldown {
			return false
		}
	}
	return true
}
