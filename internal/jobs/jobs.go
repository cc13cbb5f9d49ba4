// Package jobs implements the scheduled batch jobs: the expiration scan, the
// status reconciliation pass, and the weekly report digest. Jobs read and
// append through the store interfaces below; they never delete documents.
package jobs

import (
	"context"
	"time"

	"github.com/dmarquez/pcitrack/internal/model"
)

// Job names as registered with the Registry and the scheduler.
const (
	JobExpirationScan  = "expiration-scan"
	JobStatusReconcile = "status-reconcile"
	JobWeeklyReport    = "weekly-report"
)

// DocumentStore is the persistence surface the jobs rely on. Claim and
// UpdateStatus are version-checked: a mismatch returns model.ErrConflict and
// means another run got there first.
type DocumentStore interface {
	Get(ctx context.Context, id string) (*model.Document, error)
	FindExpiringWithin(ctx context.Context, now time.Time, window time.Duration) ([]*model.Document, error)
	FindActive(ctx context.Context) ([]*model.Document, error)
	Claim(ctx context.Context, id string, version int64) error
	UpdateStatus(ctx context.Context, id string, version int64, status model.Status) error
	AppendNotifications(ctx context.Context, id string, records []model.NotificationRecord) error
	CountByStatus(ctx context.Context) (map[model.Status]int, error)
}

// UserDirectory resolves report recipients.
type UserDirectory interface {
	FindActiveAdmins(ctx context.Context) ([]model.User, error)
}

// Dispatcher sends alerts for document events. Implementations record
// per-channel outcomes rather than returning delivery errors.
type Dispatcher interface {
	DispatchDocument(ctx context.Context, doc *model.Document, kind model.NotificationKind, daysRemaining int) []model.NotificationRecord
	DispatchDigest(ctx context.Context, user model.User, subject, body string) model.NotificationRecord
}
