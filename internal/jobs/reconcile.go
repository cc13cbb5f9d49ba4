package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dmarquez/pcitrack/internal/model"
	"github.com/dmarquez/pcitrack/internal/notify"
	"github.com/dmarquez/pcitrack/internal/status"
)

// StatusReconcile recomputes the derived status for every active document and
// fires an expiration notice when a document transitions into Expired.
type StatusReconcile struct {
	store         DocumentStore
	dispatcher    Dispatcher
	thresholdDays int
	cooldown      time.Duration
	now           func() time.Time
}

// NewStatusReconcile constructs the reconciliation job.
func NewStatusReconcile(store DocumentStore, dispatcher Dispatcher, thresholdDays int, cooldown time.Duration) *StatusReconcile {
	if thresholdDays <= 0 {
		thresholdDays = status.DefaultThresholdDays
	}
	if cooldown <= 0 {
		cooldown = notify.DefaultCooldown
	}
	return &StatusReconcile{
		store:         store,
		dispatcher:    dispatcher,
		thresholdDays: thresholdDays,
		cooldown:      cooldown,
		now:           time.Now,
	}
}

// ReconcileDetail describes one status transition (or failure).
type ReconcileDetail struct {
	DocumentID   string       `json:"documentId"`
	MerchantName string       `json:"merchantName"`
	OldStatus    model.Status `json:"oldStatus"`
	NewStatus    model.Status `json:"newStatus"`
	Reason       string       `json:"reason,omitempty"`
	Error        string       `json:"error,omitempty"`
}

// ReconcileSummary is the job's structured result.
type ReconcileSummary struct {
	Total   int               `json:"total"`
	Updated int               `json:"updated"`
	Skipped int               `json:"skipped"`
	Errors  int               `json:"errors"`
	Details []ReconcileDetail `json:"details"`
}

// Run recomputes statuses and persists only the documents whose derived
// status differs from the stored one. The version-checked status update
// doubles as the claim for the transition-to-expired notification, so a
// concurrent run can never double-notify.
func (j *StatusReconcile) Run(ctx context.Context) (*ReconcileSummary, error) {
	now := j.now().UTC()
	docs, err := j.store.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("find active documents: %w", err)
	}

	summary := &ReconcileSummary{Total: len(docs)}
	for _, doc := range docs {
		old := doc.Status
		next := status.Derive(doc.ExpirationDate, doc.Validation, now, j.thresholdDays)
		if next == old {
			continue
		}
		detail := ReconcileDetail{
			DocumentID:   doc.ID,
			MerchantName: doc.MerchantName,
			OldStatus:    old,
			NewStatus:    next,
		}
		if err := j.store.UpdateStatus(ctx, doc.ID, doc.Version, next); err != nil {
			if errors.Is(err, model.ErrConflict) {
				// Another run or a user edit touched the document; leave it
				// for the next pass.
				detail.Reason = "concurrent update"
				summary.Skipped++
			} else {
				detail.Error = err.Error()
				summary.Errors++
			}
			summary.Details = append(summary.Details, detail)
			continue
		}
		summary.Updated++
		log.Info().
			Str("document", doc.ID).
			Str("from", string(old)).
			Str("to", string(next)).
			Msg("document status reconciled")

		if next == model.StatusExpired {
			j.notifyExpired(ctx, doc, now)
		}
		summary.Details = append(summary.Details, detail)
	}
	log.Info().
		Int("total", summary.Total).
		Int("updated", summary.Updated).
		Int("errors", summary.Errors).
		Msg("status reconciliation complete")
	return summary, nil
}

func (j *StatusReconcile) notifyExpired(ctx context.Context, doc *model.Document, now time.Time) {
	if !notify.ShouldNotify(doc.Notifications, model.KindExpiration, now, j.cooldown) {
		return
	}
	doc.Status = model.StatusExpired
	records := j.dispatcher.DispatchDocument(ctx, doc, model.KindExpiration, 0)
	if err := j.store.AppendNotifications(ctx, doc.ID, records); err != nil {
		log.Error().Err(err).Str("document", doc.ID).Msg("append notification history failed")
	}
}
