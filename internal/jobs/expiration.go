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

// DefaultNotifyWindowDays is how far ahead the scan looks for expirations.
const DefaultNotifyWindowDays = 30

// ExpirationScan finds documents nearing expiration and alerts their
// stakeholders, at most once per cooldown window.
type ExpirationScan struct {
	store      DocumentStore
	dispatcher Dispatcher
	window     time.Duration
	cooldown   time.Duration
	now        func() time.Time
}

// NewExpirationScan constructs the scan job. windowDays and cooldown fall back
// to the defaults when non-positive.
func NewExpirationScan(store DocumentStore, dispatcher Dispatcher, windowDays int, cooldown time.Duration) *ExpirationScan {
	if windowDays <= 0 {
		windowDays = DefaultNotifyWindowDays
	}
	if cooldown <= 0 {
		cooldown = notify.DefaultCooldown
	}
	return &ExpirationScan{
		store:      store,
		dispatcher: dispatcher,
		window:     time.Duration(windowDays) * 24 * time.Hour,
		cooldown:   cooldown,
		now:        time.Now,
	}
}

// ScanDetail describes the outcome for one document.
type ScanDetail struct {
	DocumentID    string `json:"documentId"`
	MerchantName  string `json:"merchantName"`
	DaysRemaining int    `json:"daysRemaining"`
	Notified      bool   `json:"notified"`
	Reason        string `json:"reason,omitempty"`
	Error         string `json:"error,omitempty"`
}

// ScanSummary is the job's structured result.
type ScanSummary struct {
	Total    int          `json:"total"`
	Notified int          `json:"notified"`
	Skipped  int          `json:"skipped"`
	Errors   int          `json:"errors"`
	Details  []ScanDetail `json:"details"`
}

// Run scans for documents expiring within the window and dispatches alerts.
// Documents are processed independently: a failure for one never aborts the
// rest. Only a store-level failure on the initial query aborts the run.
func (j *ExpirationScan) Run(ctx context.Context) (*ScanSummary, error) {
	now := j.now().UTC()
	docs, err := j.store.FindExpiringWithin(ctx, now, j.window)
	if err != nil {
		return nil, fmt.Errorf("find expiring documents: %w", err)
	}
	log.Info().Int("count", len(docs)).Msg("expiration scan: documents nearing expiration")

	summary := &ScanSummary{Total: len(docs)}
	for _, doc := range docs {
		summary.Details = append(summary.Details, j.process(ctx, doc, now, summary))
	}
	log.Info().
		Int("total", summary.Total).
		Int("notified", summary.Notified).
		Int("skipped", summary.Skipped).
		Int("errors", summary.Errors).
		Msg("expiration scan complete")
	return summary, nil
}

func (j *ExpirationScan) process(ctx context.Context, doc *model.Document, now time.Time, summary *ScanSummary) ScanDetail {
	detail := ScanDetail{
		DocumentID:    doc.ID,
		MerchantName:  doc.MerchantName,
		DaysRemaining: status.DaysRemaining(doc.ExpirationDate, now),
	}
	if !notify.ShouldNotify(doc.Notifications, model.KindExpiration, now, j.cooldown) {
		detail.Reason = "recent notification"
		summary.Skipped++
		return detail
	}
	// Claim before dispatching so concurrent runs cannot both send. The loser
	// of the version race drops the document for this run; the next scheduled
	// pass picks it up again.
	if err := j.store.Claim(ctx, doc.ID, doc.Version); err != nil {
		if errors.Is(err, model.ErrConflict) {
			detail.Reason = "concurrent update"
			summary.Skipped++
			return detail
		}
		detail.Error = err.Error()
		summary.Errors++
		return detail
	}
	records := j.dispatcher.DispatchDocument(ctx, doc, model.KindExpiration, detail.DaysRemaining)
	if err := j.store.AppendNotifications(ctx, doc.ID, records); err != nil {
		log.Error().Err(err).Str("document", doc.ID).Msg("append notification history failed")
		detail.Error = err.Error()
		summary.Errors++
		return detail
	}
	detail.Notified = true
	summary.Notified++
	return detail
}
