package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dmarquez/pcitrack/internal/model"
)

// WeeklyReport aggregates document statistics and upcoming expirations into a
// digest sent to every email-enabled active administrator. The job is
// read-only with respect to documents.
type WeeklyReport struct {
	store      DocumentStore
	users      UserDirectory
	dispatcher Dispatcher
	now        func() time.Time
}

// NewWeeklyReport constructs the report job.
func NewWeeklyReport(store DocumentStore, users UserDirectory, dispatcher Dispatcher) *WeeklyReport {
	return &WeeklyReport{
		store:      store,
		users:      users,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// ReportStatistics holds per-status document counts.
type ReportStatistics struct {
	Total         int `json:"total"`
	Valid         int `json:"valid"`
	ExpiringSoon  int `json:"expiringSoon"`
	Expired       int `json:"expired"`
	PendingReview int `json:"pendingReview"`
	Invalid       int `json:"invalid"`
}

// UpcomingExpiration is one row of the digest table.
type UpcomingExpiration struct {
	DocumentID     string             `json:"documentId"`
	MerchantName   string             `json:"merchantName"`
	DocumentType   model.DocumentType `json:"documentType"`
	ExpirationDate time.Time          `json:"expirationDate"`
	Status         model.Status       `json:"status"`
}

// DigestDelivery records the outcome of one administrator digest.
type DigestDelivery struct {
	Recipient string                    `json:"recipient"`
	Outcome   model.NotificationOutcome `json:"outcome"`
}

// Report is the job's structured result.
type Report struct {
	GeneratedAt         time.Time            `json:"generatedAt"`
	Statistics          ReportStatistics     `json:"statistics"`
	UpcomingExpirations []UpcomingExpiration `json:"upcomingExpirations"`
	Deliveries          []DigestDelivery     `json:"deliveries"`
}

// Run builds the report and delivers it. A failure to reach one administrator
// does not block delivery to the others.
func (j *WeeklyReport) Run(ctx context.Context) (*Report, error) {
	now := j.now().UTC()
	counts, err := j.store.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	upcoming, err := j.store.FindExpiringWithin(ctx, now, 30*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("find upcoming expirations: %w", err)
	}

	report := &Report{
		GeneratedAt: now,
		Statistics: ReportStatistics{
			Valid:         counts[model.StatusValid],
			ExpiringSoon:  counts[model.StatusExpiringSoon],
			Expired:       counts[model.StatusExpired],
			PendingReview: counts[model.StatusPendingReview],
			Invalid:       counts[model.StatusInvalid],
		},
	}
	for _, n := range counts {
		report.Statistics.Total += n
	}
	for _, doc := range upcoming {
		report.UpcomingExpirations = append(report.UpcomingExpirations, UpcomingExpiration{
			DocumentID:     doc.ID,
			MerchantName:   doc.MerchantName,
			DocumentType:   doc.DocumentType,
			ExpirationDate: doc.ExpirationDate,
			Status:         doc.Status,
		})
	}

	admins, err := j.users.FindActiveAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("find administrators: %w", err)
	}
	subject := "Weekly PCI document report"
	body := digestBody(report)
	for _, admin := range admins {
		if !admin.Preferences.Email.Enabled {
			continue
		}
		rec := j.dispatcher.DispatchDigest(ctx, admin, subject, body)
		report.Deliveries = append(report.Deliveries, DigestDelivery{
			Recipient: rec.Recipient,
			Outcome:   rec.Outcome,
		})
	}
	log.Info().
		Int("total", report.Statistics.Total).
		Int("upcoming", len(report.UpcomingExpirations)).
		Int("digests", len(report.Deliveries)).
		Msg("weekly report generated")
	return report, nil
}

func digestBody(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Weekly PCI document report, generated %s\n\n", r.GeneratedAt.Format("2006-01-02"))
	fmt.Fprintf(&b, "Totals: %d documents\n", r.Statistics.Total)
	fmt.Fprintf(&b, "  valid: %d\n", r.Statistics.Valid)
	fmt.Fprintf(&b, "  expiring soon: %d\n", r.Statistics.ExpiringSoon)
	fmt.Fprintf(&b, "  expired: %d\n", r.Statistics.Expired)
	fmt.Fprintf(&b, "  pending review: %d\n", r.Statistics.PendingReview)
	fmt.Fprintf(&b, "  invalid: %d\n", r.Statistics.Invalid)
	b.WriteString("\nExpirations in the next 30 days:\n")
	if len(r.UpcomingExpirations) == 0 {
		b.WriteString("  none\n")
	}
	for _, up := range r.UpcomingExpirations {
		fmt.Fprintf(&b, "  %s  %-8s %s (%s)\n",
			up.ExpirationDate.Format("2006-01-02"), up.DocumentType, up.MerchantName, up.Status)
	}
	return b.String()
}
