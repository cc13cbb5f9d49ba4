// Package status computes a document's lifecycle status from its dates and
// validation outcome. Derivation is pure so every write path and scheduled
// pass can call it without touching the store.
package status

import (
	"math"
	"time"

	"github.com/dmarquez/pcitrack/internal/model"
)

// DefaultThresholdDays is the expiring-soon window when none is configured.
const DefaultThresholdDays = 30

// Derive returns the status for a document with the given expiration date and
// validation result as of now. Priority order, first match wins:
// expired > expiring soon > invalid > valid > pending review.
// now equal to the expiration date counts as not yet expired.
func Derive(expiration time.Time, validation *model.ValidationResult, now time.Time, thresholdDays int) model.Status {
	if thresholdDays <= 0 {
		thresholdDays = DefaultThresholdDays
	}
	if now.After(expiration) {
		return model.StatusExpired
	}
	if DaysRemaining(expiration, now) <= thresholdDays {
		return model.StatusExpiringSoon
	}
	if validation.Rejected() {
		return model.StatusInvalid
	}
	if validation.Valid() {
		return model.StatusValid
	}
	return model.StatusPendingReview
}

// DaysRemaining is the number of days until expiration, rounded up so a
// partial day still counts as one remaining day. Zero or negative means the
// document has reached its expiration date.
func DaysRemaining(expiration, now time.Time) int {
	return int(math.Ceil(expiration.Sub(now).Hours() / 24))
}

// Apply recomputes and stores the derived status on the document. It returns
// true when the status changed.
func Apply(doc *model.Document, now time.Time, thresholdDays int) bool {
	next := Derive(doc.ExpirationDate, doc.Validation, now, thresholdDays)
	if next == doc.Status {
		return false
	}
	doc.Status = next
	return true
}
