package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/dmarquez/pcitrack/internal/model"
)

// Field keys stored in validation.extractedData.
const (
	FieldMerchantName   = "merchantName"
	FieldPCIVersion     = "pciVersion"
	FieldIssueDate      = "issueDate"
	FieldExpirationDate = "expirationDate"
	FieldEvaluator      = "evaluator"
)

var (
	merchantRe  = regexp.MustCompile(`(?im)^\s*(?:company|merchant|organization)(?:\s+name)?\s*[:\-]\s*(.+)$`)
	versionRe   = regexp.MustCompile(`(?i)PCI\s*DSS\s*v(?:ersion)?\s*\.?\s*(\d+\.\d+(?:\.\d+)?)`)
	issueRe     = regexp.MustCompile(`(?im)^\s*(?:issue|assessment|report)\s+date\s*[:\-]\s*(.+)$`)
	expireRe    = regexp.MustCompile(`(?im)^\s*(?:expiration|expiry|valid\s+until)\s*(?:date)?\s*[:\-]\s*(.+)$`)
	evaluatorRe = regexp.MustCompile(`(?im)^\s*(?:QSA|assessor|evaluator)(?:\s+(?:company|name))?\s*[:\-]\s*(.+)$`)
)

// dateLayouts covers the formats seen in AOC/SAQ/ASV exports.
var dateLayouts = []string{"2006-01-02", "January 2, 2006", "Jan 2, 2006", "02/01/2006", "01/02/2006"}

// ParseFields scans extracted document text for the metadata the tracker
// cares about. Missing fields are simply absent from the result; the
// extraction contract is best effort.
func ParseFields(text string, _ model.DocumentType) map[string]string {
	fields := make(map[string]string)
	capture := func(key string, re *regexp.Regexp) {
		if m := re.FindStringSubmatch(text); m != nil {
			fields[key] = strings.TrimSpace(m[1])
		}
	}
	capture(FieldMerchantName, merchantRe)
	capture(FieldIssueDate, issueRe)
	capture(FieldExpirationDate, expireRe)
	capture(FieldEvaluator, evaluatorRe)
	if m := versionRe.FindStringSubmatch(text); m != nil {
		fields[FieldPCIVersion] = m[1]
	}
	return fields
}

// ParseDate tries the known layouts for a captured date string.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// AutoValidate builds an automatic ValidationResult from parsed fields. The
// document passes when the merchant name and PCI version were both found and
// any extracted expiration date agrees with the recorded one.
func AutoValidate(doc *model.Document, fields map[string]string, now time.Time) *model.ValidationResult {
	var missing []string
	for _, key := range []string{FieldMerchantName, FieldPCIVersion} {
		if fields[key] == "" {
			missing = append(missing, key)
		}
	}
	valid := len(missing) == 0
	notes := "automatic extraction"
	if !valid {
		notes = "automatic extraction, missing: " + strings.Join(missing, ", ")
	}
	if raw := fields[FieldExpirationDate]; raw != "" {
		if parsed, ok := ParseDate(raw); ok && !sameDay(parsed, doc.ExpirationDate) {
			valid = false
			notes += "; extracted expiration date does not match the recorded one"
		}
	}
	return &model.ValidationResult{
		IsValid:       &valid,
		Method:        model.ValidationAutomatic,
		Notes:         notes,
		ValidatedAt:   now.UTC(),
		ExtractedData: fields,
	}
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
