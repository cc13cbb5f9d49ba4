// Package model contains the struct definitions shared across packages.
package model

import (
	"time"
)

// Status describes the compliance lifecycle of a document. It is derived from
// the document's dates and validation outcome and is recomputed on every
// relevant mutation; it is never authoritative on its own.
type Status string

const (
	StatusPendingReview Status = "pending_review"
	StatusValid         Status = "valid"
	StatusExpiringSoon  Status = "expiring_soon"
	StatusExpired       Status = "expired"
	StatusInvalid       Status = "invalid"
)

// ActiveStatuses are the states the reconciliation job still cares about.
// Expired and invalid documents are terminal until their dates or validation
// change through the API.
var ActiveStatuses = []Status{StatusPendingReview, StatusValid, StatusExpiringSoon}

// DocumentType enumerates the PCI-DSS artifact kinds we track.
type DocumentType string

const (
	TypeAOC    DocumentType = "AOC"
	TypeSAQA   DocumentType = "SAQ-A"
	TypeSAQAEP DocumentType = "SAQ-A-EP"
	TypeSAQB   DocumentType = "SAQ-B"
	TypeSAQC   DocumentType = "SAQ-C"
	TypeSAQD   DocumentType = "SAQ-D"
	TypeASV    DocumentType = "ASV"
	TypeP2PE   DocumentType = "P2PE"
	TypeOther  DocumentType = "OTHER"
)

// ValidationMethod records how a document was reviewed.
type ValidationMethod string

const (
	ValidationManual    ValidationMethod = "manual"
	ValidationAutomatic ValidationMethod = "automatic"
	ValidationNone      ValidationMethod = "none"
)

// ValidationResult is set by manual review or by the extraction pipeline.
// IsValid is a pointer so "not reviewed yet" is distinguishable from an
// explicit pass/fail.
type ValidationResult struct {
	IsValid       *bool             `json:"isValid,omitempty"`
	Method        ValidationMethod  `json:"method"`
	Notes         string            `json:"notes,omitempty"`
	ValidatedAt   time.Time         `json:"validatedAt,omitempty"`
	ExtractedData map[string]string `json:"extractedData,omitempty"`
}

// Valid reports whether the result is an explicit pass.
func (v *ValidationResult) Valid() bool {
	return v != nil && v.IsValid != nil && *v.IsValid
}

// Rejected reports whether the result is an explicit fail.
func (v *ValidationResult) Rejected() bool {
	return v != nil && v.IsValid != nil && !*v.IsValid
}

// NotificationKind classifies notification events.
type NotificationKind string

const (
	KindExpiration NotificationKind = "expiration"
	KindUpdate     NotificationKind = "update"
	KindReport     NotificationKind = "report"
)

// NotificationOutcome is the delivery result of a single attempt.
type NotificationOutcome string

const (
	OutcomeSent   NotificationOutcome = "sent"
	OutcomeFailed NotificationOutcome = "failed"
)

// NotificationChannel identifies the transport used for an attempt.
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelSlack NotificationChannel = "slack"
)

// NotificationRecord is one entry of a document's append-only notification
// history. Records are never rewritten, only appended in chronological order.
type NotificationRecord struct {
	ID        string              `json:"id"`
	Kind      NotificationKind    `json:"kind"`
	Timestamp time.Time           `json:"timestamp"`
	Channel   NotificationChannel `json:"channel"`
	Recipient string              `json:"recipient"`
	Outcome   NotificationOutcome `json:"outcome"`
	Message   string              `json:"message,omitempty"`
}

// Document is a compliance artifact record.
type Document struct {
	ID             string               `json:"id"`
	MerchantName   string               `json:"merchantName"`
	MerchantID     string               `json:"merchantId,omitempty"`
	DocumentType   DocumentType         `json:"documentType"`
	PCIVersion     string               `json:"pciVersion,omitempty"`
	FileName       string               `json:"fileName"`
	ObjectKey      string               `json:"-"`
	IssueDate      time.Time            `json:"issueDate"`
	ExpirationDate time.Time            `json:"expirationDate"`
	Status         Status               `json:"status"`
	Validation     *ValidationResult    `json:"validation,omitempty"`
	Notifications  []NotificationRecord `json:"notifications"`
	AssignedTo     *string              `json:"assignedTo,omitempty"`
	// Version backs optimistic concurrency at the store. Every successful
	// write bumps it; writers carry the version they read.
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CheckDates enforces the date ordering invariant at the mutation boundary.
func (d *Document) CheckDates() error {
	if d.IssueDate.IsZero() || d.ExpirationDate.IsZero() {
		return &ValidationError{Field: "issueDate/expirationDate", Reason: "both dates are required"}
	}
	if !d.ExpirationDate.After(d.IssueDate) {
		return &ValidationError{Field: "expirationDate", Reason: "must be strictly after issueDate"}
	}
	return nil
}
