package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmarquez/pcitrack/internal/model"
)

const documentColumns = `
	id, merchant_name, merchant_id, document_type, pci_version, file_name,
	object_key, issue_date, expiration_date, status, validation, assigned_to,
	version, created_at, updated_at`

// DocumentRepository wraps all document SQL used throughout the API and the
// jobs. Writes are guarded by the version column: an UPDATE that matches zero
// rows for an existing id means another writer got there first.
type DocumentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository constructs a repository.
func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

// Create inserts a new document at version 1.
func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	if err := doc.CheckDates(); err != nil {
		return err
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.Version = 1
	validation, err := marshalValidation(doc.Validation)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO documents (id, merchant_name, merchant_id, document_type, pci_version,
			file_name, object_key, issue_date, expiration_date, status, validation,
			assigned_to, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, doc.ID, doc.MerchantName, doc.MerchantID, doc.DocumentType, doc.PCIVersion,
		doc.FileName, doc.ObjectKey, doc.IssueDate, doc.ExpirationDate, doc.Status,
		validation, doc.AssignedTo, doc.Version, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// Get returns a document by id, including its notification history.
func (r *DocumentRepository) Get(ctx context.Context, id string) (*model.Document, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("document %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("select document: %w", err)
	}
	if err := r.loadNotifications(ctx, []*model.Document{doc}); err != nil {
		return nil, err
	}
	return doc, nil
}

// List returns all documents ordered by expiration date ascending, optionally
// filtered by status.
func (r *DocumentRepository) List(ctx context.Context, status model.Status) ([]*model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents ORDER BY expiration_date ASC`
	args := []any{}
	if status != "" {
		query = `SELECT ` + documentColumns + ` FROM documents WHERE status=$1 ORDER BY expiration_date ASC`
		args = append(args, status)
	}
	return r.queryDocuments(ctx, query, args...)
}

// FindExpiringWithin returns non-expired documents whose expiration date
// falls within [now, now+window], ordered by expiration date ascending.
func (r *DocumentRepository) FindExpiringWithin(ctx context.Context, now time.Time, window time.Duration) ([]*model.Document, error) {
	return r.queryDocuments(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE expiration_date >= $1 AND expiration_date <= $2 AND status <> $3
		ORDER BY expiration_date ASC
	`, now, now.Add(window), model.StatusExpired)
}

// FindActive returns documents in a non-terminal status, ordered by
// expiration date ascending.
func (r *DocumentRepository) FindActive(ctx context.Context) ([]*model.Document, error) {
	statuses := make([]string, len(model.ActiveStatuses))
	for i, s := range model.ActiveStatuses {
		statuses[i] = string(s)
	}
	return r.queryDocuments(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE status = ANY($1)
		ORDER BY expiration_date ASC
	`, statuses)
}

// Claim bumps the version if it still matches, serializing notification sends
// between concurrently running jobs.
func (r *DocumentRepository) Claim(ctx context.Context, id string, version int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE documents SET version=version+1, updated_at=$3
		WHERE id=$1 AND version=$2
	`, id, version, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("claim document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.conflictOrMissing(ctx, id)
	}
	return nil
}

// UpdateStatus persists a derived status under a version check.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, version int64, status model.Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE documents SET status=$3, version=version+1, updated_at=$4
		WHERE id=$1 AND version=$2
	`, id, version, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.conflictOrMissing(ctx, id)
	}
	return nil
}

// Save replaces a document's mutable fields under a version check and
// re-stamps the caller's copy with the new version.
func (r *DocumentRepository) Save(ctx context.Context, doc *model.Document) error {
	if err := doc.CheckDates(); err != nil {
		return err
	}
	validation, err := marshalValidation(doc.Validation)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	tag, err := r.pool.Exec(ctx, `
		UPDATE documents SET merchant_name=$3, merchant_id=$4, document_type=$5,
			pci_version=$6, issue_date=$7, expiration_date=$8, status=$9,
			validation=$10, assigned_to=$11, version=version+1, updated_at=$12
		WHERE id=$1 AND version=$2
	`, doc.ID, doc.Version, doc.MerchantName, doc.MerchantID, doc.DocumentType,
		doc.PCIVersion, doc.IssueDate, doc.ExpirationDate, doc.Status,
		validation, doc.AssignedTo, now)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.conflictOrMissing(ctx, doc.ID)
	}
	doc.Version++
	doc.UpdatedAt = now
	return nil
}

// AppendNotifications inserts attempt records into the append-only audit log.
func (r *DocumentRepository) AppendNotifications(ctx context.Context, id string, records []model.NotificationRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(`
			INSERT INTO document_notifications (id, document_id, kind, channel, recipient, outcome, message, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, rec.ID, id, rec.Kind, rec.Channel, rec.Recipient, rec.Outcome, rec.Message, rec.Timestamp)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("append notification: %w", err)
		}
	}
	return nil
}

// CountByStatus returns document counts keyed by status.
func (r *DocumentRepository) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	defer rows.Close()
	counts := make(map[model.Status]int)
	for rows.Next() {
		var status model.Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *DocumentRepository) conflictOrMissing(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM documents WHERE id=$1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check document: %w", err)
	}
	if !exists {
		return fmt.Errorf("document %s: %w", id, model.ErrNotFound)
	}
	return fmt.Errorf("document %s: %w", id, model.ErrConflict)
}

func (r *DocumentRepository) queryDocuments(ctx context.Context, query string, args ...any) ([]*model.Document, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()
	var docs []*model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadNotifications(ctx, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// loadNotifications fetches the notification history for the given documents
// in one round trip, in chronological order.
func (r *DocumentRepository) loadNotifications(ctx context.Context, docs []*model.Document) error {
	if len(docs) == 0 {
		return nil
	}
	ids := make([]string, len(docs))
	byID := make(map[string]*model.Document, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
		byID[doc.ID] = doc
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, document_id, kind, channel, recipient, outcome, message, created_at
		FROM document_notifications
		WHERE document_id = ANY($1)
		ORDER BY created_at ASC
	`, ids)
	if err != nil {
		return fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rec model.NotificationRecord
		var docID string
		if err := rows.Scan(&rec.ID, &docID, &rec.Kind, &rec.Channel, &rec.Recipient, &rec.Outcome, &rec.Message, &rec.Timestamp); err != nil {
			return fmt.Errorf("scan notification: %w", err)
		}
		if doc, ok := byID[docID]; ok {
			doc.Notifications = append(doc.Notifications, rec)
		}
	}
	return rows.Err()
}

func scanDocument(row pgx.Row) (*model.Document, error) {
	var (
		doc        model.Document
		validation []byte
		assignedTo sql.NullString
	)
	if err := row.Scan(&doc.ID, &doc.MerchantName, &doc.MerchantID, &doc.DocumentType,
		&doc.PCIVersion, &doc.FileName, &doc.ObjectKey, &doc.IssueDate, &doc.ExpirationDate,
		&doc.Status, &validation, &assignedTo, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	if len(validation) > 0 {
		var v model.ValidationResult
		if err := json.Unmarshal(validation, &v); err != nil {
			return nil, fmt.Errorf("decode validation: %w", err)
		}
		doc.Validation = &v
	}
	if assignedTo.Valid {
		id := assignedTo.String
		doc.AssignedTo = &id
	}
	return &doc, nil
}

func marshalValidation(v *model.ValidationResult) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode validation: %w", err)
	}
	return data, nil
}
