// Package worker plugs the extraction pipeline and the scheduled jobs into
// the asynq worker loop.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/dmarquez/pcitrack/internal/extract"
	"github.com/dmarquez/pcitrack/internal/jobs"
	"github.com/dmarquez/pcitrack/internal/model"
	"github.com/dmarquez/pcitrack/internal/queue"
	"github.com/dmarquez/pcitrack/internal/repository"
	"github.com/dmarquez/pcitrack/internal/s3storage"
	"github.com/dmarquez/pcitrack/internal/status"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	repo          *repository.DocumentRepository
	store         *s3storage.Storage
	registry      *jobs.Registry
	thresholdDays int
}

// NewProcessor constructs a worker processor.
func NewProcessor(repo *repository.DocumentRepository, store *s3storage.Storage, registry *jobs.Registry, thresholdDays int) *Processor {
	return &Processor{repo: repo, store: store, registry: registry, thresholdDays: thresholdDays}
}

// Handler registers the task handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ExtractDocumentTask, p.handleExtract)
	mux.HandleFunc(queue.ScheduledJobTask, p.handleScheduledJob)
	return mux
}

func (p *Processor) handleExtract(ctx context.Context, task *asynq.Task) error {
	var payload queue.ExtractPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	data, err := p.store.Download(ctx, payload.ObjectKey)
	if err != nil {
		return fmt.Errorf("download %s: %w", payload.ObjectKey, err)
	}
	text, err := extract.Text(data)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}

	// Re-fetch inside the save loop so a concurrent edit only costs a retry.
	for attempt := 0; attempt < 3; attempt++ {
		doc, err := p.repo.Get(ctx, payload.DocumentID)
		if err != nil {
			return fmt.Errorf("load document: %w", err)
		}
		fields := extract.ParseFields(text, doc.DocumentType)
		now := time.Now().UTC()
		doc.Validation = extract.AutoValidate(doc, fields, now)
		if doc.PCIVersion == "" {
			doc.PCIVersion = fields[extract.FieldPCIVersion]
		}
		status.Apply(doc, now, p.thresholdDays)
		if err := p.repo.Save(ctx, doc); err != nil {
			if errors.Is(err, model.ErrConflict) {
				continue
			}
			return fmt.Errorf("save document: %w", err)
		}
		log.Info().
			Str("document", doc.ID).
			Str("status", string(doc.Status)).
			Int("fields", len(fields)).
			Msg("document extracted")
		return nil
	}
	return fmt.Errorf("save document %s: %w", payload.DocumentID, model.ErrConflict)
}

// handleScheduledJob runs a registered job. Job-level failures are logged and
// not retried by the queue; the next cron firing is the retry.
func (p *Processor) handleScheduledJob(ctx context.Context, task *asynq.Task) error {
	var payload queue.JobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	summary, err := p.registry.Run(ctx, payload.Name)
	if err != nil {
		log.Error().Err(err).Str("job", payload.Name).Msg("scheduled job failed")
		return err
	}
	if out, err := json.Marshal(summary); err == nil {
		log.Info().Str("job", payload.Name).RawJSON("summary", out).Msg("scheduled job complete")
	}
	return nil
}
