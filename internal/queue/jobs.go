package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// ExtractDocumentTask is scheduled each time a PDF is uploaded.
	ExtractDocumentTask = "document:extract"
	// ScheduledJobTask carries a registered job name; the scheduler enqueues
	// one per cron firing.
	ScheduledJobTask = "jobs:run"
)

// ExtractPayload is serialized into the task payload so the worker knows
// which object to download from MinIO.
type ExtractPayload struct {
	DocumentID string `json:"document_id"`
	ObjectKey  string `json:"object_key"`
	FileName   string `json:"file_name"`
}

// JobPayload names the registered job a scheduled task should run.
type JobPayload struct {
	Name string `json:"name"`
}

// EnqueueExtract enqueues a PDF extraction job.
func EnqueueExtract(ctx context.Context, client *asynq.Client, payload ExtractPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(ExtractDocumentTask, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue extract task: %w", err)
	}
	return nil
}

// NewJobTask builds the task the scheduler registers for a cron entry.
func NewJobTask(name string) (*asynq.Task, error) {
	data, err := json.Marshal(JobPayload{Name: name})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(ScheduledJobTask, data), nil
}
