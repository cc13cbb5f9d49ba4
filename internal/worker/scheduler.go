package worker

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dmarquez/pcitrack/internal/config"
	"github.com/dmarquez/pcitrack/internal/jobs"
	"github.com/dmarquez/pcitrack/internal/queue"
)

// NewScheduler builds the asynq cron scheduler with the three recurring jobs.
// Scheduled tasks are enqueued with MaxRetry(0): a failed run waits for its
// next cron firing instead of being retried by the queue.
func NewScheduler(cfg *config.Config, redisOpt asynq.RedisClientOpt) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC})
	entries := []struct {
		spec string
		name string
	}{
		{cfg.ScanCron, jobs.JobExpirationScan},
		{cfg.ReconcileCron, jobs.JobStatusReconcile},
		{cfg.ReportCron, jobs.JobWeeklyReport},
	}
	for _, e := range entries {
		task, err := queue.NewJobTask(e.name)
		if err != nil {
			return nil, err
		}
		if _, err := scheduler.Register(e.spec, task, asynq.MaxRetry(0)); err != nil {
			return nil, fmt.Errorf("register %s (%q): %w", e.name, e.spec, err)
		}
	}
	return scheduler, nil
}
