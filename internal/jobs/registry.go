package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dmarquez/pcitrack/internal/model"
)

// Runner executes one job run and returns its structured summary.
type Runner func(ctx context.Context) (any, error)

// Registry maps job names to runners. It is built once at startup and read
// afterwards; a per-job lock keeps a job from overlapping its own scheduled
// or manual invocations, while distinct jobs run concurrently.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	mu  sync.Mutex
	run Runner
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Register adds a named job. Registering the same name twice replaces the
// runner.
func (r *Registry) Register(name string, run Runner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = &registryEntry{run: run}
}

// Run executes the named job, blocking until any in-flight run of the same
// job finishes first. Unknown names fail with model.ErrNotFound.
func (r *Registry) Run(ctx context.Context, name string) (any, error) {
	r.mu.RLock()
	entry, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("job %q: %w", name, model.ErrNotFound)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.run(ctx)
}

// Names lists the registered job names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewDefaultRegistry wires the three standard jobs under their well-known
// names.
func NewDefaultRegistry(scan *ExpirationScan, reconcile *StatusReconcile, report *WeeklyReport) *Registry {
	r := NewRegistry()
	r.Register(JobExpirationScan, func(ctx context.Context) (any, error) { return scan.Run(ctx) })
	r.Register(JobStatusReconcile, func(ctx context.Context) (any, error) { return reconcile.Run(ctx) })
	r.Register(JobWeeklyReport, func(ctx context.Context) (any, error) { return report.Run(ctx) })
	return r
}
