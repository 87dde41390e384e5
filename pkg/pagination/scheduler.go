package pagination

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/tomhatch/slotscope/pkg/timeslot"
)

// Prometheus metrics for fan-out scheduling.
var (
	tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slotscope_tasks_total",
		Help: "Total (provider, date) tasks by result",
	}, []string{"result"})

	taskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "slotscope_task_duration_seconds",
		Help:    "Duration of one (provider, date) walk in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

// TaskResult is the terminal outcome of one (provider, date) task.
// Err is nil for a success; a failure keeps the provider and date so
// the caller can report exactly which combination failed.
type TaskResult struct {
	Provider timeslot.ProviderRef
	Date     string
	Slots    []timeslot.RawSlot
	Err      error
}

// Failed reports whether the task ended in failure.
func (r TaskResult) Failed() bool {
	return r.Err != nil
}

// SchedulerConfig holds fan-out configuration.
type SchedulerConfig struct {
	// MaxConcurrency is the maximum number of walks in flight.
	MaxConcurrency int

	// TaskTimeout bounds one full walk, pages and retries included.
	TaskTimeout time.Duration
}

// DefaultSchedulerConfig returns safe defaults for the scheduling API.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxConcurrency: 8,
		TaskTimeout:    2 * time.Minute,
	}
}

// Scheduler fans one walk per (provider, date) pair out across a
// bounded worker pool and collects every task's terminal result.
type Scheduler struct {
	walker *Walker
	config SchedulerConfig
}

// NewScheduler creates a scheduler around the given walker.
func NewScheduler(walker *Walker, config SchedulerConfig) *Scheduler {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 8
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = 2 * time.Minute
	}
	return &Scheduler{
		walker: walker,
		config: config,
	}
}

// task is one (provider, date) unit of work.
type task struct {
	provider timeslot.ProviderRef
	date     string
}

// Run executes one walk per (provider, date) pair concurrently and
// returns exactly len(providers)*len(dates) results. A failing task is
// captured as a failure result for that pair and never aborts, cancels,
// or otherwise affects the rest of the run. Result order is completion
// order and carries no meaning.
func (s *Scheduler) Run(ctx context.Context, providers []timeslot.ProviderRef, dates []string) []TaskResult {
	start := time.Now()
	total := len(providers) * len(dates)

	log.Info().
		Int("providers", len(providers)).
		Int("dates", len(dates)).
		Int("tasks", total).
		Int("workers", s.config.MaxConcurrency).
		Msg("Starting availability fan-out")

	taskQueue := make(chan task, total)
	taskResults := make(chan TaskResult, total)

	for _, provider := range providers {
		for _, date := range dates {
			taskQueue <- task{provider: provider, date: date}
		}
	}
	close(taskQueue)

	var wg sync.WaitGroup
	for i := 0; i < s.config.MaxConcurrency; i++ {
		wg.Add(1)
		go s.worker(ctx, taskQueue, taskResults, &wg, i)
	}

	go func() {
		wg.Wait()
		close(taskResults)
	}()

	results := make([]TaskResult, 0, total)
	completed := 0
	failures := 0
	for result := range taskResults {
		completed++
		if result.Failed() {
			failures++
			tasksTotal.WithLabelValues("failure").Inc()
			log.Warn().
				Err(result.Err).
				Str("npi", result.Provider.NPI).
				Str("date", result.Date).
				Msg("Task failed")
		} else {
			tasksTotal.WithLabelValues("success").Inc()
		}
		results = append(results, result)

		// Progress logging every 10 tasks
		if completed%10 == 0 {
			log.Info().
				Int("completed", completed).
				Int("total", total).
				Float64("progress_pct", float64(completed)/float64(total)*100).
				Msg("Fan-out progress")
		}
	}

	log.Info().
		Int("tasks", total).
		Int("failures", failures).
		Dur("duration", time.Since(start)).
		Msg("Fan-out complete")

	return results
}

// worker drains tasks from the queue, running each walk to a terminal
// result. Every task emits exactly one result, including after
// cancellation.
func (s *Scheduler) worker(ctx context.Context, taskQueue <-chan task, taskResults chan<- TaskResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	tasksProcessed := 0

	for tk := range taskQueue {
		select {
		case <-ctx.Done():
			taskResults <- TaskResult{Provider: tk.provider, Date: tk.date, Err: ctx.Err()}
			continue
		default:
		}

		taskStart := time.Now()
		taskCtx, cancel := context.WithTimeout(ctx, s.config.TaskTimeout)
		slots, err := s.walker.Walk(taskCtx, tk.provider, tk.date)
		cancel()
		taskDuration.Observe(time.Since(taskStart).Seconds())

		taskResults <- TaskResult{
			Provider: tk.provider,
			Date:     tk.date,
			Slots:    slots,
			Err:      err,
		}
		tasksProcessed++
	}

	if tasksProcessed > 0 {
		log.Debug().
			Int("worker_id", workerID).
			Int("tasks_processed", tasksProcessed).
			Msg("Worker completed")
	}
}
