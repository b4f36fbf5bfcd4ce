package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
	"github.com/custodia-labs/opreq-core/internal/core/ports/driven"
	"github.com/custodia-labs/opreq-core/internal/core/ports/driving"
	"github.com/custodia-labs/opreq-core/internal/core/services"
)

// Worker processes tasks from the task queue. It runs queued document
// imports through the same pipeline a synchronous import uses, and
// handles periodic maintenance tasks.
type Worker struct {
	taskQueue    driven.TaskQueue
	jobStore     driven.JobStore
	sessionStore driven.SessionStore
	importer     driving.ImportService
	scheduler    *services.Scheduler
	logger       *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout int // seconds
	jobRetention   time.Duration

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	JobStore       driven.JobStore
	SessionStore   driven.SessionStore
	Importer       driving.ImportService
	Scheduler      *services.Scheduler
	Logger         *slog.Logger
	Concurrency    int           // Number of concurrent task processors
	DequeueTimeout int           // Seconds to wait for a task before checking again
	JobRetention   time.Duration // How long finished import jobs are kept
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	jobRetention := cfg.JobRetention
	if jobRetention <= 0 {
		jobRetention = 7 * 24 * time.Hour
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		jobStore:       cfg.JobStore,
		sessionStore:   cfg.SessionStore,
		importer:       cfg.Importer,
		scheduler:      cfg.Scheduler,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
		jobRetention:   jobRetention,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	// Start the scheduler if provided
	if w.scheduler != nil {
		if err := w.scheduler.Start(ctx); err != nil {
			w.logger.Error("failed to start scheduler", "error", err)
		}
	}

	// Start worker goroutines
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	// Wait for all workers to finish
	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	// Stop the scheduler
	if w.scheduler != nil {
		w.scheduler.Stop()
	}

	// Wait for workers to finish
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

// processLoop is the main processing loop for a worker goroutine.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Info("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Info("worker stop signal received")
			return
		default:
		}

		// Dequeue a task with timeout
		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			time.Sleep(time.Second) // Back off on error
			continue
		}

		if task == nil {
			// No task available, continue
			continue
		}

		// Process the task
		w.processTask(ctx, task, logger)
	}
}

// processTask processes a single task.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type, "group", task.Group)
	logger.Info("processing task")

	startTime := time.Now()
	var err error

	switch task.Type {
	case domain.TaskTypeImportDocument:
		err = w.handleImportDocument(ctx, task)
	case domain.TaskTypePruneJobs:
		err = w.handlePruneJobs(ctx)
	default:
		err = fmt.Errorf("unknown task type: %s", task.Type)
	}

	duration := time.Since(startTime)

	if err != nil {
		logger.Error("task failed",
			"duration", duration,
			"error", err,
		)

		// Nack the task so it can be retried
		if nackErr := w.taskQueue.Nack(ctx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
		return
	}

	logger.Info("task completed", "duration", duration)

	// Ack the task
	if ackErr := w.taskQueue.Ack(ctx, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

// handleImportDocument runs a stored import job. The job carries the
// actor and options asserted at upload time; the document is fetched
// separately so job listings never load payloads.
func (w *Worker) handleImportDocument(ctx context.Context, task *domain.Task) error {
	jobID := task.JobID()
	if jobID == "" {
		return fmt.Errorf("job_id not found in task payload")
	}

	job, err := w.jobStore.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job.Finished() {
		// Redelivered after a crash between import and ack; the stored
		// outcome stands.
		w.logger.Info("job already finished, skipping", "job_id", jobID, "status", job.Status)
		return nil
	}

	document, err := w.jobStore.GetDocument(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load document for job %s: %w", jobID, err)
	}

	job.MarkRunning()
	if err := w.jobStore.Save(ctx, job); err != nil {
		return fmt.Errorf("mark job %s running: %w", jobID, err)
	}

	result, err := w.importer.Import(ctx, job.Group, document, job.Actor, job.Options)
	if err != nil {
		// A fatal error (unreadable document, infrastructure failure)
		// fails the job; validation problems land in the result instead.
		job.MarkFailed(err.Error())
		if saveErr := w.jobStore.Save(ctx, job); saveErr != nil {
			return fmt.Errorf("record job %s failure: %w", jobID, saveErr)
		}
		return nil
	}

	job.MarkCompleted(result)
	if err := w.jobStore.Save(ctx, job); err != nil {
		return fmt.Errorf("record job %s result: %w", jobID, err)
	}

	return nil
}

// handlePruneJobs removes finished import jobs past retention, expired
// sessions, and old completed tasks.
func (w *Worker) handlePruneJobs(ctx context.Context) error {
	cutoff := time.Now().Add(-w.jobRetention)

	jobs, err := w.jobStore.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune jobs: %w", err)
	}

	sessions := 0
	if w.sessionStore != nil {
		sessions, err = w.sessionStore.DeleteExpired(ctx)
		if err != nil {
			return fmt.Errorf("prune sessions: %w", err)
		}
	}

	tasks, err := w.taskQueue.PurgeTasks(ctx, int(w.jobRetention.Seconds()))
	if err != nil {
		return fmt.Errorf("purge tasks: %w", err)
	}

	w.logger.Info("maintenance pass complete",
		"jobs_deleted", jobs,
		"sessions_deleted", sessions,
		"tasks_purged", tasks,
	)
	return nil
}

// Health returns health status of the worker.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{
		Running: running,
	}

	// Check queue health
	if err := w.taskQueue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}

	return health
}
