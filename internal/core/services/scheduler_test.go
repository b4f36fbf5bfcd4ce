package services

import (
	"context"
	"testing"
	"time"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
	"github.com/custodia-labs/opreq-core/internal/core/ports/driven/mocks"
)

func TestNewScheduler(t *testing.T) {
	queue := mocks.NewMockTaskQueue()

	s := NewScheduler(SchedulerConfig{
		TaskQueue:    queue,
		PollInterval: time.Minute,
	})

	if s == nil {
		t.Fatal("expected non-nil scheduler")
	}
	if s.interval != time.Minute {
		t.Errorf("expected interval 1m, got %v", s.interval)
	}
}

func TestNewScheduler_Defaults(t *testing.T) {
	queue := mocks.NewMockTaskQueue()

	s := NewScheduler(SchedulerConfig{
		TaskQueue:    queue,
		PollInterval: 0, // Should default to 30s
	})

	if s.interval != 30*time.Second {
		t.Errorf("expected default interval 30s, got %v", s.interval)
	}
	if s.logger == nil {
		t.Error("expected default logger")
	}
	schedules := s.Schedules()
	if len(schedules) == 0 {
		t.Fatal("expected default schedules")
	}
	if schedules[0].Type != domain.TaskTypePruneJobs {
		t.Errorf("expected prune_jobs schedule, got %s", schedules[0].Type)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	queue := mocks.NewMockTaskQueue()

	s := NewScheduler(SchedulerConfig{
		TaskQueue:    queue,
		PollInterval: 100 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start scheduler
	err := s.Start(ctx)
	if err != nil {
		t.Fatalf("failed to start scheduler: %v", err)
	}

	// Verify running
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if !running {
		t.Error("expected scheduler to be running")
	}

	// Start again should be no-op
	err = s.Start(ctx)
	if err != nil {
		t.Errorf("second start should not error: %v", err)
	}

	// Stop scheduler
	s.Stop()

	// Verify stopped
	s.mu.RLock()
	running = s.running
	s.mu.RUnlock()
	if running {
		t.Error("expected scheduler to be stopped")
	}

	// Stop again should be no-op
	s.Stop() // Should not panic
}

func TestScheduler_CheckAndEnqueue(t *testing.T) {
	queue := mocks.NewMockTaskQueue()

	due := domain.NewScheduledTask("due", "Due", domain.TaskTypePruneJobs, time.Hour)
	due.NextRun = time.Now().Add(-time.Minute) // Due 1 minute ago

	notDue := domain.NewScheduledTask("not-due", "Not Due", domain.TaskTypePruneJobs, time.Hour)
	notDue.NextRun = time.Now().Add(time.Hour)

	disabled := domain.NewScheduledTask("disabled", "Disabled", domain.TaskTypePruneJobs, time.Hour)
	disabled.Enabled = false
	disabled.NextRun = time.Now().Add(-time.Minute) // Due but disabled

	s := NewScheduler(SchedulerConfig{
		TaskQueue:    queue,
		Schedules:    []*domain.ScheduledTask{due, notDue, disabled},
		PollInterval: time.Hour, // Won't actually tick in test
	})

	s.checkAndEnqueue(context.Background())

	// Only the due & enabled schedule should be enqueued
	if queue.Pending() != 1 {
		t.Errorf("expected 1 enqueued task, got %d", queue.Pending())
	}

	// NextRun advanced so the schedule does not fire again
	if due.IsDue() {
		t.Error("expected NextRun to advance after enqueue")
	}
	s.checkAndEnqueue(context.Background())
	if queue.Pending() != 1 {
		t.Errorf("expected no duplicate enqueue, got %d", queue.Pending())
	}
}

func TestScheduler_CheckAndEnqueue_Lock(t *testing.T) {
	queue := mocks.NewMockTaskQueue()
	lock := mocks.NewMockDistributedLock()

	due := domain.NewScheduledTask("due", "Due", domain.TaskTypePruneJobs, time.Hour)
	due.NextRun = time.Now().Add(-time.Minute)

	s := NewScheduler(SchedulerConfig{
		TaskQueue:    queue,
		Lock:         lock,
		Schedules:    []*domain.ScheduledTask{due},
		PollInterval: time.Hour,
	})

	ctx := context.Background()

	// Another instance holds the lock: cycle is skipped
	acquired, err := lock.Acquire(ctx, "scheduler", time.Minute)
	if err != nil || !acquired {
		t.Fatalf("failed to pre-acquire lock: %v", err)
	}
	s.checkAndEnqueue(ctx)
	if queue.Pending() != 0 {
		t.Errorf("expected no enqueue while lock is held, got %d", queue.Pending())
	}

	// Lock released: cycle proceeds
	if err := lock.Release(ctx, "scheduler"); err != nil {
		t.Fatalf("failed to release lock: %v", err)
	}
	s.checkAndEnqueue(ctx)
	if queue.Pending() != 1 {
		t.Errorf("expected 1 enqueued task after lock release, got %d", queue.Pending())
	}
}

func TestScheduler_TriggerNow(t *testing.T) {
	queue := mocks.NewMockTaskQueue()

	s := NewScheduler(SchedulerConfig{
		TaskQueue: queue,
	})

	ctx := context.Background()

	// Trigger the default prune-jobs schedule immediately
	task, err := s.TriggerNow(ctx, "prune-jobs")
	if err != nil {
		t.Fatalf("failed to trigger: %v", err)
	}
	if task == nil {
		t.Fatal("expected task to be created")
	}
	if task.Type != domain.TaskTypePruneJobs {
		t.Errorf("expected task type %s, got %s", domain.TaskTypePruneJobs, task.Type)
	}

	// Verify task was enqueued
	if queue.Pending() != 1 {
		t.Errorf("expected 1 enqueued task, got %d", queue.Pending())
	}
}

func TestScheduler_TriggerNow_NotFound(t *testing.T) {
	queue := mocks.NewMockTaskQueue()

	s := NewScheduler(SchedulerConfig{
		TaskQueue: queue,
	})

	_, err := s.TriggerNow(context.Background(), "nonexistent")
	if err != domain.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestScheduler_ContextCancellation(t *testing.T) {
	queue := mocks.NewMockTaskQueue()

	s := NewScheduler(SchedulerConfig{
		TaskQueue:    queue,
		PollInterval: 100 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())

	err := s.Start(ctx)
	if err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	// Cancel after short delay
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	// Give scheduler time to detect cancellation
	time.Sleep(200 * time.Millisecond)

	// Scheduler should have stopped due to context cancellation
	// We need to manually call Stop to clean up
	s.Stop()

	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if running {
		t.Error("expected scheduler to be stopped after context cancellation")
	}
}
