// Package queue persists sync jobs and dispatches them to a bounded worker
// pool over an explicit task channel. Jobs touching the same mapping are
// serialized: a task whose lock keys overlap an in-flight task waits behind it
// in FIFO order.
package queue

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/HR-AR/Project-Conductor-sub007/internal/models"
	"github.com/HR-AR/Project-Conductor-sub007/internal/repositories"
	"github.com/HR-AR/Project-Conductor-sub007/internal/syncerr"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Executor runs one job end to end. It owns per-item accounting and marks the
// job completed; a returned error is job-fatal and fails the whole job.
type Executor interface {
	ExecuteJob(ctx context.Context, job *models.SyncJob) error
}

// metadata key carrying a job's serialization lock keys, so an explicit retry
// contends on the same mappings as the original run.
const lockKeysMetadata = "lock_keys"

type task struct {
	jobID uuid.UUID
	locks []string
}

type Queue struct {
	jobs    repositories.SyncJobRepository
	exec    Executor
	workers int
	tasks   chan *task
	notify  chan struct{}

	mu        sync.Mutex
	held      map[string]struct{}
	ready     []*task
	waiting   []*task
	tracked   map[uuid.UUID]struct{}
	cancelled map[uuid.UUID]struct{}
	stopping  bool

	group *errgroup.Group
}

func New(jobs repositories.SyncJobRepository, exec Executor, workers int) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		jobs:      jobs,
		exec:      exec,
		workers:   workers,
		tasks:     make(chan *task),
		notify:    make(chan struct{}, 1),
		held:      make(map[string]struct{}),
		tracked:   make(map[uuid.UUID]struct{}),
		cancelled: make(map[uuid.UUID]struct{}),
	}
}

// Start re-admits jobs that were persisted but never finished, then launches
// the dispatcher and the worker pool. Tasks enqueued before Start park in the
// ready list until the dispatcher drains it.
func (q *Queue) Start(ctx context.Context) {
	q.recoverJobs(ctx)
	q.group, _ = errgroup.WithContext(ctx)
	q.group.Go(func() error {
		q.dispatch(ctx)
		return nil
	})
	for i := 0; i < q.workers; i++ {
		q.group.Go(func() error {
			q.worker(ctx)
			return nil
		})
	}
}

// Stop lets the dispatcher hand out what is already runnable, then waits for
// in-flight jobs to finish their item lists. Jobs still pending afterwards
// are recovered on the next Start.
func (q *Queue) Stop() error {
	q.mu.Lock()
	q.stopping = true
	q.mu.Unlock()
	q.signal()
	if q.group == nil {
		return nil
	}
	return q.group.Wait()
}

// recoverJobs re-admits persisted jobs a previous run left unfinished.
func (q *Queue) recoverJobs(ctx context.Context) {
	for _, status := range []models.JobStatus{models.JobStatusPending, models.JobStatusRetrying} {
		jobs, err := q.jobs.ListByStatus(ctx, status)
		if err != nil {
			log.Printf("queue: failed to list %s jobs for recovery: %v", status, err)
			continue
		}
		for _, job := range jobs {
			q.mu.Lock()
			_, known := q.tracked[job.ID]
			q.mu.Unlock()
			if known {
				continue
			}
			q.admit(&task{jobID: job.ID, locks: lockKeys(job)})
			log.Printf("job %s recovered while %s", job.ID, status)
		}
	}
}

// Enqueue persists the job and schedules it. Creation is synchronous and
// cheap; execution happens on the worker pool. lockKeys identify the
// local/remote pairs the job will write, for per-mapping serialization.
func (q *Queue) Enqueue(ctx context.Context, job *models.SyncJob, lockKeys []string) error {
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	if len(lockKeys) > 0 {
		if job.Metadata == nil {
			job.Metadata = make(map[string]any)
		}
		job.Metadata[lockKeysMetadata] = lockKeys
	}

	if err := q.jobs.Create(ctx, job); err != nil {
		return fmt.Errorf("failed to persist job: %w", err)
	}

	q.admit(&task{jobID: job.ID, locks: lockKeys})
	return nil
}

// Cancel is honored only before a job starts dispatching. Once a job is
// running it always finishes its item list.
func (q *Queue) Cancel(ctx context.Context, id uuid.UUID) error {
	job, err := q.jobs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != models.JobStatusPending && job.Status != models.JobStatusRetrying {
		return syncerr.Validationf("job %s is %s and can no longer be cancelled", id, job.Status)
	}

	now := time.Now()
	job.Status = models.JobStatusCancelled
	job.CompletedAt = &now
	if err := q.jobs.Update(ctx, job); err != nil {
		return err
	}

	q.mu.Lock()
	q.cancelled[id] = struct{}{}
	q.mu.Unlock()

	log.Printf("job %s cancelled before dispatch", id)
	return nil
}

// Retry re-runs the whole job, bounded by max_retries. Retries are always an
// explicit caller decision; nothing is auto-retried.
func (q *Queue) Retry(ctx context.Context, id uuid.UUID) error {
	job, err := q.jobs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !job.Status.Terminal() {
		return syncerr.Validationf("job %s is %s; only finished jobs can be retried", id, job.Status)
	}
	if job.RetryCount >= job.MaxRetries {
		return syncerr.Validationf("job %s exhausted its %d retries", id, job.MaxRetries)
	}

	job.RetryCount++
	job.Status = models.JobStatusRetrying
	job.Progress = 0
	job.ProcessedItems = 0
	job.FailedItems = 0
	job.ErrorMessage = nil
	job.StartedAt = nil
	job.CompletedAt = nil
	if err := q.jobs.Update(ctx, job); err != nil {
		return err
	}

	q.mu.Lock()
	delete(q.cancelled, id)
	q.mu.Unlock()

	q.admit(&task{jobID: job.ID, locks: lockKeys(job)})
	log.Printf("job %s re-queued, attempt %d of %d", id, job.RetryCount, job.MaxRetries)
	return nil
}

// admit marks the task ready if none of its lock keys are held, otherwise
// parks it behind the holder. Never blocks: the dispatcher is the only sender
// on the task channel.
func (q *Queue) admit(t *task) {
	q.mu.Lock()
	q.tracked[t.jobID] = struct{}{}
	if q.anyHeld(t.locks) {
		q.waiting = append(q.waiting, t)
		q.mu.Unlock()
		return
	}
	q.hold(t.locks)
	q.ready = append(q.ready, t)
	q.mu.Unlock()
	q.signal()
}

// release frees the task's locks and promotes now-runnable waiters to the
// ready list in FIFO order.
func (q *Queue) release(t *task) {
	q.mu.Lock()
	delete(q.tracked, t.jobID)
	for _, k := range t.locks {
		delete(q.held, k)
	}

	promoted := false
	remaining := q.waiting[:0]
	for _, w := range q.waiting {
		if q.anyHeld(w.locks) {
			remaining = append(remaining, w)
			continue
		}
		q.hold(w.locks)
		q.ready = append(q.ready, w)
		promoted = true
	}
	q.waiting = remaining
	q.mu.Unlock()

	if promoted {
		q.signal()
	}
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// dispatch is the sole sender on the task channel. It drains the ready list
// to the workers and, once Stop is requested and the list is empty, closes
// the channel so the workers wind down.
func (q *Queue) dispatch(ctx context.Context) {
	for {
		q.mu.Lock()
		for len(q.ready) > 0 {
			t := q.ready[0]
			q.ready = q.ready[1:]
			q.mu.Unlock()
			select {
			case q.tasks <- t:
			case <-ctx.Done():
				return
			}
			q.mu.Lock()
		}
		stopping := q.stopping
		q.mu.Unlock()

		if stopping {
			close(q.tasks)
			return
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return
		}
	}
}

func (q *Queue) anyHeld(locks []string) bool {
	for _, k := range locks {
		if _, held := q.held[k]; held {
			return true
		}
	}
	return false
}

func (q *Queue) hold(locks []string) {
	for _, k := range locks {
		q.held[k] = struct{}{}
	}
}

func (q *Queue) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-q.tasks:
			if !ok {
				return
			}
			q.run(ctx, t)
		}
	}
}

func (q *Queue) run(ctx context.Context, t *task) {
	defer q.release(t)

	q.mu.Lock()
	_, skip := q.cancelled[t.jobID]
	q.mu.Unlock()
	if skip {
		return
	}

	job, err := q.jobs.GetByID(ctx, t.jobID)
	if err != nil {
		log.Printf("job %s: failed to load for execution: %v", t.jobID, err)
		return
	}
	if job.Status != models.JobStatusPending && job.Status != models.JobStatusRetrying {
		return
	}

	now := time.Now()
	job.Status = models.JobStatusInProgress
	job.StartedAt = &now
	if err := q.jobs.Update(ctx, job); err != nil {
		log.Printf("job %s: failed to mark in progress: %v", job.ID, err)
		return
	}

	if err := q.exec.ExecuteJob(ctx, job); err != nil {
		// Job-fatal: configuration errors fail the whole job, unlike
		// per-item failures which the executor absorbs into its counts.
		msg := err.Error()
		done := time.Now()
		job.Status = models.JobStatusFailed
		job.ErrorMessage = &msg
		job.CompletedAt = &done
		if uerr := q.jobs.Update(ctx, job); uerr != nil {
			log.Printf("job %s: failed to record failure: %v", job.ID, uerr)
		}
		log.Printf("job %s failed: %v", job.ID, err)
	}
}

// lockKeys recovers the serialization keys stashed at enqueue time; the JSON
// round trip through metadata turns []string into []any.
func lockKeys(job *models.SyncJob) []string {
	raw, ok := job.Metadata[lockKeysMetadata]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		keys := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				keys = append(keys, s)
			}
		}
		return keys
	}
	return nil
}
