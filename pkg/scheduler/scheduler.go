// Package scheduler coordinates scrape jobs against a rate-limited data
// source. It holds a priority-ordered pending queue, runs a bounded number
// of fetch operations concurrently, retries transient failures with
// exponential backoff, and enforces a fixed pacing interval after every
// attempt so the aggregate request rate stays capped even when nothing is
// being retried.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/creatorlens/tracker-go/pkg/backoff"
	"github.com/creatorlens/tracker-go/pkg/fetch"
	"github.com/creatorlens/tracker-go/pkg/ingest"
	"github.com/creatorlens/tracker-go/pkg/progress"
	"github.com/creatorlens/tracker-go/pkg/session"
	"github.com/creatorlens/tracker-go/pkg/store"
)

// Default scheduler settings
const (
	// DefaultConcurrency is how many fetch operations run at once
	DefaultConcurrency = 2

	// DefaultMaxRetries is how many times a task is attempted in total
	DefaultMaxRetries = 3

	// DefaultPacingInterval is the mandatory wait after every completed
	// attempt before the slot is considered free again
	DefaultPacingInterval = 2 * time.Second
)

// ErrSchedulerClosed is returned by Submit after Close has been called
var ErrSchedulerClosed = errors.New("scheduler: closed")

// Config holds the scheduler's collaborators and tuning knobs.
type Config struct {
	Fetcher  fetch.Fetcher
	Storage  store.Storage
	Sessions *session.Tracker
	Ingestor *ingest.Engine
	Emitter  *progress.Emitter
	Logger   *logrus.Logger

	Concurrency    int
	MaxRetries     int
	PacingInterval time.Duration
	Backoff        *backoff.Policy
}

// Status is a snapshot of the scheduler's counters.
type Status struct {
	// Submitted is the total number of tasks accepted
	Submitted int
	// Pending is the number of tasks waiting for a slot
	Pending int
	// Running is the number of tasks currently executing
	Running int
	// Retrying is the number of tasks waiting out a backoff delay
	Retrying int
	// Completed is the number of tasks that succeeded
	Completed int
	// Failed is the number of tasks that exhausted retries and were dropped
	Failed int
}

// Scheduler is the task queue and dispatch loop. All queue state is
// mutated under one mutex; workers are plain goroutines admitted while a
// concurrency slot is free.
type Scheduler struct {
	fetcher  fetch.Fetcher
	storage  store.Storage
	sessions *session.Tracker
	ingestor *ingest.Engine
	emitter  *progress.Emitter
	logger   *logrus.Logger

	concurrency int
	maxRetries  int
	pacing      time.Duration
	backoff     *backoff.Policy

	mu       sync.Mutex
	idle     *sync.Cond
	pending  []*Task
	running  int
	inflight int
	closed   bool
	seq      uint64
	status   Status
}

// New creates a Scheduler from the given configuration.
func New(config Config) (*Scheduler, error) {
	if config.Emitter == nil {
		return nil, fmt.Errorf("progress emitter is required")
	}
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.PacingInterval <= 0 {
		config.PacingInterval = DefaultPacingInterval
	}
	if config.Backoff == nil {
		config.Backoff = backoff.NewPolicy(0, 0)
	}

	s := &Scheduler{
		fetcher:     config.Fetcher,
		storage:     config.Storage,
		sessions:    config.Sessions,
		ingestor:    config.Ingestor,
		emitter:     config.Emitter,
		logger:      config.Logger,
		concurrency: config.Concurrency,
		maxRetries:  config.MaxRetries,
		pacing:      config.PacingInterval,
		backoff:     config.Backoff,
	}
	s.idle = sync.NewCond(&s.mu)
	return s, nil
}

// Submit queues a scrape task for the given username. Non-blocking: the
// task is inserted by priority (stable among equals) and admitted as soon
// as a concurrency slot frees up.
func (s *Scheduler) Submit(username string, opts ...TaskOption) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}

	task := &Task{
		Username: username,
		State:    TaskPending,
	}
	for _, opt := range opts {
		opt(task)
	}
	if task.Run == nil {
		task.Run = s.defaultUnitOfWork(username)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	s.status.Submitted++
	s.inflight++
	s.insertPending(task)
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"username": username,
		"priority": task.Priority,
	}).Debug("Task submitted")

	s.drain()
	return nil
}

// SubmitBulk queues one default task per username and returns how many
// were accepted. Empty usernames are skipped.
func (s *Scheduler) SubmitBulk(usernames []string) int {
	accepted := 0
	for _, username := range usernames {
		if username == "" {
			continue
		}
		if err := s.Submit(username); err != nil {
			break
		}
		accepted++
	}
	return accepted
}

// Status returns a snapshot of the scheduler's counters.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.status
	snapshot.Pending = len(s.pending)
	snapshot.Running = s.running
	return snapshot
}

// Close refuses new submissions, waits for queued and in-flight work
// (including attempts waiting out a backoff delay) to reach a terminal
// state, then releases the fetcher. Running attempts are never cancelled.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for s.inflight > 0 {
		s.idle.Wait()
	}
	s.mu.Unlock()

	s.logger.Info("Scheduler drained, releasing fetcher")
	if s.fetcher != nil {
		return s.fetcher.Release()
	}
	return nil
}

// defaultUnitOfWork fetches the subject's profile and merges it into the
// creators table.
func (s *Scheduler) defaultUnitOfWork(username string) UnitOfWork {
	return func(ctx context.Context) error {
		if s.fetcher == nil || s.ingestor == nil {
			return fmt.Errorf("scheduler has no fetcher configured")
		}
		profile, err := s.fetcher.FetchProfile(ctx, username)
		if err != nil {
			return err
		}
		_, err = s.ingestor.UpsertCreatorProfile(ctx, profile)
		return err
	}
}

// insertPending inserts by priority, after all queued tasks of greater or
// equal priority. Re-queued retries get a fresh sequence number, so they
// compete with work submitted while they were backing off. Caller holds mu.
func (s *Scheduler) insertPending(task *Task) {
	s.seq++
	task.seq = s.seq
	task.State = TaskPending

	idx := len(s.pending)
	for i, queued := range s.pending {
		if queued.Priority < task.Priority {
			idx = i
			break
		}
	}
	s.pending = append(s.pending, nil)
	copy(s.pending[idx+1:], s.pending[idx:])
	s.pending[idx] = task
}

// drain admits pending tasks while concurrency slots are free.
func (s *Scheduler) drain() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.running < s.concurrency && len(s.pending) > 0 {
		task := s.pending[0]
		s.pending = s.pending[1:]
		task.State = TaskRunning
		s.running++

		go s.execute(task)
	}
}

// execute runs one attempt of a task and routes the outcome: success,
// retry after backoff, or terminal failure. The pacing interval is waited
// out before the slot frees, whatever the outcome.
func (s *Scheduler) execute(task *Task) {
	task.Attempts++
	task.LastAttempt = time.Now()

	log := s.logger.WithFields(logrus.Fields{
		"username": task.Username,
		"attempt":  task.Attempts,
		"priority": task.Priority,
	})
	log.Debug("Executing task")

	s.emitter.Publish(progress.Event{
		Username:  task.Username,
		Status:    progress.StatusRunning,
		SessionID: task.SessionID,
	})

	err := task.Run(context.Background())

	terminal := true
	if err == nil {
		task.State = TaskSucceeded
		if task.OnSuccess != nil {
			task.OnSuccess()
		}
		s.emitter.Publish(progress.Event{
			Username:  task.Username,
			Status:    progress.StatusSuccess,
			SessionID: task.SessionID,
		})
		log.Info("Task completed")
	} else {
		task.LastError = err.Error()
		terminal = !s.scheduleRetry(task, err, log)
		if terminal {
			s.failTask(task, err, log)
		}
	}

	// Mandatory pacing before the slot frees, independent of backoff.
	time.Sleep(s.pacing)

	s.mu.Lock()
	s.running--
	if err == nil {
		s.status.Completed++
	}
	if terminal {
		s.inflight--
		if s.inflight == 0 {
			s.idle.Broadcast()
		}
	}
	s.mu.Unlock()

	s.drain()
}

// scheduleRetry re-queues a transiently failed task after its backoff
// delay. Returns false when the task must fail terminally instead.
func (s *Scheduler) scheduleRetry(task *Task, err error, log *logrus.Entry) bool {
	if !fetch.IsTransient(err) {
		log.WithError(err).Warn("Permanent failure, not retrying")
		return false
	}
	if task.Attempts >= s.maxRetries {
		log.WithError(err).Warn("Retry ceiling reached")
		return false
	}

	s.mu.Lock()
	task.State = TaskRetrying
	s.status.Retrying++
	delay := s.backoff.Delay(task.Attempts)
	s.mu.Unlock()

	log.WithFields(logrus.Fields{
		"error":   err,
		"backoff": delay.String(),
	}).Info("Scheduling task retry")

	time.AfterFunc(delay, func() {
		s.mu.Lock()
		s.status.Retrying--
		s.insertPending(task)
		s.mu.Unlock()
		s.drain()
	})
	return true
}

// failTask drops a task terminally: the error hook runs, the failure is
// counted, and exactly one terminal error event is emitted.
func (s *Scheduler) failTask(task *Task, err error, log *logrus.Entry) {
	task.State = TaskFailed

	if task.OnError != nil {
		task.OnError(err)
	}

	s.mu.Lock()
	s.status.Failed++
	s.mu.Unlock()

	s.emitter.Publish(progress.Event{
		Username:  task.Username,
		Status:    progress.StatusError,
		SessionID: task.SessionID,
		Error:     err.Error(),
	})

	log.WithError(err).WithField("attempts", task.Attempts).Error("Task failed terminally")
}
