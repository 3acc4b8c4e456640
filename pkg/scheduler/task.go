package scheduler

import (
	"context"
	"time"
)

// TaskState represents the current state of a scrape task.
type TaskState string

// Task state constants define the lifecycle of a queued task.
const (
	// TaskPending indicates the task is queued but not yet started
	TaskPending TaskState = "pending"
	// TaskRunning indicates the task is currently executing
	TaskRunning TaskState = "running"
	// TaskSucceeded indicates the task finished successfully
	TaskSucceeded TaskState = "succeeded"
	// TaskRetrying indicates the task failed but will be re-queued
	TaskRetrying TaskState = "retrying"
	// TaskFailed indicates the task exhausted its retries and was dropped
	TaskFailed TaskState = "failed"
)

// UnitOfWork is the operation a task performs when admitted. The default
// unit of work fetches and upserts the subject's profile; composite jobs
// substitute a closure that also fetches posts and ingests them.
type UnitOfWork func(ctx context.Context) error

// Task is one queued scrape job. A task is owned exclusively by the
// scheduler from submission until its terminal state; retries re-queue the
// same task with an incremented attempt counter.
type Task struct {
	// Username identifies the subject to scrape
	Username string
	// Priority orders the pending queue; higher runs first
	Priority int
	// Attempts counts executions so far
	Attempts int
	// State is the task's position in the lifecycle
	State TaskState
	// SessionID correlates composite jobs with their scrape session
	SessionID string

	// Run is the unit of work; nil selects the default profile fetch
	Run UnitOfWork
	// OnSuccess is invoked after the unit of work succeeds, before the
	// terminal success event
	OnSuccess func()
	// OnError is invoked once when the task terminally fails
	OnError func(err error)

	// LastError holds the message from the most recent failed attempt
	LastError string
	// LastAttempt records when the task last executed
	LastAttempt time.Time

	seq uint64
}

// TaskOption customizes a submitted task.
type TaskOption func(*Task)

// WithPriority sets the task priority; higher priorities run first.
func WithPriority(priority int) TaskOption {
	return func(t *Task) {
		t.Priority = priority
	}
}

// WithUnitOfWork replaces the default profile fetch with a custom operation.
func WithUnitOfWork(run UnitOfWork) TaskOption {
	return func(t *Task) {
		t.Run = run
	}
}

// WithCallbacks sets the success and terminal-failure hooks.
func WithCallbacks(onSuccess func(), onError func(err error)) TaskOption {
	return func(t *Task) {
		t.OnSuccess = onSuccess
		t.OnError = onError
	}
}
