// Package store is the persistence boundary for the tracker. The core
// packages (session, ingest, scheduler) consume the Storage interface and
// never touch gorm directly, which keeps them testable against in-memory
// fakes.
package store

import (
	"context"
	"errors"

	"github.com/creatorlens/tracker-go/pkg/db/models"
)

var (
	// ErrDuplicate is returned when an insert violates a unique constraint
	ErrDuplicate = errors.New("store: duplicate row")

	// ErrNotFound is returned when a lookup matches no rows
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidTransition is returned when a guarded session update
	// matches no running row
	ErrInvalidTransition = errors.New("store: invalid session transition")
)

// SessionResult carries the terminal outcome written to a session row.
type SessionResult struct {
	Status            models.SessionStatus
	PostsScrapedCount int
	Errors            []string
}

// Storage is the transactional persistence contract consumed by the core.
type Storage interface {
	// UpsertCreator inserts or merges a creator by username
	// (case-insensitive). Nullable incoming fields follow COALESCE
	// semantics: a nil value never overwrites a stored one. Returns the
	// stored row.
	UpsertCreator(ctx context.Context, creator *models.Creator) (*models.Creator, error)

	// GetCreatorByUsername looks up a creator; ErrNotFound when absent.
	GetCreatorByUsername(ctx context.Context, username string) (*models.Creator, error)

	// IncrementScrapeFailure bumps scrape_failure_count for a creator.
	// Missing creators are ignored: a failure can precede first ingest.
	IncrementScrapeFailure(ctx context.Context, username string) error

	// UpsertVideo inserts or merges a video by external id with
	// COALESCE-preserve semantics on nullable columns. Returns the stored
	// row with its internal id resolved.
	UpsertVideo(ctx context.Context, video *models.Video) (*models.Video, error)

	// GetVideoByExternalID looks up a video; ErrNotFound when absent.
	GetVideoByExternalID(ctx context.Context, externalID string) (*models.Video, error)

	// LatestMetricSample returns the most recent sample for a video by
	// recorded_at, or nil when the video has no samples yet.
	LatestMetricSample(ctx context.Context, videoID uint) (*models.MetricSample, error)

	// AppendMetricSample appends one sample row. Samples are never
	// updated or deleted.
	AppendMetricSample(ctx context.Context, sample *models.MetricSample) error

	// CreateSession inserts a new running session; ErrDuplicate when the
	// session id is already taken.
	CreateSession(ctx context.Context, session *models.ScrapeSession) error

	// FinishSession transitions a running session to a terminal state.
	// ErrInvalidTransition when the session is missing or already
	// terminal; the stored terminal state is left untouched.
	FinishSession(ctx context.Context, sessionID string, result SessionResult) error

	// GetSession returns a session by its caller-chosen id.
	GetSession(ctx context.Context, sessionID string) (*models.ScrapeSession, error)

	// RunInTransaction executes fn against a Storage bound to one
	// database transaction. If fn returns an error the transaction is
	// rolled back and none of its writes are visible.
	RunInTransaction(ctx context.Context, fn func(tx Storage) error) error

	// AppendAudit appends one write-only audit entry.
	AppendAudit(ctx context.Context, entry *models.AuditLog) error
}
