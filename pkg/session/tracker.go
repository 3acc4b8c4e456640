// Package session tracks the lifecycle of logical scrape runs. A session is
// created in the running state when a composite job starts and reaches
// exactly one terminal state; repeated terminal calls are rejected, never
// silently accepted.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/creatorlens/tracker-go/pkg/db/models"
	"github.com/creatorlens/tracker-go/pkg/store"
)

// Tracker records scrape session lifecycles in storage.
type Tracker struct {
	storage store.Storage
	logger  *logrus.Logger
}

// NewTracker creates a session tracker over the given storage.
func NewTracker(storage store.Storage, logger *logrus.Logger) *Tracker {
	if logger == nil {
		logger = logrus.New()
	}
	return &Tracker{storage: storage, logger: logger}
}

// Begin creates a running session with the caller-chosen id. Returns
// DuplicateSessionError if the id is already taken.
func (t *Tracker) Begin(ctx context.Context, sessionID, username string) error {
	sess := &models.ScrapeSession{
		SessionID: sessionID,
		Username:  strings.ToLower(username),
		Status:    models.SessionRunning,
		StartedAt: time.Now(),
	}

	if err := t.storage.CreateSession(ctx, sess); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return &DuplicateSessionError{SessionID: sessionID}
		}
		return err
	}

	t.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"username":   username,
	}).Info("Scrape session started")
	return nil
}

// Complete transitions a running session to completed with the number of
// posts scraped. Returns InvalidStateError if the session is not running.
func (t *Tracker) Complete(ctx context.Context, sessionID string, postsScraped int) error {
	err := t.storage.FinishSession(ctx, sessionID, store.SessionResult{
		Status:            models.SessionCompleted,
		PostsScrapedCount: postsScraped,
	})
	if err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			return &InvalidStateError{SessionID: sessionID, Target: models.SessionCompleted}
		}
		return err
	}

	t.logger.WithFields(logrus.Fields{
		"session_id":    sessionID,
		"posts_scraped": postsScraped,
	}).Info("Scrape session completed")
	return nil
}

// Fail transitions a running session to failed, storing the error payload.
// Returns InvalidStateError if the session is not running.
func (t *Tracker) Fail(ctx context.Context, sessionID string, sessionErrs ...string) error {
	err := t.storage.FinishSession(ctx, sessionID, store.SessionResult{
		Status: models.SessionFailed,
		Errors: sessionErrs,
	})
	if err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			return &InvalidStateError{SessionID: sessionID, Target: models.SessionFailed}
		}
		return err
	}

	t.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"errors":     sessionErrs,
	}).Warn("Scrape session failed")
	return nil
}

// Get returns the stored session row.
func (t *Tracker) Get(ctx context.Context, sessionID string) (*models.ScrapeSession, error) {
	return t.storage.GetSession(ctx, sessionID)
}
