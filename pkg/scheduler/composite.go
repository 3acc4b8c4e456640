package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/creatorlens/tracker-go/pkg/progress"
)

// SubmitProfileWithPosts queues a composite job: begin a scrape session,
// fetch the subject's profile, fetch up to limit posts, ingest the batch
// atomically, then complete the session. The returned session id is
// usable immediately for correlating progress events.
//
// The session begins on the first attempt only; transient retries resume
// under the same running session. Any terminal failure fails the session
// with the error payload and bumps the creator's scrape failure count.
func (s *Scheduler) SubmitProfileWithPosts(username string, limit int, opts ...TaskOption) (string, error) {
	if s.fetcher == nil || s.ingestor == nil || s.sessions == nil {
		return "", fmt.Errorf("composite jobs need a fetcher, ingestor and session tracker")
	}

	sessionID := uuid.New().String()
	began := false

	run := func(ctx context.Context) error {
		if !began {
			if err := s.sessions.Begin(ctx, sessionID, username); err != nil {
				return err
			}
			began = true
		}

		profile, err := s.fetcher.FetchProfile(ctx, username)
		if err != nil {
			return err
		}

		creator, err := s.ingestor.UpsertCreatorProfile(ctx, profile)
		if err != nil {
			return err
		}

		posts, err := s.fetcher.FetchPosts(ctx, username, limit)
		if err != nil {
			return err
		}

		count, err := s.ingestor.Ingest(ctx, creator.ID, posts, sessionID, func(externalID string) {
			s.emitter.Publish(progress.Event{
				Username:  username,
				Status:    progress.StatusVideo,
				SessionID: sessionID,
				PostRef:   externalID,
			})
		})
		if err != nil {
			return err
		}

		return s.sessions.Complete(ctx, sessionID, count)
	}

	onError := func(err error) {
		ctx := context.Background()
		if began {
			if failErr := s.sessions.Fail(ctx, sessionID, err.Error()); failErr != nil {
				s.logger.WithError(failErr).WithFields(logrus.Fields{
					"session_id": sessionID,
					"username":   username,
				}).Warn("Failed to mark session as failed")
			}
		}
		if s.storage != nil {
			if incErr := s.storage.IncrementScrapeFailure(ctx, username); incErr != nil {
				s.logger.WithError(incErr).WithFields(logrus.Fields{
					"username": username,
				}).Warn("Failed to increment scrape failure count")
			}
		}
	}

	opts = append(opts,
		WithUnitOfWork(run),
		WithCallbacks(nil, onError),
	)

	task := &Task{
		Username:  username,
		State:     TaskPending,
		SessionID: sessionID,
	}
	for _, opt := range opts {
		opt(task)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrSchedulerClosed
	}
	s.status.Submitted++
	s.inflight++
	s.insertPending(task)
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"username":   username,
		"session_id": sessionID,
		"limit":      limit,
	}).Info("Composite profile+posts job submitted")

	s.drain()
	return sessionID, nil
}
