// Package ingest persists fetched scrape data. Each batch of posts is
// written inside one storage transaction: video upserts, delta computation
// against the latest prior sample, and the new sample rows all commit or
// roll back together. Creator profile metadata is upserted separately,
// outside the batch boundary.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/creatorlens/tracker-go/pkg/db/models"
	"github.com/creatorlens/tracker-go/pkg/fetch"
	"github.com/creatorlens/tracker-go/pkg/store"
)

// PostIngested is invoked once per post after its sample row is staged in
// the batch transaction. Used to emit per-post progress events.
type PostIngested func(externalID string)

// Engine performs dedup-safe persistence of fetched records.
type Engine struct {
	storage store.Storage
	logger  *logrus.Logger
}

// NewEngine creates an ingestion engine over the given storage.
func NewEngine(storage store.Storage, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{storage: storage, logger: logger}
}

// UpsertCreatorProfile merges a fetched profile into the creators table and
// returns the stored row. Runs outside any batch transaction.
func (e *Engine) UpsertCreatorProfile(ctx context.Context, profile *fetch.ProfileRecord) (*models.Creator, error) {
	now := time.Now()
	creator := &models.Creator{
		Username:               profile.Username,
		DisplayName:            profile.DisplayName,
		FollowerCount:          profile.FollowerCount,
		FollowingCount:         profile.FollowingCount,
		PostCount:              profile.PostCount,
		IsVerified:             profile.IsVerified,
		IsPrivate:              profile.IsPrivate,
		LastScrapedAt:          &now,
		LastSuccessfulScrapeAt: &now,
	}

	stored, err := e.storage.UpsertCreator(ctx, creator)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert creator %q: %w", profile.Username, err)
	}
	return stored, nil
}

// Ingest writes a batch of posts for a creator inside a single transaction
// and returns the number of posts ingested. If any step fails, no post or
// sample from this batch is persisted.
func (e *Engine) Ingest(ctx context.Context, creatorID uint, posts []fetch.RawPost, sessionID string, onPost PostIngested) (int, error) {
	log := e.logger.WithFields(logrus.Fields{
		"creator_id": creatorID,
		"session_id": sessionID,
		"posts":      len(posts),
	})
	log.Debug("Starting ingestion batch")

	ingested := 0
	err := e.storage.RunInTransaction(ctx, func(tx store.Storage) error {
		recordedAt := time.Now()

		for _, post := range posts {
			video := &models.Video{
				CreatorID:    creatorID,
				ExternalID:   post.Key(),
				Shortcode:    post.Shortcode,
				VideoURL:     post.VideoURL,
				ThumbnailURL: post.ThumbnailURL,
				Caption:      post.Caption,
				PostedAt:     post.PostedAt,
				IsReel:       post.IsReel,
			}

			stored, err := tx.UpsertVideo(ctx, video)
			if err != nil {
				return fmt.Errorf("failed to upsert video %q: %w", video.ExternalID, err)
			}

			prior, err := tx.LatestMetricSample(ctx, stored.ID)
			if err != nil {
				return fmt.Errorf("failed to load latest sample for video %d: %w", stored.ID, err)
			}

			sample := &models.MetricSample{
				VideoID:    stored.ID,
				Views:      post.Views,
				Likes:      post.Likes,
				Comments:   post.Comments,
				Shares:     post.Shares,
				Saves:      post.Saves,
				RecordedAt: recordedAt,
				SessionID:  sessionID,
			}
			if prior != nil {
				sample.LikesDelta = post.Likes - prior.Likes
				sample.ViewsDelta = post.Views - prior.Views
			}

			if err := tx.AppendMetricSample(ctx, sample); err != nil {
				return fmt.Errorf("failed to append sample for video %d: %w", stored.ID, err)
			}

			ingested++
			if onPost != nil {
				onPost(stored.ExternalID)
			}
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Ingestion batch aborted")
		return 0, err
	}

	log.WithField("ingested", ingested).Info("Ingestion batch committed")
	return ingested, nil
}
