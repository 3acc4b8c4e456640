package store_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/creatorlens/tracker-go/pkg/db"
	"github.com/creatorlens/tracker-go/pkg/db/models"
	"github.com/creatorlens/tracker-go/pkg/store"
)

var _ = Describe("GormStore Integration", func() {
	var (
		ctx     context.Context
		storage *store.GormStore
	)

	// Unique names per run so the suite can rerun against a persistent database.
	freshUsername := func() string {
		return fmt.Sprintf("it-%s", uuid.New().String()[:8])
	}

	BeforeEach(func() {
		// Skip if not running integration tests
		if os.Getenv("INTEGRATION_TESTS") != "true" {
			Skip("Skipping integration test")
		}

		logger := logrus.New()
		logger.SetLevel(logrus.WarnLevel)

		database, err := db.SetupDatabase(logger)
		Expect(err).NotTo(HaveOccurred())

		ctx = context.Background()
		storage = store.NewGormStore(database, logger)
	})

	Describe("creator upserts", func() {
		It("merges partial updates without clobbering stored counters", func() {
			username := freshUsername()
			followers := int64(1000)

			_, err := storage.UpsertCreator(ctx, &models.Creator{
				Username:      username,
				DisplayName:   "First Pass",
				FollowerCount: &followers,
			})
			Expect(err).NotTo(HaveOccurred())

			// Second pass carries no follower count; the stored value survives.
			stored, err := storage.UpsertCreator(ctx, &models.Creator{
				Username:    username,
				DisplayName: "Second Pass",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.DisplayName).To(Equal("Second Pass"))
			Expect(stored.FollowerCount).NotTo(BeNil())
			Expect(*stored.FollowerCount).To(Equal(int64(1000)))
		})

		It("increments the scrape failure counter in place", func() {
			username := freshUsername()
			_, err := storage.UpsertCreator(ctx, &models.Creator{Username: username})
			Expect(err).NotTo(HaveOccurred())

			Expect(storage.IncrementScrapeFailure(ctx, username)).To(Succeed())
			Expect(storage.IncrementScrapeFailure(ctx, username)).To(Succeed())

			stored, err := storage.GetCreatorByUsername(ctx, username)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.ScrapeFailureCount).To(Equal(2))
		})
	})

	Describe("metric samples", func() {
		It("returns the most recent sample by recorded_at", func() {
			creator, err := storage.UpsertCreator(ctx, &models.Creator{Username: freshUsername()})
			Expect(err).NotTo(HaveOccurred())

			video, err := storage.UpsertVideo(ctx, &models.Video{
				CreatorID:  creator.ID,
				ExternalID: uuid.New().String(),
			})
			Expect(err).NotTo(HaveOccurred())

			older := time.Now().Add(-time.Hour)
			Expect(storage.AppendMetricSample(ctx, &models.MetricSample{
				VideoID: video.ID, Likes: 10, RecordedAt: older,
			})).To(Succeed())
			Expect(storage.AppendMetricSample(ctx, &models.MetricSample{
				VideoID: video.ID, Likes: 30, RecordedAt: time.Now(),
			})).To(Succeed())

			latest, err := storage.LatestMetricSample(ctx, video.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(latest).NotTo(BeNil())
			Expect(latest.Likes).To(Equal(int64(30)))
		})
	})

	Describe("sessions", func() {
		It("rejects finishing a session twice", func() {
			sessionID := uuid.New().String()
			Expect(storage.CreateSession(ctx, &models.ScrapeSession{
				SessionID: sessionID,
				Username:  freshUsername(),
				Status:    models.SessionRunning,
				StartedAt: time.Now(),
			})).To(Succeed())

			Expect(storage.FinishSession(ctx, sessionID, store.SessionResult{
				Status:            models.SessionCompleted,
				PostsScrapedCount: 5,
			})).To(Succeed())

			err := storage.FinishSession(ctx, sessionID, store.SessionResult{
				Status: models.SessionFailed,
				Errors: []string{"late failure"},
			})
			Expect(errors.Is(err, store.ErrInvalidTransition)).To(BeTrue())

			stored, err := storage.GetSession(ctx, sessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(models.SessionCompleted))
			Expect(stored.PostsScrapedCount).To(Equal(5))
		})
	})

	Describe("transactions", func() {
		It("rolls back every write when the batch fails", func() {
			creator, err := storage.UpsertCreator(ctx, &models.Creator{Username: freshUsername()})
			Expect(err).NotTo(HaveOccurred())

			externalID := uuid.New().String()
			batchErr := errors.New("batch rejected")

			err = storage.RunInTransaction(ctx, func(tx store.Storage) error {
				if _, err := tx.UpsertVideo(ctx, &models.Video{
					CreatorID:  creator.ID,
					ExternalID: externalID,
				}); err != nil {
					return err
				}
				return batchErr
			})
			Expect(err).To(MatchError(batchErr))

			_, err = storage.GetVideoByExternalID(ctx, externalID)
			Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
		})
	})
})
