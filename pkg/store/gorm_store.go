package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/creatorlens/tracker-go/pkg/db/models"
)

// GormStore implements Storage on top of gorm/postgres.
type GormStore struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewGormStore creates a Storage implementation backed by the given gorm DB.
func NewGormStore(db *gorm.DB, logger *logrus.Logger) *GormStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &GormStore{db: db, logger: logger}
}

func (s *GormStore) UpsertCreator(ctx context.Context, creator *models.Creator) (*models.Creator, error) {
	creator.Username = strings.ToLower(creator.Username)

	s.logger.WithFields(logrus.Fields{
		"username": creator.Username,
	}).Debug("Upserting creator")

	var oldVal interface{}
	if existing, err := s.GetCreatorByUsername(ctx, creator.Username); err == nil {
		oldVal = existing
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "username"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"display_name":              gorm.Expr("COALESCE(NULLIF(EXCLUDED.display_name, ''), creators.display_name)"),
			"follower_count":            gorm.Expr("COALESCE(EXCLUDED.follower_count, creators.follower_count)"),
			"following_count":           gorm.Expr("COALESCE(EXCLUDED.following_count, creators.following_count)"),
			"post_count":                gorm.Expr("COALESCE(EXCLUDED.post_count, creators.post_count)"),
			"is_verified":               gorm.Expr("EXCLUDED.is_verified"),
			"is_private":                gorm.Expr("EXCLUDED.is_private"),
			"last_scraped_at":           gorm.Expr("COALESCE(EXCLUDED.last_scraped_at, creators.last_scraped_at)"),
			"last_successful_scrape_at": gorm.Expr("COALESCE(EXCLUDED.last_successful_scrape_at, creators.last_successful_scrape_at)"),
			"updated_at":                gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(creator).Error
	if err != nil {
		return nil, err
	}

	stored, err := s.GetCreatorByUsername(ctx, creator.Username)
	if err != nil {
		return nil, err
	}

	s.appendUpsertAudit(ctx, "creator", stored.Username, oldVal, stored)
	return stored, nil
}

func (s *GormStore) GetCreatorByUsername(ctx context.Context, username string) (*models.Creator, error) {
	var creator models.Creator
	err := s.db.WithContext(ctx).
		Where("username = ?", strings.ToLower(username)).
		First(&creator).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &creator, nil
}

func (s *GormStore) IncrementScrapeFailure(ctx context.Context, username string) error {
	return s.db.WithContext(ctx).Model(&models.Creator{}).
		Where("username = ?", strings.ToLower(username)).
		Updates(map[string]interface{}{
			"scrape_failure_count": gorm.Expr("scrape_failure_count + 1"),
			"last_scraped_at":      time.Now(),
		}).Error
}

func (s *GormStore) UpsertVideo(ctx context.Context, video *models.Video) (*models.Video, error) {
	s.logger.WithFields(logrus.Fields{
		"external_id": video.ExternalID,
		"creator_id":  video.CreatorID,
	}).Debug("Upserting video")

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"shortcode":     gorm.Expr("COALESCE(NULLIF(EXCLUDED.shortcode, ''), videos.shortcode)"),
			"video_url":     gorm.Expr("COALESCE(EXCLUDED.video_url, videos.video_url)"),
			"thumbnail_url": gorm.Expr("COALESCE(EXCLUDED.thumbnail_url, videos.thumbnail_url)"),
			"caption":       gorm.Expr("COALESCE(EXCLUDED.caption, videos.caption)"),
			"posted_at":     gorm.Expr("COALESCE(EXCLUDED.posted_at, videos.posted_at)"),
			"is_reel":       gorm.Expr("EXCLUDED.is_reel"),
			"updated_at":    gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(video).Error
	if err != nil {
		return nil, err
	}

	return s.GetVideoByExternalID(ctx, video.ExternalID)
}

func (s *GormStore) GetVideoByExternalID(ctx context.Context, externalID string) (*models.Video, error) {
	var video models.Video
	err := s.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		First(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &video, nil
}

func (s *GormStore) LatestMetricSample(ctx context.Context, videoID uint) (*models.MetricSample, error) {
	var sample models.MetricSample
	err := s.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("recorded_at DESC").
		First(&sample).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sample, nil
}

func (s *GormStore) AppendMetricSample(ctx context.Context, sample *models.MetricSample) error {
	if sample.RecordedAt.IsZero() {
		sample.RecordedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(sample).Error
}

func (s *GormStore) CreateSession(ctx context.Context, session *models.ScrapeSession) error {
	err := s.db.WithContext(ctx).Create(session).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		// postgres unique_violation surfaced without translation
		return ErrDuplicate
	}
	return err
}

func (s *GormStore) FinishSession(ctx context.Context, sessionID string, result SessionResult) error {
	res := s.db.WithContext(ctx).Model(&models.ScrapeSession{}).
		Where("session_id = ? AND status = ?", sessionID, models.SessionRunning).
		Updates(map[string]interface{}{
			"status":              result.Status,
			"completed_at":        time.Now(),
			"posts_scraped_count": result.PostsScrapedCount,
			"errors":              pq.StringArray(result.Errors),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (s *GormStore) GetSession(ctx context.Context, sessionID string) (*models.ScrapeSession, error) {
	var session models.ScrapeSession
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *GormStore) RunInTransaction(ctx context.Context, fn func(tx Storage) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, logger: s.logger})
	})
}

func (s *GormStore) AppendAudit(ctx context.Context, entry *models.AuditLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

// appendUpsertAudit records an upsert in the audit trail. Audit writes are
// best effort: a failure is logged, never propagated to the caller.
func (s *GormStore) appendUpsertAudit(ctx context.Context, entityType, entityID string, oldVal, newVal interface{}) {
	action := models.AuditActionUpdate
	if oldVal == nil {
		action = models.AuditActionCreate
	}

	entry := &models.AuditLog{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		OldValue:   marshalAuditValue(oldVal),
		NewValue:   marshalAuditValue(newVal),
	}

	if err := s.AppendAudit(ctx, entry); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"entity_type": entityType,
			"entity_id":   entityID,
		}).Warn("Failed to append audit entry")
	}
}

func marshalAuditValue(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return json.RawMessage(raw)
}
