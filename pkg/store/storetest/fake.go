// Package storetest provides an in-memory Storage implementation for
// exercising the core packages without a database. Transactions are
// emulated by applying the batch to a clone and merging it back only on
// success, which preserves the all-or-nothing contract.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/creatorlens/tracker-go/pkg/db/models"
	"github.com/creatorlens/tracker-go/pkg/store"
)

// FakeStore is an in-memory store.Storage.
type FakeStore struct {
	mu sync.Mutex

	Creators map[string]*models.Creator
	Videos   map[string]*models.Video
	Samples  []*models.MetricSample
	Sessions map[string]*models.ScrapeSession
	Audits   []*models.AuditLog

	nextCreatorID uint
	nextVideoID   uint

	// FailAppendSample makes AppendMetricSample fail, simulating a
	// storage error mid-batch
	FailAppendSample error
}

// New creates an empty FakeStore.
func New() *FakeStore {
	return &FakeStore{
		Creators: make(map[string]*models.Creator),
		Videos:   make(map[string]*models.Video),
		Sessions: make(map[string]*models.ScrapeSession),
	}
}

func (f *FakeStore) UpsertCreator(ctx context.Context, creator *models.Creator) (*models.Creator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	username := strings.ToLower(creator.Username)
	existing, ok := f.Creators[username]
	if !ok {
		f.nextCreatorID++
		stored := *creator
		stored.ID = f.nextCreatorID
		stored.Username = username
		f.Creators[username] = &stored
		f.Audits = append(f.Audits, &models.AuditLog{
			EntityType: "creator", EntityID: username, Action: models.AuditActionCreate,
		})
		result := stored
		return &result, nil
	}

	if creator.DisplayName != "" {
		existing.DisplayName = creator.DisplayName
	}
	if creator.FollowerCount != nil {
		existing.FollowerCount = creator.FollowerCount
	}
	if creator.FollowingCount != nil {
		existing.FollowingCount = creator.FollowingCount
	}
	if creator.PostCount != nil {
		existing.PostCount = creator.PostCount
	}
	existing.IsVerified = creator.IsVerified
	existing.IsPrivate = creator.IsPrivate
	if creator.LastScrapedAt != nil {
		existing.LastScrapedAt = creator.LastScrapedAt
	}
	if creator.LastSuccessfulScrapeAt != nil {
		existing.LastSuccessfulScrapeAt = creator.LastSuccessfulScrapeAt
	}
	f.Audits = append(f.Audits, &models.AuditLog{
		EntityType: "creator", EntityID: username, Action: models.AuditActionUpdate,
	})
	result := *existing
	return &result, nil
}

func (f *FakeStore) GetCreatorByUsername(ctx context.Context, username string) (*models.Creator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	creator, ok := f.Creators[strings.ToLower(username)]
	if !ok {
		return nil, store.ErrNotFound
	}
	result := *creator
	return &result, nil
}

func (f *FakeStore) IncrementScrapeFailure(ctx context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if creator, ok := f.Creators[strings.ToLower(username)]; ok {
		creator.ScrapeFailureCount++
	}
	return nil
}

func (f *FakeStore) UpsertVideo(ctx context.Context, video *models.Video) (*models.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing, ok := f.Videos[video.ExternalID]
	if !ok {
		f.nextVideoID++
		stored := *video
		stored.ID = f.nextVideoID
		f.Videos[video.ExternalID] = &stored
		result := stored
		return &result, nil
	}

	if video.Shortcode != "" {
		existing.Shortcode = video.Shortcode
	}
	if video.VideoURL != nil {
		existing.VideoURL = video.VideoURL
	}
	if video.ThumbnailURL != nil {
		existing.ThumbnailURL = video.ThumbnailURL
	}
	if video.Caption != nil {
		existing.Caption = video.Caption
	}
	if video.PostedAt != nil {
		existing.PostedAt = video.PostedAt
	}
	existing.IsReel = video.IsReel
	result := *existing
	return &result, nil
}

func (f *FakeStore) GetVideoByExternalID(ctx context.Context, externalID string) (*models.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	video, ok := f.Videos[externalID]
	if !ok {
		return nil, store.ErrNotFound
	}
	result := *video
	return &result, nil
}

func (f *FakeStore) LatestMetricSample(ctx context.Context, videoID uint) (*models.MetricSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matches []*models.MetricSample
	for _, sample := range f.Samples {
		if sample.VideoID == videoID {
			matches = append(matches, sample)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].RecordedAt.After(matches[j].RecordedAt)
	})
	result := *matches[0]
	return &result, nil
}

func (f *FakeStore) AppendMetricSample(ctx context.Context, sample *models.MetricSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailAppendSample != nil {
		return f.FailAppendSample
	}
	stored := *sample
	if stored.RecordedAt.IsZero() {
		stored.RecordedAt = time.Now()
	}
	f.Samples = append(f.Samples, &stored)
	return nil
}

func (f *FakeStore) CreateSession(ctx context.Context, session *models.ScrapeSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.Sessions[session.SessionID]; exists {
		return store.ErrDuplicate
	}
	stored := *session
	f.Sessions[session.SessionID] = &stored
	return nil
}

func (f *FakeStore) FinishSession(ctx context.Context, sessionID string, result store.SessionResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.Sessions[sessionID]
	if !ok || session.Status != models.SessionRunning {
		return store.ErrInvalidTransition
	}
	now := time.Now()
	session.Status = result.Status
	session.CompletedAt = &now
	session.PostsScrapedCount = result.PostsScrapedCount
	session.Errors = result.Errors
	return nil
}

func (f *FakeStore) GetSession(ctx context.Context, sessionID string) (*models.ScrapeSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.Sessions[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	result := *session
	return &result, nil
}

// RunInTransaction applies fn to a clone of the store and merges the clone
// back only when fn succeeds.
func (f *FakeStore) RunInTransaction(ctx context.Context, fn func(tx store.Storage) error) error {
	clone := f.clone()
	if err := fn(clone); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Creators = clone.Creators
	f.Videos = clone.Videos
	f.Samples = clone.Samples
	f.Sessions = clone.Sessions
	f.Audits = clone.Audits
	f.nextCreatorID = clone.nextCreatorID
	f.nextVideoID = clone.nextVideoID
	return nil
}

func (f *FakeStore) AppendAudit(ctx context.Context, entry *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored := *entry
	f.Audits = append(f.Audits, &stored)
	return nil
}

func (f *FakeStore) clone() *FakeStore {
	f.mu.Lock()
	defer f.mu.Unlock()

	clone := New()
	clone.nextCreatorID = f.nextCreatorID
	clone.nextVideoID = f.nextVideoID
	clone.FailAppendSample = f.FailAppendSample
	for k, v := range f.Creators {
		row := *v
		clone.Creators[k] = &row
	}
	for k, v := range f.Videos {
		row := *v
		clone.Videos[k] = &row
	}
	for _, v := range f.Samples {
		row := *v
		clone.Samples = append(clone.Samples, &row)
	}
	for k, v := range f.Sessions {
		row := *v
		clone.Sessions[k] = &row
	}
	for _, v := range f.Audits {
		row := *v
		clone.Audits = append(clone.Audits, &row)
	}
	return clone
}
