package trackerconfig

import (
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/creatorlens/tracker-go/pkg/backoff"
	"github.com/creatorlens/tracker-go/pkg/fetch"
	"github.com/creatorlens/tracker-go/pkg/ingest"
	"github.com/creatorlens/tracker-go/pkg/progress"
	"github.com/creatorlens/tracker-go/pkg/scheduler"
	"github.com/creatorlens/tracker-go/pkg/session"
	"github.com/creatorlens/tracker-go/pkg/store"
)

type SchedulerConfig struct {
	DB      *gorm.DB
	Fetcher fetch.Fetcher
	Emitter *progress.Emitter
	Logger  *logrus.Logger
}

// ConfigureScheduler assembles the storage, session tracker, ingestion
// engine and scheduler from the environment.
func ConfigureScheduler(config SchedulerConfig) (*scheduler.Scheduler, error) {
	storage := store.NewGormStore(config.DB, config.Logger)
	sessions := session.NewTracker(storage, config.Logger)
	ingestor := ingest.NewEngine(storage, config.Logger)

	concurrency := envInt("SCHEDULER_CONCURRENCY", scheduler.DefaultConcurrency)
	maxRetries := envInt("SCHEDULER_MAX_RETRIES", scheduler.DefaultMaxRetries)
	pacingSecs := envInt("SCHEDULER_PACING_SECS", int(scheduler.DefaultPacingInterval/time.Second))
	baseDelaySecs := envInt("SCHEDULER_BACKOFF_BASE_SECS", int(backoff.DefaultBaseDelay/time.Second))
	jitterSecs := envInt("SCHEDULER_BACKOFF_JITTER_SECS", int(backoff.DefaultJitterMax/time.Second))

	return scheduler.New(scheduler.Config{
		Fetcher:        config.Fetcher,
		Storage:        storage,
		Sessions:       sessions,
		Ingestor:       ingestor,
		Emitter:        config.Emitter,
		Logger:         config.Logger,
		Concurrency:    concurrency,
		MaxRetries:     maxRetries,
		PacingInterval: time.Duration(pacingSecs) * time.Second,
		Backoff: backoff.NewPolicy(
			time.Duration(baseDelaySecs)*time.Second,
			time.Duration(jitterSecs)*time.Second,
		),
	})
}

func envInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
