package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/creatorlens/tracker-go/internal/trackerconfig"
	"github.com/creatorlens/tracker-go/pkg/db"
	"github.com/creatorlens/tracker-go/pkg/fetch"
	"github.com/creatorlens/tracker-go/pkg/logging"
	"github.com/creatorlens/tracker-go/pkg/progress"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		// Only log warning since .env is optional
		logrus.WithError(err).Warn("Error loading .env file")
	}

	// Initialize logger
	log := logrus.New()
	log.SetFormatter(logging.NewColoredJSONFormatter())

	// Get log level from environment
	logLevel := os.Getenv("LOG_LEVEL")
	if level, err := logrus.ParseLevel(logLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.WithFields(logrus.Fields{
			"attempted_level": logLevel,
			"default_level":   "INFO",
		}).Warn("Invalid log level specified, defaulting to INFO")
	}

	// Initialize database (runs migrations)
	database, err := db.SetupDatabase(log)
	if err != nil {
		log.WithError(err).Fatal("Failed to set up database")
	}

	// Initialize scrape-API client
	fetchConfig, err := fetch.NewConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to create fetch config")
	}
	fetchConfig.Logger = log

	fetcher, err := fetch.NewClient(fetchConfig)
	if err != nil {
		log.WithError(err).Fatal("Failed to create scrape client")
	}

	// Progress events
	emitter := progress.NewEmitter(log)
	subscriberID, events := emitter.Subscribe()
	defer emitter.Unsubscribe(subscriberID)

	go func() {
		for event := range events {
			log.WithFields(logrus.Fields{
				"username":   event.Username,
				"status":     event.Status,
				"session_id": event.SessionID,
				"post_ref":   event.PostRef,
				"error":      event.Error,
			}).Info("Scrape progress")
		}
	}()

	// Assemble the scheduler
	sched, err := trackerconfig.ConfigureScheduler(trackerconfig.SchedulerConfig{
		DB:      database,
		Fetcher: fetcher,
		Emitter: emitter,
		Logger:  log,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to configure scheduler")
	}

	// Queue initial subjects from the environment, if any
	if subjects := os.Getenv("TRACK_SUBJECTS"); subjects != "" {
		accepted := sched.SubmitBulk(splitSubjects(subjects))
		log.WithField("accepted", accepted).Info("Queued initial subjects")
	}

	log.Info("Tracker started, waiting for work")

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("Received shutdown signal")

	if err := sched.Close(); err != nil {
		log.WithError(err).Error("Scheduler shutdown reported an error")
	}
	emitter.Close()

	log.Info("Tracker shutdown complete")
}

func splitSubjects(raw string) []string {
	var subjects []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			subjects = append(subjects, s)
		}
	}
	return subjects
}
