package fetch

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Default configuration values
const (
	// DefaultRequestTimeout bounds a single fetch request
	DefaultRequestTimeout = 120 * time.Second

	// DefaultPostsPerRequest is how many posts to ask for when the caller
	// does not specify a limit
	DefaultPostsPerRequest = 50

	// DefaultRequestsPerMinute caps the aggregate request rate against the
	// scrape endpoint
	DefaultRequestsPerMinute = 20
)

// Config holds the scrape-API client configuration
type Config struct {
	// API Endpoints
	BaseURL         string
	ProfileEndpoint string
	PostsEndpoint   string

	// Request behaviour
	RequestTimeout    time.Duration
	PostsPerRequest   int
	RequestsPerMinute int

	// General Config
	Logger *logrus.Logger
}

// NewConfig loads the client configuration from the environment
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	timeoutSecs, _ := strconv.Atoi(getEnvOrDefault("SCRAPE_REQUEST_TIMEOUT_SECS", "120"))
	postsPerRequest, _ := strconv.Atoi(getEnvOrDefault("SCRAPE_POSTS_PER_REQUEST", "50"))
	requestsPerMinute, _ := strconv.Atoi(getEnvOrDefault("SCRAPE_REQUESTS_PER_MINUTE", "20"))

	config := &Config{
		BaseURL:         getEnvOrDefault("SCRAPE_API_BASE_URL", "http://localhost:8080/api/v1"),
		ProfileEndpoint: "/profiles",
		PostsEndpoint:   "/posts",

		RequestTimeout:    time.Duration(timeoutSecs) * time.Second,
		PostsPerRequest:   postsPerRequest,
		RequestsPerMinute: requestsPerMinute,

		Logger: func() *logrus.Logger {
			log := logrus.New()
			if level := os.Getenv("LOG_LEVEL"); level != "" {
				if parsedLevel, err := logrus.ParseLevel(level); err == nil {
					log.SetLevel(parsedLevel)
				}
			}
			return log
		}(),
	}

	return config, config.Validate()
}

// Validate checks the configuration for usable values
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests per minute must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
