package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Client is the HTTP implementation of Fetcher against the scrape API.
// A shared rate limiter paces all requests regardless of which goroutine
// issues them, so concurrent fetches cannot burst past the configured
// requests-per-minute budget.
type Client struct {
	config  *Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *logrus.Logger

	releaseOnce sync.Once
}

// NewClient creates a new scrape-API client with the provided configuration.
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	every := time.Minute / time.Duration(config.RequestsPerMinute)

	return &Client{
		config: config,
		client: &http.Client{
			Timeout: config.RequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(every), 1),
		logger:  config.Logger,
	}, nil
}

// FetchProfile retrieves the profile record for a username.
func (c *Client) FetchProfile(ctx context.Context, username string) (*ProfileRecord, error) {
	endpoint := fmt.Sprintf("%s%s/%s", c.config.BaseURL, c.config.ProfileEndpoint, url.PathEscape(username))

	c.logger.WithFields(logrus.Fields{
		"username": username,
		"endpoint": endpoint,
	}).Debug("Fetching profile")

	var profile ProfileRecord
	if err := c.getJSON(ctx, endpoint, &profile); err != nil {
		return nil, err
	}

	if profile.Username == "" {
		profile.Username = username
	}
	return &profile, nil
}

// FetchPosts retrieves up to limit recent posts for a username.
func (c *Client) FetchPosts(ctx context.Context, username string, limit int) ([]RawPost, error) {
	if limit <= 0 {
		limit = c.config.PostsPerRequest
	}

	endpoint := fmt.Sprintf("%s%s/%s?limit=%s",
		c.config.BaseURL,
		c.config.PostsEndpoint,
		url.PathEscape(username),
		strconv.Itoa(limit),
	)

	c.logger.WithFields(logrus.Fields{
		"username": username,
		"limit":    limit,
		"endpoint": endpoint,
	}).Debug("Fetching posts")

	var response struct {
		Data []RawPost `json:"data"`
	}
	if err := c.getJSON(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"username":    username,
		"posts_count": len(response.Data),
	}).Debug("Successfully decoded posts response")

	return response.Data, nil
}

// Release closes idle connections. Safe to call more than once.
func (c *Client) Release() error {
	c.releaseOnce.Do(func() {
		c.client.CloseIdleConnections()
		c.logger.Debug("Scrape client released")
	})
	return nil
}

// getJSON performs a rate-limited GET and decodes the JSON response,
// translating failures into the typed error taxonomy.
func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.WithError(err).Error("HTTP request failed")
		return &ConnectionError{Err: err}
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"status_code": resp.StatusCode,
		"endpoint":    endpoint,
	}).Debug("Received HTTP response")

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == StatusRateLimit {
			c.logger.Warn("Rate limit exceeded")
			return NewRateLimitError(parseRetryAfter(resp), endpoint)
		}
		c.logger.WithField("status_code", resp.StatusCode).Error("Unexpected status code")
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.WithError(err).Error("Failed to decode response")
		return fmt.Errorf("error decoding response: %w", err)
	}

	return nil
}

func parseRetryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
