// Package fetch defines the fetcher contract consumed by the scheduler and
// provides an HTTP client implementation against a scrape-API endpoint.
// The scheduler treats the fetcher as opaque: it asks for a profile or a
// list of posts for a subject and classifies whatever error comes back.
package fetch

import (
	"context"
	"time"
)

// ProfileRecord is a raw creator profile as returned by the data source.
// Counter fields are pointers so a partial fetch can leave them unset
// without clobbering previously stored values downstream.
type ProfileRecord struct {
	Username       string `json:"username"`
	DisplayName    string `json:"displayName"`
	FollowerCount  *int64 `json:"followerCount"`
	FollowingCount *int64 `json:"followingCount"`
	PostCount      *int64 `json:"postCount"`
	IsVerified     bool   `json:"isVerified"`
	IsPrivate      bool   `json:"isPrivate"`
}

// RawPost is a raw post record as returned by the data source.
type RawPost struct {
	// ExternalID is the source's id for the post. When the source exposes
	// no extractable id, callers fall back to URL as the natural key; two
	// URLs reaching the same content then count as two posts. Known
	// limitation of the source data, not papered over here.
	ExternalID   string     `json:"externalId"`
	URL          string     `json:"url"`
	Shortcode    string     `json:"shortcode"`
	VideoURL     *string    `json:"videoUrl"`
	ThumbnailURL *string    `json:"thumbnailUrl"`
	Caption      *string    `json:"caption"`
	PostedAt     *time.Time `json:"postedAt"`
	IsReel       bool       `json:"isReel"`

	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
	Saves    int64 `json:"saves"`
}

// Key returns the natural key used for deduplication: the external id when
// present, otherwise the source URL.
func (p RawPost) Key() string {
	if p.ExternalID != "" {
		return p.ExternalID
	}
	return p.URL
}

// Fetcher retrieves profile and post data for a subject. Implementations
// must support concurrent independent calls; the scheduler bounds how many
// run at once but does not serialize access further.
type Fetcher interface {
	// FetchProfile returns the profile record for the given username.
	FetchProfile(ctx context.Context, username string) (*ProfileRecord, error)
	// FetchPosts returns up to limit recent posts for the given username.
	FetchPosts(ctx context.Context, username string, limit int) ([]RawPost, error)
	// Release tears down the underlying resource. Idempotent.
	Release() error
}
