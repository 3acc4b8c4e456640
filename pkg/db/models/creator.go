package models

import (
	"time"
)

// Creator represents a tracked social profile. Creators are upserted by
// username (case-insensitive) and never deleted; repeated scrapes merge
// new values over old ones, keeping known data when a fetch is partial.
type Creator struct {
	ID       uint   `gorm:"primaryKey;column:id"`
	Username string `gorm:"column:username;not null;uniqueIndex"`

	// Profile Information
	DisplayName    string `gorm:"column:display_name"`
	FollowerCount  *int64 `gorm:"column:follower_count"`
	FollowingCount *int64 `gorm:"column:following_count"`
	PostCount      *int64 `gorm:"column:post_count"`
	IsVerified     bool   `gorm:"column:is_verified;default:false"`
	IsPrivate      bool   `gorm:"column:is_private;default:false"`

	// Scrape Bookkeeping
	LastScrapedAt          *time.Time `gorm:"column:last_scraped_at"`
	LastSuccessfulScrapeAt *time.Time `gorm:"column:last_successful_scrape_at"`
	ScrapeFailureCount     int        `gorm:"column:scrape_failure_count;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:CURRENT_TIMESTAMP"`

	Videos []Video `gorm:"foreignKey:CreatorID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Creator model
func (Creator) TableName() string {
	return "creators"
}
