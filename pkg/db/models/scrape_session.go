package models

import (
	"time"

	"github.com/lib/pq"
)

// SessionStatus represents the lifecycle state of a scrape session
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionCancelled SessionStatus = "cancelled"
)

// ScrapeSession records one logical scrape run. A session is created in the
// running state when a composite profile+posts job starts and transitions to
// exactly one terminal state; terminal rows are never revisited.
type ScrapeSession struct {
	ID        uint   `gorm:"primaryKey;column:id"`
	SessionID string `gorm:"column:session_id;not null;uniqueIndex"`
	Username  string `gorm:"column:username;index"`

	Status            SessionStatus  `gorm:"column:status;type:session_status;not null;default:'running'"`
	StartedAt         time.Time      `gorm:"column:started_at;not null"`
	CompletedAt       *time.Time     `gorm:"column:completed_at"`
	PostsScrapedCount int            `gorm:"column:posts_scraped_count;default:0"`
	Errors            pq.StringArray `gorm:"column:errors;type:text[]"`
}

// TableName specifies the table name for the ScrapeSession model
func (ScrapeSession) TableName() string {
	return "scrape_sessions"
}

// Terminal reports whether the session has reached a final state.
func (s ScrapeSession) Terminal() bool {
	return s.Status == SessionCompleted || s.Status == SessionFailed || s.Status == SessionCancelled
}
