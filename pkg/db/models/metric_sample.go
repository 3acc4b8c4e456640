package models

import (
	"time"
)

// MetricSample is one point-in-time measurement of a video's engagement
// counters. Rows are append-only: one per ingestion event per video, never
// updated or deleted. Deltas are computed at ingestion time against the
// most recent prior sample for the same video.
type MetricSample struct {
	ID      uint `gorm:"primaryKey;column:id"`
	VideoID uint `gorm:"column:video_id;not null;index"`

	Views    int64 `gorm:"column:views;default:0"`
	Likes    int64 `gorm:"column:likes;default:0"`
	Comments int64 `gorm:"column:comments;default:0"`
	Shares   int64 `gorm:"column:shares;default:0"`
	Saves    int64 `gorm:"column:saves;default:0"`

	LikesDelta int64 `gorm:"column:likes_delta;default:0"`
	ViewsDelta int64 `gorm:"column:views_delta;default:0"`

	RecordedAt time.Time `gorm:"column:recorded_at;not null;index"`
	SessionID  string    `gorm:"column:session_id;index"`
}

// TableName specifies the table name for the MetricSample model
func (MetricSample) TableName() string {
	return "metric_samples"
}

// EngagementRate derives the engagement percentage for this sample:
// (likes+comments+shares+saves)/views*100, or 0 when views is 0.
func (m MetricSample) EngagementRate() float64 {
	if m.Views == 0 {
		return 0
	}
	interactions := m.Likes + m.Comments + m.Shares + m.Saves
	return float64(interactions) / float64(m.Views) * 100
}
