package models

import (
	"time"
)

// Video represents one piece of content belonging to a creator. Videos are
// upserted by ExternalID; when no id can be extracted from the source the
// post URL is used as the key instead. Nullable columns follow a
// COALESCE-preserve policy on conflict: a later partial fetch never erases
// a previously known value.
type Video struct {
	ID         uint   `gorm:"primaryKey;column:id"`
	CreatorID  uint   `gorm:"column:creator_id;not null;index"`
	ExternalID string `gorm:"column:external_id;not null;uniqueIndex"`

	Shortcode    string     `gorm:"column:shortcode"`
	VideoURL     *string    `gorm:"column:video_url"`
	ThumbnailURL *string    `gorm:"column:thumbnail_url"`
	Caption      *string    `gorm:"column:caption"`
	PostedAt     *time.Time `gorm:"column:posted_at"`
	IsReel       bool       `gorm:"column:is_reel;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:CURRENT_TIMESTAMP"`

	Creator *Creator       `gorm:"foreignKey:CreatorID"`
	Samples []MetricSample `gorm:"foreignKey:VideoID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Video model
func (Video) TableName() string {
	return "videos"
}
