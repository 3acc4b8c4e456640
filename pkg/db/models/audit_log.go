package models

import (
	"time"
)

// AuditAction identifies what happened to an entity
type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
)

// AuditLog is a write-only trail of entity changes. The core never reads
// these rows back; they exist for operators and tooling.
type AuditLog struct {
	ID         uint        `gorm:"primaryKey;column:id"`
	EntityType string      `gorm:"column:entity_type;not null;index"`
	EntityID   string      `gorm:"column:entity_id;not null"`
	Action     AuditAction `gorm:"column:action;not null"`
	OldValue   interface{} `gorm:"column:old_value;type:jsonb"`
	NewValue   interface{} `gorm:"column:new_value;type:jsonb"`
	UserAction bool        `gorm:"column:user_action;default:false"`
	CreatedAt  time.Time   `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

// TableName specifies the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}
