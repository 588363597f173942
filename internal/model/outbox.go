package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusDead    = "DEAD"
)

// Outbox channels decide where the sender delivers a message.
const (
	OutboxChannelNotification = "notification"
	OutboxChannelAudit        = "audit"
)

// OutboxMessage is a side effect waiting for delivery. Rows are written after
// the business transaction commits; a row that exhausts its retries is kept
// as DEAD for inspection.
type OutboxMessage struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Channel       string    `gorm:"type:varchar(20);not null" json:"channel"`
	Topic         string    `gorm:"type:varchar(64);not null" json:"topic"`
	MessageKey    string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Payload       string    `gorm:"type:text;not null" json:"payload"`
	Status        string    `gorm:"type:varchar(20);not null;default:PENDING;index:idx_outbox_due,priority:1" json:"status"`
	RetryCount    int       `gorm:"not null;default:0" json:"retry_count"`
	NextAttemptAt time.Time `gorm:"not null;index:idx_outbox_due,priority:2" json:"next_attempt_at"`
	LastError     string    `gorm:"type:varchar(512)" json:"last_error"`
	CorrelationID string    `gorm:"type:varchar(64)" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}
