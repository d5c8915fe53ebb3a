package models

import (
	"time"

	"gorm.io/gorm"
)

// ScheduledMessage statuses. Steps dropped before compilation are never
// persisted, so there is deliberately no "skipped" status.
const (
	MessageStatusPending   = "pending"
	MessageStatusSent      = "sent"
	MessageStatusCancelled = "cancelled"
	MessageStatusFailed    = "failed"
)

// ScheduledMessage is one compiled step of a cadence, persisted at trigger
// time and mutated only by the execution engine or the cancellation service.
type ScheduledMessage struct {
	gorm.Model
	LeadID   uint `gorm:"not null;index" json:"lead_id"`
	TenantID uint `gorm:"not null;index" json:"tenant_id"`

	// CadenceID groups the initial batch with any chained extension so the
	// whole run cancels as one unit.
	CadenceID string `gorm:"not null;index" json:"cadence_id"`

	// StepIndex is unique and strictly increasing within a CadenceID,
	// including across chained batches.
	StepIndex int `gorm:"not null" json:"step_index"`

	// Absolute UTC send time, already legalized and window-adjusted
	SendAt time.Time `gorm:"not null;index" json:"send_at"`

	Channel string `gorm:"not null" json:"channel"` // sms, email, call
	Tag     string `gorm:"not null" json:"tag"`

	Status string `gorm:"default:'pending';index" json:"status"` // pending, sent, cancelled, failed

	ExecutedAt   *time.Time `json:"executed_at"`
	CancelledAt  *time.Time `json:"cancelled_at"`
	CancelReason string     `json:"cancel_reason"`
	LastError    string     `gorm:"type:text" json:"last_error"`

	// Relations
	Lead Lead `json:"-"`
}

// IsPending reports whether the message is still eligible for delivery.
func (m *ScheduledMessage) IsPending() bool {
	return m.Status == MessageStatusPending
}
