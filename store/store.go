// Package store provides the persistence operations the scheduling core
// needs: bulk insert at compile time, due-item queries for the dispatch
// pass, and the conditional status updates that drive the per-item state
// machine.
package store

import (
	"context"
	"time"

	"leadcadence/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Store is the persistence surface consumed by the compiler, the execution
// engine and the cancellation service.
type Store interface {
	InsertMany(ctx context.Context, msgs []*models.ScheduledMessage) error
	NextStepIndex(ctx context.Context, cadenceID string) (int, error)
	QueryDuePending(ctx context.Context, now time.Time, limit int) ([]models.ScheduledMessage, error)
	MarkSent(ctx context.Context, id uint, at time.Time) error
	MarkFailed(ctx context.Context, id uint, errText string, at time.Time) error
	CancelAllPendingForLead(ctx context.Context, leadID uint, reason string) (int64, error)
	Lead(ctx context.Context, id uint) (*models.Lead, error)
	Conversations(ctx context.Context, leadID uint, limit int) ([]models.Conversation, error)
	Features(ctx context.Context, tenantID uint) (models.FeatureSet, error)
}

// GormStore implements Store on the shared gorm connection.
type GormStore struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewGormStore(db *gorm.DB, logger *logrus.Logger) *GormStore {
	return &GormStore{DB: db, Logger: logger}
}

// InsertMany persists a compiled batch atomically.
func (s *GormStore) InsertMany(ctx context.Context, msgs []*models.ScheduledMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Create(&msgs).Error
}

// NextStepIndex returns the next unused ordinal for a cadence, so a chained
// batch continues where the previous one stopped.
func (s *GormStore) NextStepIndex(ctx context.Context, cadenceID string) (int, error) {
	var maxIndex *int
	err := s.DB.WithContext(ctx).
		Model(&models.ScheduledMessage{}).
		Where("cadence_id = ?", cadenceID).
		Select("MAX(step_index)").
		Scan(&maxIndex).Error
	if err != nil {
		return 0, err
	}
	if maxIndex == nil {
		return 0, nil
	}
	return *maxIndex + 1, nil
}

// QueryDuePending fetches pending items whose send time has arrived,
// oldest first.
func (s *GormStore) QueryDuePending(ctx context.Context, now time.Time, limit int) ([]models.ScheduledMessage, error) {
	var msgs []models.ScheduledMessage
	err := s.DB.WithContext(ctx).
		Where("status = ? AND send_at <= ?", models.MessageStatusPending, now).
		Order("send_at ASC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

// MarkSent transitions an item to sent, conditional on it still being
// pending so a concurrent cancellation is never overwritten.
func (s *GormStore) MarkSent(ctx context.Context, id uint, at time.Time) error {
	res := s.DB.WithContext(ctx).
		Model(&models.ScheduledMessage{}).
		Where("id = ? AND status = ?", id, models.MessageStatusPending).
		Updates(map[string]interface{}{
			"status":      models.MessageStatusSent,
			"executed_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		s.Logger.WithField("message_id", id).Warn("mark sent raced a cancellation, status left untouched")
	}
	return nil
}

// MarkFailed records a terminal delivery failure.
func (s *GormStore) MarkFailed(ctx context.Context, id uint, errText string, at time.Time) error {
	return s.DB.WithContext(ctx).
		Model(&models.ScheduledMessage{}).
		Where("id = ? AND status = ?", id, models.MessageStatusPending).
		Updates(map[string]interface{}{
			"status":      models.MessageStatusFailed,
			"executed_at": at,
			"last_error":  errText,
		}).Error
}

// CancelAllPendingForLead bulk-cancels every pending item for a lead in one
// conditional update. Safe to call from any goroutine and idempotent: with
// nothing pending it succeeds with a zero count.
func (s *GormStore) CancelAllPendingForLead(ctx context.Context, leadID uint, reason string) (int64, error) {
	res := s.DB.WithContext(ctx).
		Model(&models.ScheduledMessage{}).
		Where("lead_id = ? AND status = ?", leadID, models.MessageStatusPending).
		Updates(map[string]interface{}{
			"status":        models.MessageStatusCancelled,
			"cancelled_at":  time.Now().UTC(),
			"cancel_reason": reason,
		})
	return res.RowsAffected, res.Error
}

func (s *GormStore) Lead(ctx context.Context, id uint) (*models.Lead, error) {
	var lead models.Lead
	if err := s.DB.WithContext(ctx).First(&lead, id).Error; err != nil {
		return nil, err
	}
	return &lead, nil
}

// Conversations returns the lead's most recent thread entries, newest
// first.
func (s *GormStore) Conversations(ctx context.Context, leadID uint, limit int) ([]models.Conversation, error) {
	var convos []models.Conversation
	err := s.DB.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("created_at DESC").
		Limit(limit).
		Find(&convos).Error
	return convos, err
}

// Features loads a tenant's capability toggles into a FeatureSet.
func (s *GormStore) Features(ctx context.Context, tenantID uint) (models.FeatureSet, error) {
	var rows []models.TenantFeature
	err := s.DB.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	fs := make(models.FeatureSet, len(rows))
	now := time.Now()
	for _, row := range rows {
		enabled := row.Enabled
		if row.ExpiresAt != nil && row.ExpiresAt.Before(now) {
			enabled = false
		}
		fs[row.Name] = enabled
	}
	return fs, nil
}
