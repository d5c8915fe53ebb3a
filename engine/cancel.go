package engine

import (
	"context"

	"leadcadence/store"

	"github.com/sirupsen/logrus"
)

// Well-known cancellation reasons recorded on superseded items. Detecting
// these events is the caller's responsibility; this core only exposes the
// bulk primitive.
const (
	CancelReasonResponded    = "lead_responded"
	CancelReasonStageChanged = "stage_changed"
	CancelReasonOptedOut     = "opted_out"
	CancelReasonSuperseded   = "superseded"
)

// Canceller bulk-supersedes a lead's outstanding cadence.
type Canceller struct {
	Store  store.Store
	Logger *logrus.Logger
}

func NewCanceller(st store.Store, logger *logrus.Logger) *Canceller {
	return &Canceller{Store: st, Logger: logger}
}

// CancelAll transitions every pending item for the lead to cancelled,
// stamping time and reason. Idempotent: a second call with nothing pending
// succeeds with a zero count. Safe from any goroutine because the store
// performs a single conditional bulk update keyed on status=pending.
func (c *Canceller) CancelAll(ctx context.Context, leadID uint, reason string) (int64, error) {
	count, err := c.Store.CancelAllPendingForLead(ctx, leadID, reason)
	if err != nil {
		return 0, err
	}
	c.Logger.WithFields(logrus.Fields{
		"lead_id":   leadID,
		"reason":    reason,
		"cancelled": count,
	}).Info("pending cadence cancelled")
	return count, nil
}
