package engine

import (
	"context"
	"testing"

	"leadcadence/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelAllSupersedesPendingItems(t *testing.T) {
	lead := &models.Lead{}
	a := pendingItem(1, 9)
	b := pendingItem(2, 9)
	sent := pendingItem(3, 9)
	sent.Status = models.MessageStatusSent
	fs := newFakeStore(lead, a, b, sent)

	c := NewCanceller(fs, quietLogger())
	count, err := c.CancelAll(context.Background(), 9, CancelReasonResponded)
	require.NoError(t, err)

	assert.Equal(t, int64(2), count)
	assert.Equal(t, models.MessageStatusCancelled, a.Status)
	assert.Equal(t, CancelReasonResponded, a.CancelReason)
	assert.Equal(t, models.MessageStatusCancelled, b.Status)

	// Terminal statuses are left untouched
	assert.Equal(t, models.MessageStatusSent, sent.Status)
}

func TestCancelAllIsIdempotent(t *testing.T) {
	lead := &models.Lead{}
	a := pendingItem(1, 9)
	fs := newFakeStore(lead, a)
	c := NewCanceller(fs, quietLogger())

	first, err := c.CancelAll(context.Background(), 9, CancelReasonOptedOut)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)

	firstStamp := *a.CancelledAt

	second, err := c.CancelAll(context.Background(), 9, CancelReasonOptedOut)
	require.NoError(t, err)
	assert.Zero(t, second)
	assert.Equal(t, models.MessageStatusCancelled, a.Status)
	assert.Equal(t, firstStamp, *a.CancelledAt)
}

func TestCancelAllOtherLeadsUnaffected(t *testing.T) {
	lead := &models.Lead{}
	mine := pendingItem(1, 9)
	theirs := pendingItem(2, 10)
	fs := newFakeStore(lead, mine, theirs)

	c := NewCanceller(fs, quietLogger())
	count, err := c.CancelAll(context.Background(), 9, CancelReasonStageChanged)
	require.NoError(t, err)

	assert.Equal(t, int64(1), count)
	assert.Equal(t, models.MessageStatusPending, theirs.Status)
}
