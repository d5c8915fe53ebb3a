package engine

import (
	"context"
	"testing"
	"time"

	"leadcadence/models"
	"leadcadence/sequence"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore keeps items in memory and records state transitions.
type fakeStore struct {
	lead   *models.Lead
	items  map[uint]*models.ScheduledMessage
	sent   map[uint]bool
	failed map[uint]string
}

func newFakeStore(lead *models.Lead, items ...*models.ScheduledMessage) *fakeStore {
	fs := &fakeStore{
		lead:   lead,
		items:  map[uint]*models.ScheduledMessage{},
		sent:   map[uint]bool{},
		failed: map[uint]string{},
	}
	for _, item := range items {
		fs.items[item.ID] = item
	}
	return fs
}

func (f *fakeStore) InsertMany(_ context.Context, msgs []*models.ScheduledMessage) error {
	for _, m := range msgs {
		f.items[m.ID] = m
	}
	return nil
}

func (f *fakeStore) NextStepIndex(context.Context, string) (int, error) { return 0, nil }

func (f *fakeStore) QueryDuePending(context.Context, time.Time, int) ([]models.ScheduledMessage, error) {
	return nil, nil
}

func (f *fakeStore) MarkSent(_ context.Context, id uint, at time.Time) error {
	if item, ok := f.items[id]; ok && item.IsPending() {
		item.Status = models.MessageStatusSent
		item.ExecutedAt = &at
		f.sent[id] = true
	}
	return nil
}

func (f *fakeStore) MarkFailed(_ context.Context, id uint, errText string, at time.Time) error {
	if item, ok := f.items[id]; ok && item.IsPending() {
		item.Status = models.MessageStatusFailed
		item.ExecutedAt = &at
		item.LastError = errText
		f.failed[id] = errText
	}
	return nil
}

func (f *fakeStore) CancelAllPendingForLead(_ context.Context, leadID uint, reason string) (int64, error) {
	var count int64
	now := time.Now().UTC()
	for _, item := range f.items {
		if item.LeadID == leadID && item.IsPending() {
			item.Status = models.MessageStatusCancelled
			item.CancelledAt = &now
			item.CancelReason = reason
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) Lead(context.Context, uint) (*models.Lead, error) { return f.lead, nil }

func (f *fakeStore) Conversations(context.Context, uint, int) ([]models.Conversation, error) {
	return nil, nil
}

func (f *fakeStore) Features(context.Context, uint) (models.FeatureSet, error) {
	return models.FeatureSet{}, nil
}

type fakeGenerator struct {
	text      string
	subject   string
	succeeded bool
}

func (g fakeGenerator) Generate(context.Context, GenerationRequest) GenerationResult {
	return GenerationResult{Text: g.text, Subject: g.subject, Succeeded: g.succeeded}
}

type fakeTransport struct {
	result   SendResult
	sentText string
	calls    int
}

func (tr *fakeTransport) Send(_ context.Context, _ string, _ *models.Lead, text, _ string) SendResult {
	tr.calls++
	tr.sentText = text
	return tr.result
}

type fakeStages struct{ stage string }

func (s fakeStages) CurrentStage(context.Context, uint) (string, error) { return s.stage, nil }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func pendingItem(id uint, leadID uint) *models.ScheduledMessage {
	item := &models.ScheduledMessage{
		LeadID:    leadID,
		TenantID:  1,
		CadenceID: "run-1",
		StepIndex: int(id),
		SendAt:    time.Now().UTC(),
		Channel:   "sms",
		Tag:       string(sequence.TagCheckIn),
		Status:    models.MessageStatusPending,
	}
	item.ID = id
	return item
}

func newEngine(fs *fakeStore, gen ContentGenerator, tr Transport) *Engine {
	return &Engine{
		Store:     fs,
		Generator: gen,
		Transport: tr,
		Stages:    fakeStages{stage: "active"},
		Policy:    StagePolicy{Excluded: []string{"closed", "lost"}},
		Logger:    quietLogger(),
	}
}

func TestProcessNotPendingGuard(t *testing.T) {
	lead := &models.Lead{}
	item := pendingItem(1, 7)
	item.Status = models.MessageStatusCancelled
	e := newEngine(newFakeStore(lead, item), fakeGenerator{succeeded: true}, &fakeTransport{})

	res := e.Process(context.Background(), item)

	assert.False(t, res.Success)
	assert.Equal(t, ErrNotPending, res.DeliveryError)
}

func TestProcessStageExcludedCancelsWholeCadence(t *testing.T) {
	lead := &models.Lead{FirstName: "Dana"}
	current := pendingItem(1, 7)
	other1 := pendingItem(2, 7)
	other2 := pendingItem(3, 7)
	fs := newFakeStore(lead, current, other1, other2)

	tr := &fakeTransport{result: SendResult{Success: true}}
	e := newEngine(fs, fakeGenerator{text: "hi", succeeded: true}, tr)
	e.Stages = fakeStages{stage: "closed"}

	res := e.Process(context.Background(), current)

	assert.False(t, res.Success)
	assert.Equal(t, ErrStageExcluded, res.DeliveryError)
	assert.Zero(t, tr.calls)
	for _, item := range []*models.ScheduledMessage{current, other1, other2} {
		assert.Equal(t, models.MessageStatusCancelled, item.Status)
		assert.Equal(t, ErrStageExcluded, item.CancelReason)
		assert.NotNil(t, item.CancelledAt)
	}
}

func TestProcessGenerationFailureLeavesPending(t *testing.T) {
	lead := &models.Lead{FirstName: "Dana"}
	item := pendingItem(1, 7)
	fs := newFakeStore(lead, item)
	tr := &fakeTransport{}
	e := newEngine(fs, fakeGenerator{succeeded: false}, tr)

	res := e.Process(context.Background(), item)

	assert.False(t, res.Success)
	assert.Equal(t, ErrAIGenerationFailed, res.DeliveryError)
	assert.Equal(t, models.MessageStatusPending, item.Status)
	assert.Zero(t, tr.calls)
}

func TestProcessFailureMarkerTreatedAsGenerationFailure(t *testing.T) {
	lead := &models.Lead{FirstName: "Dana"}
	item := pendingItem(1, 7)
	e := newEngine(newFakeStore(lead, item),
		fakeGenerator{text: "sorry [GENERATION_FAILED] retry", succeeded: true},
		&fakeTransport{})

	res := e.Process(context.Background(), item)

	assert.Equal(t, ErrAIGenerationFailed, res.DeliveryError)
	assert.Equal(t, models.MessageStatusPending, item.Status)
}

func TestProcessNoGeneratorConfigured(t *testing.T) {
	lead := &models.Lead{}
	item := pendingItem(1, 7)
	e := newEngine(newFakeStore(lead, item), nil, &fakeTransport{})

	res := e.Process(context.Background(), item)

	assert.Equal(t, ErrAINotAvailable, res.DeliveryError)
	assert.Equal(t, models.MessageStatusPending, item.Status)
}

func TestProcessUnfilledTemplateFailsTerminally(t *testing.T) {
	lead := &models.Lead{} // no first name on file
	item := pendingItem(1, 7)
	fs := newFakeStore(lead, item)
	tr := &fakeTransport{}
	e := newEngine(fs, fakeGenerator{text: "Hi {first_name}!", succeeded: true}, tr)

	res := e.Process(context.Background(), item)

	assert.False(t, res.Success)
	assert.Equal(t, ErrUnfilledTemplate, res.DeliveryError)
	assert.Equal(t, models.MessageStatusFailed, item.Status)
	assert.Zero(t, tr.calls)
}

func TestProcessUnfilledSubjectFailsTerminally(t *testing.T) {
	lead := &models.Lead{} // no first name on file
	item := pendingItem(1, 7)
	fs := newFakeStore(lead, item)
	tr := &fakeTransport{}
	e := newEngine(fs, fakeGenerator{
		text:      "All good here.",
		subject:   "Hi {first_name}!",
		succeeded: true,
	}, tr)

	res := e.Process(context.Background(), item)

	assert.False(t, res.Success)
	assert.Equal(t, ErrUnfilledTemplate, res.DeliveryError)
	assert.Equal(t, models.MessageStatusFailed, item.Status)
	assert.Zero(t, tr.calls)
}

func TestProcessSubstitutesAndSends(t *testing.T) {
	lead := &models.Lead{FirstName: "Dana", Company: "Acme"}
	item := pendingItem(1, 7)
	fs := newFakeStore(lead, item)
	tr := &fakeTransport{result: SendResult{Success: true}}
	e := newEngine(fs, fakeGenerator{text: "Hi {first_name} of {company} - {calendar_link}", succeeded: true}, tr)
	e.CalendarLink = "https://cal.example/dana"

	res := e.Process(context.Background(), item)

	assert.True(t, res.Success)
	assert.Equal(t, "Hi Dana of Acme - https://cal.example/dana", tr.sentText)
	assert.Equal(t, models.MessageStatusSent, item.Status)
	assert.NotNil(t, item.ExecutedAt)
	assert.True(t, res.UsedDynamic)
}

func TestProcessUnrecognizedPlaceholdersPassThrough(t *testing.T) {
	lead := &models.Lead{FirstName: "Dana"}
	item := pendingItem(1, 7)
	tr := &fakeTransport{result: SendResult{Success: true}}
	e := newEngine(newFakeStore(lead, item),
		fakeGenerator{text: "Hi {first_name}, ref {custom_token}", succeeded: true}, tr)

	res := e.Process(context.Background(), item)

	assert.True(t, res.Success)
	assert.Equal(t, "Hi Dana, ref {custom_token}", tr.sentText)
}

func TestProcessTransientTransportFailureStaysPending(t *testing.T) {
	lead := &models.Lead{FirstName: "Dana"}
	item := pendingItem(1, 7)
	fs := newFakeStore(lead, item)
	tr := &fakeTransport{result: SendResult{Success: false, Error: "login failed: session expired"}}
	e := newEngine(fs, fakeGenerator{text: "hello", succeeded: true}, tr)

	res := e.Process(context.Background(), item)

	assert.False(t, res.Success)
	assert.Equal(t, "login failed: session expired", res.DeliveryError)
	assert.Equal(t, models.MessageStatusPending, item.Status)
	assert.Empty(t, fs.failed)
}

func TestProcessPermanentTransportFailureFails(t *testing.T) {
	lead := &models.Lead{FirstName: "Dana"}
	item := pendingItem(1, 7)
	fs := newFakeStore(lead, item)
	tr := &fakeTransport{result: SendResult{Success: false, Error: "invalid phone number"}}
	e := newEngine(fs, fakeGenerator{text: "hello", succeeded: true}, tr)

	res := e.Process(context.Background(), item)

	assert.False(t, res.Success)
	assert.Equal(t, models.MessageStatusFailed, item.Status)
	assert.Equal(t, "invalid phone number", fs.failed[1])
	assert.NotNil(t, item.ExecutedAt)
}

func TestProcessStructuredKindOverridesSubstrings(t *testing.T) {
	lead := &models.Lead{FirstName: "Dana"}

	// Transient kind with otherwise-terminal text stays pending
	item := pendingItem(1, 7)
	fs := newFakeStore(lead, item)
	tr := &fakeTransport{result: SendResult{Success: false, Error: "rate limited", Kind: KindTransient}}
	e := newEngine(fs, fakeGenerator{text: "hello", succeeded: true}, tr)
	e.Process(context.Background(), item)
	assert.Equal(t, models.MessageStatusPending, item.Status)

	// Permanent kind with transient-looking text fails
	item2 := pendingItem(2, 8)
	fs2 := newFakeStore(lead, item2)
	tr2 := &fakeTransport{result: SendResult{Success: false, Error: "login page changed", Kind: KindPermanent}}
	e2 := newEngine(fs2, fakeGenerator{text: "hello", succeeded: true}, tr2)
	e2.Process(context.Background(), item2)
	assert.Equal(t, models.MessageStatusFailed, item2.Status)
}

func TestProcessManualChannelReportsSuccessWithoutSending(t *testing.T) {
	lead := &models.Lead{FirstName: "Dana"}
	item := pendingItem(1, 7)
	item.Channel = "call"
	item.Tag = string(sequence.TagAnnualReviewCall)
	fs := newFakeStore(lead, item)
	tr := &fakeTransport{}
	e := newEngine(fs, fakeGenerator{text: "call notes", succeeded: true}, tr)

	res := e.Process(context.Background(), item)

	require.True(t, res.Success)
	assert.True(t, res.RequiresManualAction)
	assert.Zero(t, tr.calls)
	assert.Equal(t, models.MessageStatusSent, item.Status)
}

func TestIsTransientSubstrings(t *testing.T) {
	assert.True(t, isTransient(SendResult{Error: "Login Failed"}))
	assert.True(t, isTransient(SendResult{Error: "verification required"}))
	assert.True(t, isTransient(SendResult{Error: "captcha challenge"}))
	assert.False(t, isTransient(SendResult{Error: "invalid phone number"}))
	assert.False(t, isTransient(SendResult{Error: "recipient blocked sender"}))
}
