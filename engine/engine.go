// Package engine drives the per-item delivery state machine: eligibility,
// content, template safety, dispatch and outcome recording.
package engine

import (
	"context"
	"strings"
	"time"

	"leadcadence/models"
	"leadcadence/sequence"
	"leadcadence/store"
	"leadcadence/timewindow"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// Delivery outcome codes returned in ProcessResult.DeliveryError.
const (
	ErrNotPending         = "not_pending"
	ErrStageExcluded      = "stage_excluded"
	ErrAIGenerationFailed = "ai_generation_failed"
	ErrAINotAvailable     = "ai_not_available"
	ErrUnfilledTemplate   = "unfilled_template"
	ErrDailyCapReached    = "daily_cap_reached"
)

// generationFailureMarker flags degraded output from the content pipeline;
// text still carrying it is never sent.
const generationFailureMarker = "[GENERATION_FAILED]"

// mustNeverShip placeholders surviving substitution terminally fail the
// item; they signal a content-pipeline bug, not a retry case.
var mustNeverShip = []string{
	"{first_name}",
	"{last_name}",
	"{company}",
	"{calendar_link}",
	"{sender_name}",
}

// transientMarkers classify transport error text as retriable when the
// transport does not carry a structured kind.
var transientMarkers = []string{
	"login",
	"session",
	"signed out",
	"verification",
	"captcha",
	"authentication",
}

// autoChannels have a wired transport. Other channels (call tasks) report
// a requires-manual-action success without truly sending.
var autoChannels = map[string]bool{
	sequence.ChannelSMS:   true,
	sequence.ChannelEmail: true,
}

// Engine processes one scheduled item at a time and is safe for concurrent
// use across a worker pool.
type Engine struct {
	Store     store.Store
	Generator ContentGenerator
	Transport Transport
	Stages    StageOracle
	Policy    PolicyOracle
	Logger    *logrus.Logger

	// SendCap is the optional per-tenant daily ceiling; nil means no cap.
	SendCap *store.SendCap

	// SenderName and CalendarLink fill the matching placeholders.
	SenderName   string
	CalendarLink string

	// ReportErrors forwards terminal failures to sentry.
	ReportErrors bool
}

// ProcessResult is the structured outcome of one delivery attempt.
type ProcessResult struct {
	Success     bool   `json:"success"`
	Channel     string `json:"channel"`
	Tag         string `json:"tag"`
	Text        string `json:"text"`
	UsedDynamic bool   `json:"used_dynamic"`

	// DeliveryError is one of the outcome codes above, or the transport's
	// error text.
	DeliveryError string `json:"delivery_error,omitempty"`

	// RequiresManualAction marks channels without automatic transport.
	RequiresManualAction bool `json:"requires_manual_action,omitempty"`
}

// Process runs the delivery state machine for one item. It never retries
// internally: recoverable failures leave the item pending and the next
// periodic pass re-reads fresh state. Every path returns a structured
// result; no per-item fault aborts the batch.
func (e *Engine) Process(ctx context.Context, item *models.ScheduledMessage) *ProcessResult {
	result := &ProcessResult{Channel: item.Channel, Tag: item.Tag}
	log := e.Logger.WithFields(logrus.Fields{
		"message_id": item.ID,
		"lead_id":    item.LeadID,
		"cadence_id": item.CadenceID,
		"channel":    item.Channel,
		"tag":        item.Tag,
	})

	// 1. Pending guard
	if !item.IsPending() {
		result.DeliveryError = ErrNotPending
		return result
	}

	lead, err := e.Store.Lead(ctx, item.LeadID)
	if err != nil {
		log.WithError(err).Error("lead lookup failed, leaving item pending")
		result.DeliveryError = err.Error()
		return result
	}

	// 2. Eligibility re-check against the lead's current external stage.
	// One excluded stage aborts the whole remaining cadence.
	stage, err := e.Stages.CurrentStage(ctx, item.LeadID)
	if err != nil {
		log.WithError(err).Warn("stage lookup failed, leaving item pending")
		result.DeliveryError = err.Error()
		return result
	}
	if e.Policy.IsExcluded(stage) {
		count, cancelErr := e.Store.CancelAllPendingForLead(ctx, item.LeadID, ErrStageExcluded)
		if cancelErr != nil {
			log.WithError(cancelErr).Error("cascade cancel failed")
		}
		log.WithFields(logrus.Fields{"stage": stage, "cancelled": count}).
			Info("lead stage excluded, cadence cancelled")
		result.DeliveryError = ErrStageExcluded
		return result
	}

	// 3. Content request. No content beats degraded content: failures
	// leave the item pending for a later retry pass.
	text, subject, usedDynamic, genErr := e.buildContent(ctx, item, lead)
	if genErr != "" {
		log.WithField("reason", genErr).Info("content unavailable, item stays pending")
		result.DeliveryError = genErr
		return result
	}
	result.UsedDynamic = usedDynamic

	// 4. Safety substitution
	text = e.substitute(text, lead)
	subject = e.substitute(subject, lead)
	leftover := unfilledPlaceholder(text)
	if leftover == "" {
		leftover = unfilledPlaceholder(subject)
	}
	if leftover != "" {
		now := time.Now().UTC()
		if err := e.Store.MarkFailed(ctx, item.ID, ErrUnfilledTemplate+": "+leftover, now); err != nil {
			log.WithError(err).Error("mark failed errored")
		}
		e.report(ErrUnfilledTemplate, item, leftover)
		result.DeliveryError = ErrUnfilledTemplate
		return result
	}
	result.Text = text

	// 5. Dispatch
	if !autoChannels[item.Channel] {
		now := time.Now().UTC()
		if err := e.Store.MarkSent(ctx, item.ID, now); err != nil {
			log.WithError(err).Error("mark sent errored")
		}
		result.Success = true
		result.RequiresManualAction = true
		return result
	}

	if e.SendCap != nil {
		allowed, capErr := e.SendCap.Allow(ctx, item.TenantID)
		if capErr != nil {
			log.WithError(capErr).Warn("send cap check errored")
		}
		if !allowed {
			log.Info("tenant daily cap reached, item stays pending")
			result.DeliveryError = ErrDailyCapReached
			return result
		}
	}

	sendRes := e.Transport.Send(ctx, item.Channel, lead, text, subject)

	// 6. Outcome
	now := time.Now().UTC()
	if sendRes.Success {
		if err := e.Store.MarkSent(ctx, item.ID, now); err != nil {
			log.WithError(err).Error("mark sent errored")
		}
		log.Info("message delivered")
		result.Success = true
		return result
	}

	result.DeliveryError = sendRes.Error
	if isTransient(sendRes) {
		log.WithField("error", sendRes.Error).Warn("transient transport failure, item stays pending")
		return result
	}

	if err := e.Store.MarkFailed(ctx, item.ID, sendRes.Error, now); err != nil {
		log.WithError(err).Error("mark failed errored")
	}
	e.report("transport_failure", item, sendRes.Error)
	log.WithField("error", sendRes.Error).Error("permanent transport failure")
	return result
}

// buildContent asks the generator for the item's copy. The returned string
// code is empty on success.
func (e *Engine) buildContent(ctx context.Context, item *models.ScheduledMessage, lead *models.Lead) (text, subject string, usedDynamic bool, code string) {
	if e.Generator == nil {
		return "", "", false, ErrAINotAvailable
	}

	history, err := e.Store.Conversations(ctx, item.LeadID, 20)
	if err != nil {
		history = nil
	}

	gen := e.Generator.Generate(ctx, GenerationRequest{
		Tag:         sequence.MessageTag(item.Tag),
		Channel:     item.Channel,
		Lead:        lead,
		History:     history,
		SequenceDay: sequenceDay(item, lead),
	})
	if !gen.Succeeded || strings.Contains(gen.Text, generationFailureMarker) {
		return "", "", false, ErrAIGenerationFailed
	}
	return gen.Text, gen.Subject, sequence.MessageTag(item.Tag).IsDynamic(), ""
}

// sequenceDay derives the display day from the item's recorded send time
// rather than a hand-maintained ordinal lookup, so it cannot drift when
// step counts change.
func sequenceDay(item *models.ScheduledMessage, lead *models.Lead) int {
	loc := timewindow.Location(lead.Timezone)
	days := int(item.SendAt.In(loc).Sub(item.CreatedAt.In(loc)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// substitute fills known placeholders whose values are on file. Unknown
// tokens and tokens with no value are left in place for the safety check.
func (e *Engine) substitute(text string, lead *models.Lead) string {
	if text == "" {
		return text
	}
	pairs := make([]string, 0, 10)
	for token, value := range map[string]string{
		"{first_name}":    lead.FirstName,
		"{last_name}":     lead.LastName,
		"{company}":       lead.Company,
		"{sender_name}":   e.SenderName,
		"{calendar_link}": e.CalendarLink,
	} {
		if value != "" {
			pairs = append(pairs, token, value)
		}
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// unfilledPlaceholder returns the first must-never-ship placeholder still
// present, or "".
func unfilledPlaceholder(text string) string {
	for _, p := range mustNeverShip {
		if strings.Contains(text, p) {
			return p
		}
	}
	return ""
}

// isTransient prefers the transport's structured kind and falls back to
// substring classification of the error text.
func isTransient(res SendResult) bool {
	switch res.Kind {
	case KindTransient:
		return true
	case KindPermanent:
		return false
	}
	lower := strings.ToLower(res.Error)
	for _, marker := range transientMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// report forwards a terminal failure to sentry when enabled, tagged the
// same way the structured log line is.
func (e *Engine) report(errorType string, item *models.ScheduledMessage, detail string) {
	if !e.ReportErrors {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_type", errorType)
		scope.SetExtra("message_id", item.ID)
		scope.SetExtra("lead_id", item.LeadID)
		scope.SetExtra("cadence_id", item.CadenceID)
		scope.SetExtra("detail", detail)
		sentry.CaptureMessage(errorType + ": " + detail)
	})
}
