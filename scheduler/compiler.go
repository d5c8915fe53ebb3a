// Package scheduler compiles a selected sequence into concrete persisted
// ScheduledMessage rows, applying the legal clamp, the engagement-window
// nudge and channel resolution per step.
package scheduler

import (
	"context"
	"time"

	"leadcadence/models"
	"leadcadence/sequence"
	"leadcadence/store"
	"leadcadence/timewindow"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Compiler turns surviving steps into a persisted batch.
type Compiler struct {
	Store  store.Store
	Logger *logrus.Logger

	// Windows are the preferred engagement sub-windows; empty disables the
	// nudge.
	Windows []timewindow.Window

	// NurtureDelayDays offsets the chained nurture anchor from the
	// original new-contact anchor.
	NurtureDelayDays int

	// StartDelay pushes the anchor out when the caller does not supply
	// one. New-contact triggers ignore it and anchor at now.
	StartDelay time.Duration
}

func NewCompiler(st store.Store, logger *logrus.Logger) *Compiler {
	return &Compiler{
		Store:            st,
		Logger:           logger,
		Windows:          timewindow.DefaultWindows,
		NurtureDelayDays: 7,
	}
}

// CompileRequest carries one trigger event for one lead.
type CompileRequest struct {
	Lead    *models.Lead
	Trigger sequence.TriggerKind

	// Anchor is the sequence start reference. New-contact triggers ignore
	// it and anchor at now, preserving first-touch immediacy.
	Anchor time.Time

	// CadenceID groups this batch with an existing run; empty starts a new
	// run.
	CadenceID string

	Features models.FeatureSet
}

// CompileResult is the aggregate outcome reported to the caller.
type CompileResult struct {
	CadenceID            string `json:"cadence_id"`
	Scheduled            int    `json:"scheduled"`
	SkippedByCapability  int    `json:"skipped_by_capability"`
	SkippedByKnownAnswer int    `json:"skipped_by_known_answer"`

	Items []*models.ScheduledMessage `json:"-"`
}

// Compile selects, filters, times and persists the batch for a trigger.
// New-contact batches additionally chain the long-horizon nurture sequence
// onto the same cadence so both cancel as one unit.
func (c *Compiler) Compile(ctx context.Context, req CompileRequest) (*CompileResult, error) {
	seq := sequence.Select(req.Trigger, req.Lead.Source)

	anchor := req.Anchor
	if anchor.IsZero() {
		anchor = time.Now().UTC().Add(c.StartDelay)
	}
	if req.Trigger == sequence.TriggerNewContact {
		// First touch is always immediate, whatever the start delay says
		anchor = time.Now().UTC()
	}

	result, err := c.compileBatch(ctx, req, seq, anchor)
	if err != nil {
		return nil, err
	}

	if req.Trigger == sequence.TriggerNewContact {
		chainReq := req
		chainReq.Trigger = sequence.TriggerNurture
		chainReq.CadenceID = result.CadenceID

		chained, err := c.compileBatch(ctx, chainReq, sequence.Nurture(),
			anchor.AddDate(0, 0, c.NurtureDelayDays))
		if err != nil {
			return nil, err
		}
		result.Scheduled += chained.Scheduled
		result.SkippedByCapability += chained.SkippedByCapability
		result.SkippedByKnownAnswer += chained.SkippedByKnownAnswer
		result.Items = append(result.Items, chained.Items...)
	}

	c.Logger.WithFields(logrus.Fields{
		"lead_id":            req.Lead.ID,
		"trigger":            req.Trigger,
		"cadence_id":         result.CadenceID,
		"scheduled":          result.Scheduled,
		"skipped_capability": result.SkippedByCapability,
		"skipped_known":      result.SkippedByKnownAnswer,
	}).Info("cadence compiled")

	return result, nil
}

func (c *Compiler) compileBatch(ctx context.Context, req CompileRequest, seq sequence.Sequence, anchor time.Time) (*CompileResult, error) {
	steps, skips := sequence.Evaluate(seq.Steps, req.Features, req.Lead)

	cadenceID := req.CadenceID
	if cadenceID == "" {
		cadenceID = uuid.New().String()
	}

	startIndex, err := c.Store.NextStepIndex(ctx, cadenceID)
	if err != nil {
		return nil, err
	}

	tz := req.Lead.Timezone
	items := make([]*models.ScheduledMessage, 0, len(steps))
	for i, step := range steps {
		sendAt := anchor.Add(step.Offset())

		if step.Immediate() {
			// First-touch steps get the legal clamp only, never the
			// window nudge
			if ok, next := timewindow.IsAllowedNow(sendAt, tz); !ok {
				sendAt = next
			}
		} else {
			sendAt = timewindow.Legalize(sendAt, tz)
			sendAt = timewindow.PreferWindow(sendAt, tz, c.Windows)
		}

		items = append(items, &models.ScheduledMessage{
			LeadID:    req.Lead.ID,
			TenantID:  req.Lead.TenantID,
			CadenceID: cadenceID,
			StepIndex: startIndex + i,
			SendAt:    sendAt,
			Channel:   resolveChannel(step.Channel, req.Lead.PreferredChannel),
			Tag:       string(step.Tag),
			Status:    models.MessageStatusPending,
		})
	}

	if err := c.Store.InsertMany(ctx, items); err != nil {
		return nil, err
	}

	return &CompileResult{
		CadenceID:            cadenceID,
		Scheduled:            len(items),
		SkippedByCapability:  skips.ByCapability,
		SkippedByKnownAnswer: skips.ByKnownAnswer,
		Items:                items,
	}, nil
}

// resolveChannel maps the primary/secondary channel classes onto the lead's
// preference; literal channels pass through. Secondary is the other of
// {sms, email}.
func resolveChannel(class, preferred string) string {
	if preferred != sequence.ChannelSMS && preferred != sequence.ChannelEmail {
		preferred = sequence.ChannelEmail
	}
	switch class {
	case sequence.ChannelPrimary:
		return preferred
	case sequence.ChannelSecondary:
		if preferred == sequence.ChannelSMS {
			return sequence.ChannelEmail
		}
		return sequence.ChannelSMS
	default:
		return class
	}
}
