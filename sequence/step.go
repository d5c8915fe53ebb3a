// Package sequence holds the closed cadence catalog and the selection and
// skip logic that turns a trigger event into the list of steps to compile.
package sequence

import "time"

// Channel classes a step may carry. Primary and secondary are resolved
// against the lead's preferred channel at compile time; the rest are
// literal.
const (
	ChannelSMS       = "sms"
	ChannelEmail     = "email"
	ChannelCall      = "call"
	ChannelPrimary   = "primary"
	ChannelSecondary = "secondary"
)

// Capability gate names steps may reference. Gates match TenantFeature rows.
const (
	CapabilitySMS          = "sms_outreach"
	CapabilityEmail        = "email_outreach"
	CapabilityCallTasks    = "call_tasks"
	CapabilityCalendarLink = "calendar_booking"
)

// MessageTag is the routing key handed to content generation and the
// discriminant for business rules such as the redundant-question gate.
type MessageTag string

const (
	TagIntro              MessageTag = "intro"
	TagQuickFollowUp      MessageTag = "quick_follow_up"
	TagValueProp          MessageTag = "value_prop"
	TagQualifyBudget      MessageTag = "qualify_budget"
	TagQualifyTimeline    MessageTag = "qualify_timeline"
	TagQualifyAuthority   MessageTag = "qualify_authority"
	TagScheduleAsk        MessageTag = "schedule_ask"
	TagScheduleNudge      MessageTag = "schedule_nudge"
	TagObjectionFollowUp  MessageTag = "objection_follow_up"
	TagCheckIn            MessageTag = "check_in"
	TagCaseStudy          MessageTag = "case_study"
	TagMarketUpdate       MessageTag = "market_update"
	TagNurtureTouch       MessageTag = "nurture_touch"
	TagAnnualReview       MessageTag = "annual_review"
	TagAnnualReviewCall   MessageTag = "annual_review_call"
	TagReengage           MessageTag = "re_engage"
	TagBreakup            MessageTag = "breakup"
)

// tagInfo carries the per-tag metadata consulted by the skip evaluator and
// the execution engine.
type tagInfo struct {
	// QualField names the lead fact this tag asks about; non-empty marks
	// the tag as a qualification question.
	QualField string

	// Dynamic tags get their copy from the content generator per lead;
	// the rest render a stock template.
	Dynamic bool
}

var tagTable = map[MessageTag]tagInfo{
	TagIntro:             {Dynamic: true},
	TagQuickFollowUp:     {Dynamic: true},
	TagValueProp:         {Dynamic: true},
	TagQualifyBudget:     {QualField: "budget", Dynamic: true},
	TagQualifyTimeline:   {QualField: "timeline", Dynamic: true},
	TagQualifyAuthority:  {QualField: "authority", Dynamic: true},
	TagScheduleAsk:       {Dynamic: true},
	TagScheduleNudge:     {Dynamic: true},
	TagObjectionFollowUp: {Dynamic: true},
	TagCheckIn:           {Dynamic: true},
	TagCaseStudy:         {},
	TagMarketUpdate:      {},
	TagNurtureTouch:      {Dynamic: true},
	TagAnnualReview:      {Dynamic: true},
	TagAnnualReviewCall:  {},
	TagReengage:          {Dynamic: true},
	TagBreakup:           {},
}

// QualField returns the lead fact this tag asks about, or "" for
// non-question tags.
func (t MessageTag) QualField() string {
	return tagTable[t].QualField
}

// IsDynamic reports whether the tag's copy comes from per-lead generation.
func (t MessageTag) IsDynamic() bool {
	return tagTable[t].Dynamic
}

// Step is one immutable template instruction inside a sequence.
type Step struct {
	OffsetDays    int
	OffsetMinutes int
	Channel       string
	Tag           MessageTag

	// Capability gates the step on a tenant toggle; empty means ungated.
	Capability string
}

// Offset is the step's delay from the sequence anchor.
func (s Step) Offset() time.Duration {
	return time.Duration(s.OffsetDays)*24*time.Hour + time.Duration(s.OffsetMinutes)*time.Minute
}

// Immediate marks first-touch steps (same day, under an hour out) that are
// exempt from engagement-window nudging and only receive the legal clamp.
func (s Step) Immediate() bool {
	return s.OffsetDays == 0 && s.OffsetMinutes < 60
}

// Sequence is a named, ordered list of steps.
type Sequence struct {
	Name  string
	Steps []Step
}

// Append returns a copy of the sequence with extra steps concatenated.
func (s Sequence) Append(name string, extra ...Step) Sequence {
	steps := make([]Step, 0, len(s.Steps)+len(extra))
	steps = append(steps, s.Steps...)
	steps = append(steps, extra...)
	return Sequence{Name: name, Steps: steps}
}

// Truncate returns the prefix of the sequence whose day offsets do not
// exceed maxDays.
func (s Sequence) Truncate(name string, maxDays int) Sequence {
	steps := make([]Step, 0, len(s.Steps))
	for _, step := range s.Steps {
		if step.OffsetDays > maxDays {
			break
		}
		steps = append(steps, step)
	}
	return Sequence{Name: name, Steps: steps}
}
