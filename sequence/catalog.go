package sequence

// TriggerKind is the event category that starts a cadence.
type TriggerKind string

const (
	TriggerNewContact          TriggerKind = "new_contact"
	TriggerNoResponse          TriggerKind = "no_response"
	TriggerReengage            TriggerKind = "re_engage"
	TriggerResumeQualification TriggerKind = "resume_qualification"
	TriggerResumeScheduling    TriggerKind = "resume_scheduling"
	TriggerResumeObjection     TriggerKind = "resume_objection"
	TriggerNurture             TriggerKind = "nurture"
	TriggerAnnual              TriggerKind = "annual"
)

// The catalog is a closed, immutable configuration table. It is built once
// at init and only ever read; selection-time composition and truncation
// copy step slices rather than mutate them.

// newContactSequence is the intensive first-week push for a fresh lead.
var newContactSequence = Sequence{
	Name: "new_contact",
	Steps: []Step{
		{OffsetDays: 0, OffsetMinutes: 2, Channel: ChannelPrimary, Tag: TagIntro},
		{OffsetDays: 0, OffsetMinutes: 240, Channel: ChannelPrimary, Tag: TagQuickFollowUp},
		{OffsetDays: 1, Channel: ChannelPrimary, Tag: TagQualifyTimeline},
		{OffsetDays: 2, Channel: ChannelSecondary, Tag: TagValueProp, Capability: CapabilityEmail},
		{OffsetDays: 3, Channel: ChannelPrimary, Tag: TagQualifyBudget},
		{OffsetDays: 5, Channel: ChannelPrimary, Tag: TagScheduleAsk, Capability: CapabilityCalendarLink},
		{OffsetDays: 7, Channel: ChannelSecondary, Tag: TagCaseStudy, Capability: CapabilityEmail},
	},
}

// referralExtension is appended for paid-referral sources, which warrant a
// longer tail before handing off to nurture.
var referralExtension = []Step{
	{OffsetDays: 10, Channel: ChannelPrimary, Tag: TagScheduleNudge, Capability: CapabilityCalendarLink},
	{OffsetDays: 14, Channel: ChannelPrimary, Tag: TagCheckIn},
}

// unknownSourceMaxDays truncates the base sequence for sources we cannot
// vouch for; only the first-touch days survive.
const unknownSourceMaxDays = 2

var noResponseSequence = Sequence{
	Name: "no_response",
	Steps: []Step{
		{OffsetDays: 0, OffsetMinutes: 180, Channel: ChannelPrimary, Tag: TagQuickFollowUp},
		{OffsetDays: 2, Channel: ChannelPrimary, Tag: TagValueProp},
		{OffsetDays: 5, Channel: ChannelSecondary, Tag: TagCaseStudy, Capability: CapabilityEmail},
		{OffsetDays: 9, Channel: ChannelPrimary, Tag: TagBreakup},
	},
}

var reengageSequence = Sequence{
	Name: "re_engage",
	Steps: []Step{
		{OffsetDays: 0, OffsetMinutes: 120, Channel: ChannelPrimary, Tag: TagReengage},
		{OffsetDays: 3, Channel: ChannelPrimary, Tag: TagCheckIn},
		{OffsetDays: 7, Channel: ChannelSecondary, Tag: TagMarketUpdate, Capability: CapabilityEmail},
		{OffsetDays: 14, Channel: ChannelPrimary, Tag: TagScheduleAsk, Capability: CapabilityCalendarLink},
	},
}

var resumeQualificationSequence = Sequence{
	Name: "resume_qualification",
	Steps: []Step{
		{OffsetDays: 0, OffsetMinutes: 90, Channel: ChannelPrimary, Tag: TagQualifyBudget},
		{OffsetDays: 2, Channel: ChannelPrimary, Tag: TagQualifyAuthority},
		{OffsetDays: 4, Channel: ChannelPrimary, Tag: TagQualifyTimeline},
		{OffsetDays: 8, Channel: ChannelSecondary, Tag: TagValueProp, Capability: CapabilityEmail},
	},
}

var resumeSchedulingSequence = Sequence{
	Name: "resume_scheduling",
	Steps: []Step{
		{OffsetDays: 0, OffsetMinutes: 60, Channel: ChannelPrimary, Tag: TagScheduleAsk, Capability: CapabilityCalendarLink},
		{OffsetDays: 1, Channel: ChannelPrimary, Tag: TagScheduleNudge},
		{OffsetDays: 4, Channel: ChannelPrimary, Tag: TagCheckIn},
	},
}

var resumeObjectionSequence = Sequence{
	Name: "resume_objection",
	Steps: []Step{
		{OffsetDays: 0, OffsetMinutes: 120, Channel: ChannelPrimary, Tag: TagObjectionFollowUp},
		{OffsetDays: 3, Channel: ChannelSecondary, Tag: TagCaseStudy, Capability: CapabilityEmail},
		{OffsetDays: 7, Channel: ChannelPrimary, Tag: TagCheckIn},
		{OffsetDays: 12, Channel: ChannelPrimary, Tag: TagScheduleAsk, Capability: CapabilityCalendarLink},
	},
}

// nurtureSequence is the long-horizon cadence chained after a new-contact
// push, stretching the relationship over several months.
var nurtureSequence = Sequence{
	Name: "nurture",
	Steps: []Step{
		{OffsetDays: 7, Channel: ChannelPrimary, Tag: TagNurtureTouch},
		{OffsetDays: 21, Channel: ChannelSecondary, Tag: TagMarketUpdate, Capability: CapabilityEmail},
		{OffsetDays: 45, Channel: ChannelPrimary, Tag: TagCheckIn},
		{OffsetDays: 75, Channel: ChannelSecondary, Tag: TagCaseStudy, Capability: CapabilityEmail},
		{OffsetDays: 110, Channel: ChannelPrimary, Tag: TagNurtureTouch},
		{OffsetDays: 150, Channel: ChannelSecondary, Tag: TagMarketUpdate, Capability: CapabilityEmail},
		{OffsetDays: 180, Channel: ChannelPrimary, Tag: TagCheckIn},
	},
}

var annualSequence = Sequence{
	Name: "annual",
	Steps: []Step{
		{OffsetDays: 0, OffsetMinutes: 120, Channel: ChannelPrimary, Tag: TagAnnualReview},
		{OffsetDays: 3, Channel: ChannelCall, Tag: TagAnnualReviewCall, Capability: CapabilityCallTasks},
		{OffsetDays: 10, Channel: ChannelSecondary, Tag: TagMarketUpdate, Capability: CapabilityEmail},
	},
}

var catalog = map[TriggerKind]Sequence{
	TriggerNewContact:          newContactSequence,
	TriggerNoResponse:          noResponseSequence,
	TriggerReengage:            reengageSequence,
	TriggerResumeQualification: resumeQualificationSequence,
	TriggerResumeScheduling:    resumeSchedulingSequence,
	TriggerResumeObjection:     resumeObjectionSequence,
	TriggerNurture:             nurtureSequence,
	TriggerAnnual:              annualSequence,
}

// Nurture exposes the long-horizon sequence for the compiler's chaining
// pass.
func Nurture() Sequence {
	return nurtureSequence
}
