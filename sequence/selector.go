package sequence

import (
	"leadcadence/models"
)

// Lead source tiers. Paid referral sources carry acquisition cost and get
// the extended push; portal and organic sources are known-good and get the
// base sequence; anything else is truncated to the short first-touch
// window.
var paidReferralSources = map[string]bool{
	"referral-exchange": true,
	"lead-marketplace":  true,
	"paid-referral":     true,
	"partner-network":   true,
}

var knownOrganicSources = map[string]bool{
	"portal":  true,
	"website": true,
	"organic": true,
	"manual":  true,
}

// Select maps a trigger to its sequence. New-contact triggers are tiered by
// lead source; every other trigger is a direct catalog lookup. Unknown
// triggers fall back to the generic re-engagement sequence rather than
// erroring.
func Select(trigger TriggerKind, leadSource string) Sequence {
	if trigger == TriggerNewContact {
		return selectNewContact(leadSource)
	}

	seq, ok := catalog[trigger]
	if !ok {
		return reengageSequence
	}
	return seq
}

func selectNewContact(leadSource string) Sequence {
	switch {
	case paidReferralSources[leadSource]:
		return newContactSequence.Append("new_contact_referral", referralExtension...)
	case knownOrganicSources[leadSource]:
		return newContactSequence
	default:
		return newContactSequence.Truncate("new_contact_short", unknownSourceMaxDays)
	}
}

// ClassifyReengagement inspects a lead's latest conversation signals and
// returns the most specific resume trigger. Precedence: scheduling in
// progress, then an unresolved objection, then mid-qualification; with no
// signal the generic re-engagement trigger applies.
func ClassifyReengagement(convos []models.Conversation) TriggerKind {
	var sawObjection, sawQualification bool
	for _, c := range convos {
		switch c.Intent {
		case "scheduling":
			return TriggerResumeScheduling
		case "objection":
			if !c.Resolved {
				sawObjection = true
			}
		case "qualification":
			sawQualification = true
		}
	}
	if sawObjection {
		return TriggerResumeObjection
	}
	if sawQualification {
		return TriggerResumeQualification
	}
	return TriggerReengage
}
