package sequence

import (
	"leadcadence/models"
)

// SkipCounts reports how many steps each gate dropped, for the compiler's
// aggregate result.
type SkipCounts struct {
	ByCapability  int `json:"by_capability"`
	ByKnownAnswer int `json:"by_known_answer"`
}

// Evaluate filters a sequence's steps through the two pre-compile gates:
// steps whose capability is disabled for the tenant, and qualification
// questions whose answer is already on file for the lead. Dropped steps are
// never persisted. The input slice is not mutated.
func Evaluate(steps []Step, features models.FeatureSet, lead *models.Lead) ([]Step, SkipCounts) {
	var counts SkipCounts
	kept := make([]Step, 0, len(steps))

	for _, step := range steps {
		if step.Capability != "" && !features.Enabled(step.Capability) {
			counts.ByCapability++
			continue
		}
		if field := step.Tag.QualField(); field != "" && factKnown(lead, field) {
			counts.ByKnownAnswer++
			continue
		}
		kept = append(kept, step)
	}

	return kept, counts
}

func factKnown(lead *models.Lead, field string) bool {
	if lead == nil {
		return false
	}
	switch field {
	case "budget":
		return lead.Budget != ""
	case "timeline":
		return lead.Timeline != ""
	case "authority":
		return lead.Authority != ""
	}
	return false
}
