package engine

import (
	"context"

	"leadcadence/models"
	"leadcadence/sequence"
)

// GenerationRequest is handed to the content collaborator for one item.
type GenerationRequest struct {
	Tag     sequence.MessageTag
	Channel string
	Lead    *models.Lead
	History []models.Conversation

	// SequenceDay is the step's day offset from its anchor, derived from
	// the recorded send time rather than a position lookup table.
	SequenceDay int
}

// GenerationResult is the content collaborator's answer. Succeeded=false
// leaves the item pending for a later pass.
type GenerationResult struct {
	Text      string
	Subject   string
	Succeeded bool
}

// ContentGenerator produces the copy for a message tag. Implementations
// live outside this core.
type ContentGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) GenerationResult
}

// ErrorKind is the structured failure classification a transport may
// attach to its result. Transports that cannot classify return KindUnknown
// and the engine falls back to substring matching on the error text.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindTransient
	KindPermanent
)

// SendResult is the transport collaborator's answer for one dispatch.
type SendResult struct {
	Success bool
	Error   string
	Kind    ErrorKind
}

// Transport delivers finished content on a channel. Implementations live
// outside this core.
type Transport interface {
	Send(ctx context.Context, channel string, lead *models.Lead, text, subject string) SendResult
}

// StageOracle reports a lead's current pipeline stage from the external
// CRM.
type StageOracle interface {
	CurrentStage(ctx context.Context, leadID uint) (string, error)
}

// PolicyOracle decides whether a stage excludes a lead from outreach.
type PolicyOracle interface {
	IsExcluded(stage string) bool
}

// StagePolicy is the standard PolicyOracle: a fixed excluded-stage list.
type StagePolicy struct {
	Excluded []string
}

func (p StagePolicy) IsExcluded(stage string) bool {
	for _, s := range p.Excluded {
		if s == stage {
			return true
		}
	}
	return false
}
