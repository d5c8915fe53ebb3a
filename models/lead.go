package models

import (
	"time"

	"gorm.io/gorm"
)

// Lead represents a single contact being worked by outreach cadences
type Lead struct {
	gorm.Model
	TenantID uint `gorm:"not null;index" json:"tenant_id"`

	Email     string `gorm:"index" json:"email"`
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`

	// Where the lead came from (portal, website, referral-exchange, etc.)
	Source string `json:"source"`

	// Pipeline state, mirrored from the external CRM
	Stage string `gorm:"index" json:"stage"`

	// Channel the lead prefers to be contacted on: sms or email
	PreferredChannel string `gorm:"default:'email'" json:"preferred_channel"`

	// IANA zone name of the lead's locale, e.g. "America/Chicago"
	Timezone string `json:"timezone"`

	// Qualification facts already learned about the lead. A non-empty
	// value means the matching question step is redundant.
	Budget    string `json:"budget"`
	Timeline  string `json:"timeline"`
	Authority string `json:"authority"`

	// Status
	IsOptedOut     bool `gorm:"default:false" json:"is_opted_out"`
	IsDoNotContact bool `gorm:"default:false" json:"is_do_not_contact"`

	LastContact *time.Time `json:"last_contact"`

	// Relations
	Conversations []Conversation `gorm:"foreignKey:LeadID" json:"conversations,omitempty"`
}

// Conversation tracks a single inbound/outbound message on a lead's thread
type Conversation struct {
	gorm.Model
	LeadID uint `gorm:"not null;index" json:"lead_id"`

	Direction string `gorm:"not null" json:"direction"` // inbound, outbound
	Channel   string `json:"channel"`                   // sms, email
	Body      string `gorm:"type:text" json:"body"`

	// Classified intent of the latest exchange: scheduling, objection,
	// qualification, question, positive
	Intent string `gorm:"index" json:"intent"`

	// For objections, whether a later reply resolved it
	Resolved bool `gorm:"default:false" json:"resolved"`

	// Relations
	Lead Lead `json:"-"`
}
