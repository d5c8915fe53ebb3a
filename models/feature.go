package models

import (
	"time"

	"gorm.io/gorm"
)

// TenantFeature represents capabilities enabled for a specific tenant.
// Sequence steps gated on a disabled capability are dropped before
// compilation.
type TenantFeature struct {
	gorm.Model
	TenantID  uint       `gorm:"not null;index" json:"tenant_id"`
	Name      string     `gorm:"not null;index" json:"name"`
	Enabled   bool       `gorm:"default:true" json:"enabled"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// FeatureSet is the in-memory view of a tenant's toggles, loaded once per
// compile.
type FeatureSet map[string]bool

// Enabled reports whether the named capability is on. Capabilities never
// seen in the table default to enabled, matching the table's default.
func (fs FeatureSet) Enabled(name string) bool {
	enabled, ok := fs[name]
	if !ok {
		return true
	}
	return enabled
}
