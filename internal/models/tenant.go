package models

import (
	"fmt"

	"gorm.io/gorm"
)

// Tenant kind constants
const (
	TenantKindUser = "user"
	TenantKindOrg  = "org"
)

// Tenant is a user or organization scope. Exactly one of UserID/OrgID is set;
// every watched channel, category, bucket and content item hangs off a tenant.
type Tenant struct {
	gorm.Model
	UserID *string `gorm:"uniqueIndex:idx_tenants_user,where:user_id IS NOT NULL"`
	OrgID  *string `gorm:"uniqueIndex:idx_tenants_org,where:org_id IS NOT NULL"`
	Name   string  `gorm:"not null;default:''"`

	// Associations
	Preferences     *Preferences       `gorm:"constraint:OnDelete:CASCADE;"`
	WatchedChannels []WatchedChannel   `gorm:"constraint:OnDelete:CASCADE;"`
	Categories      []FeedbackCategory `gorm:"constraint:OnDelete:CASCADE;"`
	Products        []ProductCategory  `gorm:"constraint:OnDelete:CASCADE;"`
	Buckets         []Bucket           `gorm:"constraint:OnDelete:CASCADE;"`
}

// BeforeSave enforces the mutually exclusive identity: exactly one of
// UserID/OrgID must be set, never both, never neither.
func (t *Tenant) BeforeSave(tx *gorm.DB) error {
	hasUser := t.UserID != nil && *t.UserID != ""
	hasOrg := t.OrgID != nil && *t.OrgID != ""

	if hasUser == hasOrg {
		return fmt.Errorf("tenant must have exactly one of user_id or org_id set")
	}
	return nil
}

// Kind returns "user" or "org" depending on which identity is set.
func (t *Tenant) Kind() string {
	if t.UserID != nil && *t.UserID != "" {
		return TenantKindUser
	}
	return TenantKindOrg
}

// SubjectID returns the external identity the tenant is scoped to.
func (t *Tenant) SubjectID() string {
	if t.UserID != nil && *t.UserID != "" {
		return *t.UserID
	}
	if t.OrgID != nil {
		return *t.OrgID
	}
	return ""
}

// Key returns the stable "<kind>:<id>" identity used for job keys and logging.
func (t *Tenant) Key() string {
	return fmt.Sprintf("%s:%d", t.Kind(), t.ID)
}
