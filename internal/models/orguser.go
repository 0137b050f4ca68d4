package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Permission names one capability flag.
type Permission string

const (
	PermScan                  Permission = "canScan"
	PermViewServiceList       Permission = "canViewServiceList"
	PermViewClients           Permission = "canViewClients"
	PermViewScheduledServices Permission = "canViewScheduledServices"
	PermViewHistory           Permission = "canViewHistory"
	PermViewSettings          Permission = "canViewSettings"
	PermManageUsers           Permission = "canManageUsers"
)

// PermissionSet is the fixed collection of capability flags carried by a
// user record. The stored flags, not a role string, are the source of truth
// for authorization checks.
type PermissionSet struct {
	CanScan                  bool `json:"canScan" bson:"canScan"`
	CanViewServiceList       bool `json:"canViewServiceList" bson:"canViewServiceList"`
	CanViewClients           bool `json:"canViewClients" bson:"canViewClients"`
	CanViewScheduledServices bool `json:"canViewScheduledServices" bson:"canViewScheduledServices"`
	CanViewHistory           bool `json:"canViewHistory" bson:"canViewHistory"`
	CanViewSettings          bool `json:"canViewSettings" bson:"canViewSettings"`
	CanManageUsers           bool `json:"canManageUsers" bson:"canManageUsers"`
}

// FullPermissions returns a set with every flag granted.
func FullPermissions() PermissionSet {
	return PermissionSet{
		CanScan:                  true,
		CanViewServiceList:       true,
		CanViewClients:           true,
		CanViewScheduledServices: true,
		CanViewHistory:           true,
		CanViewSettings:          true,
		CanManageUsers:           true,
	}
}

// Allows checks one flag. CanManageUsers is the super-admin flag: a holder
// is treated as having every other flag regardless of the stored values.
func (p PermissionSet) Allows(perm Permission) bool {
	if p.CanManageUsers {
		return true
	}
	switch perm {
	case PermScan:
		return p.CanScan
	case PermViewServiceList:
		return p.CanViewServiceList
	case PermViewClients:
		return p.CanViewClients
	case PermViewScheduledServices:
		return p.CanViewScheduledServices
	case PermViewHistory:
		return p.CanViewHistory
	case PermViewSettings:
		return p.CanViewSettings
	case PermManageUsers:
		return p.CanManageUsers
	default:
		return false
	}
}

// Role is an optional convenience label. Selecting a role expands to a
// permission set at the moment the user record is written; roles are never
// consulted at check time.
type Role string

const (
	RoleAdministrator Role = "Administrator"
	RoleTechnician    Role = "Technician"
	RoleOffice        Role = "Office"
)

// ExpandRole maps a role to its permission set. Unknown roles expand to no
// permissions.
func ExpandRole(role Role) PermissionSet {
	switch role {
	case RoleAdministrator:
		return FullPermissions()
	case RoleTechnician:
		return PermissionSet{
			CanScan:                  true,
			CanViewServiceList:       true,
			CanViewScheduledServices: true,
			CanViewHistory:           true,
		}
	case RoleOffice:
		return PermissionSet{
			CanViewServiceList:       true,
			CanViewClients:           true,
			CanViewScheduledServices: true,
		}
	default:
		return PermissionSet{}
	}
}

// IsValidRole checks if a role is one of the known labels.
func IsValidRole(role Role) bool {
	switch role {
	case RoleAdministrator, RoleTechnician, RoleOffice:
		return true
	default:
		return false
	}
}

// OrgUser is an organization-scoped user record. Legacy records carry an
// is_admin boolean instead of the structured permission set; Normalize folds
// both shapes into Permissions immediately after fetch so nothing downstream
// branches on which shape was stored.
type OrgUser struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Email          string             `json:"email" bson:"email"`
	OrganizationID string             `json:"organization_id" bson:"organization_id"`
	Permissions    *PermissionSet     `json:"permissions" bson:"permissions,omitempty"`
	LegacyAdmin    *bool              `json:"-" bson:"is_admin,omitempty"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" bson:"updated_at"`
}

// Normalize produces the canonical in-memory permission shape. A legacy
// is_admin=true record is equivalent to holding every permission; a record
// with neither shape has no permissions. A stored CanManageUsers flag wins
// over any inconsistent sibling flags.
func (u *OrgUser) Normalize() {
	switch {
	case u.Permissions == nil && u.LegacyAdmin != nil && *u.LegacyAdmin:
		full := FullPermissions()
		u.Permissions = &full
	case u.Permissions == nil:
		u.Permissions = &PermissionSet{}
	case u.Permissions.CanManageUsers:
		full := FullPermissions()
		u.Permissions = &full
	}
	u.LegacyAdmin = nil
}

// Can checks a capability flag on the normalized record.
func (u *OrgUser) Can(perm Permission) bool {
	if u.Permissions == nil {
		u.Normalize()
	}
	return u.Permissions.Allows(perm)
}
