package permissions

import (
	"time"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
)

// UnassignedGroup labels roles whose company name is unknown.
const UnassignedGroup = "Unassigned"

// Role is a named set of grants owned by one company.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	CompanyID   int64     `json:"company_id"`
	CompanyName string    `json:"company_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Option is an id/name pair used for company pickers.
type Option struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SaveRequest is the body of POST /permissions.
type SaveRequest struct {
	CompanyID   int64  `json:"company_id"`
	RoleID      int64  `json:"role_id"`
	Permissions Matrix `json:"permissions"`
}

// Validate checks the selection and that every cell names a known page and
// action with a 0/1 value.
func (r SaveRequest) Validate(c *Catalog) error {
	if r.CompanyID <= 0 || r.RoleID <= 0 {
		return apperr.Validation("Please select a company and a role before saving.")
	}
	for page, row := range r.Permissions {
		if !c.HasPage(page) {
			return apperr.Validation("unknown page %q", page)
		}
		for action, v := range row {
			if !c.HasAction(action) {
				return apperr.Validation("unknown action %q", action)
			}
			if v != 0 && v != 1 {
				return apperr.Validation("permission %s.%s must be 0 or 1", page, action)
			}
		}
	}
	return nil
}

// CreateRoleRequest is the body of POST /roles.
type CreateRoleRequest struct {
	Name      string `json:"name" validate:"notblank,max=100"`
	CompanyID int64  `json:"company_id" validate:"gt=0"`
}

// UpdateRoleRequest is the body of POST /roles/update.
type UpdateRoleRequest struct {
	ID   int64  `json:"id" validate:"gt=0"`
	Name string `json:"name" validate:"notblank,max=100"`
}

// RoleGroup is a set of roles sharing a company label.
type RoleGroup struct {
	Label string `json:"label"`
	Roles []Role `json:"options"`
}

// GroupRoles groups roles by company name in first-seen order. Roles with no
// company name go to UnassignedGroup.
func GroupRoles(roles []Role) []RoleGroup {
	var groups []RoleGroup
	index := make(map[string]int)
	for _, r := range roles {
		label := r.CompanyName
		if label == "" {
			label = UnassignedGroup
		}
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, RoleGroup{Label: label})
		}
		groups[i].Roles = append(groups[i].Roles, r)
	}
	return groups
}

// FilterRoles returns roles owned by companyID.
func FilterRoles(roles []Role, companyID int64) []Role {
	var out []Role
	for _, r := range roles {
		if r.CompanyID == companyID {
			out = append(out, r)
		}
	}
	return out
}
