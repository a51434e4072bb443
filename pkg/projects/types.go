package projects

import (
	"time"

	"github.com/platinummonkey/helpdesk/pkg/httputil"
)

// Project lifecycle labels.
const (
	StatusActive    = "Active"
	StatusOnHold    = "On Hold"
	StatusCompleted = "Completed"
)

// Project groups tickets for one company across one or more locations.
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	CompanyID   int64     `json:"company_id"`
	CompanyName string    `json:"company_name"`
	LocationIDs []int64   `json:"location_ids"`
	PMID        int64     `json:"pm_id"`
	PMName      string    `json:"pm_name"`
	Status      string    `json:"status"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AssignedUser is a user assigned to a project.
type AssignedUser struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	AssignedAt time.Time `json:"assigned_at"`
}

// ProjectRequest is the body of POST /projects. LocationIDs accepts the
// comma-joined form sent by the web client.
type ProjectRequest struct {
	Name        string          `json:"name" validate:"notblank,max=100"`
	CompanyID   int64           `json:"companyId" validate:"gt=0"`
	LocationIDs httputil.IDList `json:"locationId" validate:"min=1"`
	PMID        int64           `json:"pmId" validate:"gt=0"`
	Status      string          `json:"status" validate:"omitempty,oneof='Active' 'On Hold' 'Completed'"`
}

// UpdateProjectRequest is the body of POST /projects/update.
type UpdateProjectRequest struct {
	ID int64 `json:"id" validate:"gt=0"`
	ProjectRequest
}

// AssignmentRequest is the body of POST /projects/assign and
// /projects/unassign.
type AssignmentRequest struct {
	UserID    int64 `json:"userId" validate:"gt=0"`
	ProjectID int64 `json:"projectId" validate:"gt=0"`
}

// Filter narrows project listings.
type Filter struct {
	// ViewerCompanyID limits results to what a member of that company may
	// see. Members of the internal company see every project.
	ViewerCompanyID int64
	CompanyID       int64
	ActiveOnly      bool
}
