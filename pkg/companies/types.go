package companies

import (
	"time"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
)

// Company is a customer (or the operator) organization.
type Company struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	PermanentAddress string    `json:"permanent_address"`
	ContactNo        string    `json:"contact_no"`
	MailAddress      string    `json:"mail_address"`
	IsInternal       bool      `json:"is_internal"`
	IsActive         bool      `json:"is_active"`
	LinkedCompanyIDs []int64   `json:"linked_company_ids"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Location is a company address that projects and tickets refer to.
type Location struct {
	ID           int64     `json:"id"`
	CompanyID    int64     `json:"company_id"`
	LocationName string    `json:"location_name"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Member is a user listed under a company.
type Member struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	RoleName string `json:"role"`
	IsActive bool   `json:"is_active"`
}

// CompanyRequest is the body of POST /companies.
type CompanyRequest struct {
	Name             string `json:"name" validate:"notblank,max=50"`
	PermanentAddress string `json:"permanent_address" validate:"max=255"`
	ContactNo        string `json:"contact_no" validate:"max=20"`
	MailAddress      string `json:"mail_address" validate:"omitempty,email,max=100"`
}

// UpdateCompanyRequest is the body of POST /companies/update.
type UpdateCompanyRequest struct {
	ID int64 `json:"id" validate:"gt=0"`
	CompanyRequest
}

// LinkRequest is the body of POST /companies/link and /companies/unlink.
type LinkRequest struct {
	CompanyID1 int64 `json:"companyId1"`
	CompanyID2 int64 `json:"companyId2"`
}

// Normalize returns the pair ordered (min, max). Links are undirected, so
// both orders name the same link.
func (r LinkRequest) Normalize() (int64, int64, error) {
	if r.CompanyID1 <= 0 || r.CompanyID2 <= 0 {
		return 0, 0, apperr.Validation("Please select two companies")
	}
	if r.CompanyID1 == r.CompanyID2 {
		return 0, 0, apperr.Validation("A company cannot be linked to itself")
	}
	if r.CompanyID1 < r.CompanyID2 {
		return r.CompanyID1, r.CompanyID2, nil
	}
	return r.CompanyID2, r.CompanyID1, nil
}

// LocationRequest is the body of POST /companies/{id}/addresses.
type LocationRequest struct {
	LocationName string `json:"location_name" validate:"notblank,max=100"`
}

// UpdateLocationRequest is the body of POST /companies/addresses/update.
type UpdateLocationRequest struct {
	ID           int64  `json:"id" validate:"gt=0"`
	LocationName string `json:"location_name" validate:"notblank,max=100"`
}

// LocationStatusRequest is the body of POST /companies/addresses/status.
type LocationStatusRequest struct {
	ID     int64 `json:"id" validate:"gt=0"`
	Status int   `json:"status" validate:"oneof=0 1"`
}

// CompanyUsersRequest is the POST form of /companies/users.
type CompanyUsersRequest struct {
	CompanyID int64 `json:"companyId"`
}
