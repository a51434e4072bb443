package users

import (
	"time"

	"github.com/platinummonkey/helpdesk/pkg/httputil"
	"github.com/platinummonkey/helpdesk/pkg/permissions"
)

// User is a helpdesk account.
type User struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	RoleID      int64     `json:"role_id"`
	RoleName    string    `json:"role"`
	CompanyID   int64     `json:"company_id"`
	CompanyName string    `json:"company_name"`
	IsActive    bool      `json:"is_active"`
	ProjectIDs  []int64   `json:"project_ids"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	passwordHash string
}

// Profile is the signed-in user returned by login.
type Profile struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	RoleID      int64  `json:"role_id"`
	CompanyID   int64  `json:"company_id"`
	CompanyName string `json:"company_name"`
}

func (u *User) profile() Profile {
	return Profile{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.RoleName,
		RoleID:      u.RoleID,
		CompanyID:   u.CompanyID,
		CompanyName: u.CompanyName,
	}
}

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Name       string          `json:"name" validate:"notblank,min=3,max=50"`
	Email      string          `json:"email" validate:"required,email,max=50"`
	Password   string          `json:"password" validate:"required,min=6,max=20,password"`
	RoleID     int64           `json:"role" validate:"gt=0"`
	CompanyID  int64           `json:"companyId" validate:"gt=0"`
	ProjectIDs httputil.IDList `json:"projectIds" validate:"max=10"`
}

// UpdateRequest is the body of POST /auth/update. An empty password keeps
// the current one.
type UpdateRequest struct {
	ID         int64           `json:"id" validate:"gt=0"`
	Name       string          `json:"name" validate:"notblank,min=3,max=50"`
	Email      string          `json:"email" validate:"required,email,max=50"`
	Password   string          `json:"password" validate:"omitempty,min=6,max=20,password"`
	RoleID     int64           `json:"role" validate:"gt=0"`
	CompanyID  int64           `json:"companyId" validate:"gt=0"`
	ProjectIDs httputil.IDList `json:"projectIds" validate:"max=10"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token       string             `json:"token"`
	User        Profile            `json:"user"`
	Permissions permissions.Matrix `json:"permissions"`
}

// ForgotPasswordRequest is the body of POST /auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest is the body of POST /auth/reset-password.
type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=6,max=20,password"`
}

// Filter narrows user listings.
type Filter struct {
	ViewerCompanyID int64
	CompanyID       int64
}
