package school

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Digitalguyco/convade-backend/core"
)

// School types
const (
	TypePublic        = "public"
	TypePrivate       = "private"
	TypeCharter       = "charter"
	TypeInternational = "international"
)

// Invitation statuses
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationExpired  = "expired"
	InvitationRevoked  = "revoked"
)

// Registration code statuses
const (
	CodeActive   = "active"
	CodeInactive = "inactive"
	CodeExpired  = "expired"
)

var (
	AllTypes = []string{TypePublic, TypePrivate, TypeCharter, TypeInternational}

	// DefaultInvitationTTL is how long an invitation stays valid.
	DefaultInvitationTTL = 7 * 24 * time.Hour
)

type School struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Code       string `json:"code"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`

	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`

	SchoolType        string    `json:"school_type"`
	Timezone          string    `json:"timezone"`
	EstablishedDate   time.Time `json:"established_date,omitempty"`
	AcademicYearStart time.Time `json:"academic_year_start,omitempty"`
	AcademicYearEnd   time.Time `json:"academic_year_end,omitempty"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewSchool contains information needed to register a new School.
type NewSchool struct {
	Name       string `json:"name" validate:"required"`
	Code       string `json:"code" validate:"required,uppercode,max=20"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`

	Phone   string `json:"phone" validate:"omitempty,e164"`
	Email   string `json:"email" validate:"omitempty,email"`
	Website string `json:"website" validate:"omitempty,url"`

	SchoolType        string    `json:"school_type" validate:"omitempty,schooltype"`
	Timezone          string    `json:"timezone"`
	EstablishedDate   time.Time `json:"established_date"`
	AcademicYearStart time.Time `json:"academic_year_start"`
	AcademicYearEnd   time.Time `json:"academic_year_end"`
}

func (ns *NewSchool) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Code = strings.ToUpper(core.CleanString(ns.Code))
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	if ns.SchoolType == "" {
		ns.SchoolType = TypePublic
	}
	if ns.Timezone == "" {
		ns.Timezone = "UTC"
	}

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckCodeUniqueness(ctx, ns.Code)
}

// UpdateSchool defines what information may be provided to modify an existing School.
type UpdateSchool struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`

	Phone   string `json:"phone" validate:"omitempty,e164"`
	Email   string `json:"email" validate:"omitempty,email"`
	Website string `json:"website" validate:"omitempty,url"`

	SchoolType        string    `json:"school_type" validate:"omitempty,schooltype"`
	Timezone          string    `json:"timezone"`
	AcademicYearStart time.Time `json:"academic_year_start"`
	AcademicYearEnd   time.Time `json:"academic_year_end"`

	IsActive *bool `json:"is_active"`
}

func (us *UpdateSchool) Validate(validate *validator.Validate) error {
	us.Name = core.CleanString(us.Name)
	us.Email = core.CleanString(us.Email, true /* lower */)
	return validate.Struct(us)
}

// Invitation is a single-use, emailed ticket to register an account with a
// preset role at a school. It expires after DefaultInvitationTTL.
type Invitation struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	SchoolID string `json:"school_id"`

	Token  string `json:"-"`
	Status string `json:"status"`

	InvitedByID  string `json:"invited_by_id"`
	AcceptedByID string `json:"accepted_by_id,omitempty"`

	GradeLevel string `json:"grade_level,omitempty"`
	Department string `json:"department,omitempty"`

	CreatedAt  time.Time `json:"created_at"` // UTC
	ExpiresAt  time.Time `json:"expires_at"` // UTC
	AcceptedAt time.Time `json:"accepted_at,omitempty"`
}

// IsValid reports whether the invitation can still be accepted.
func (inv Invitation) IsValid(now time.Time) bool {
	return inv.Status == InvitationPending && inv.ExpiresAt.After(now)
}

// NewInvitation contains information needed to invite someone to a School.
type NewInvitation struct {
	Email      string `json:"email" validate:"required,email"`
	Role       string `json:"role" validate:"required,userrole"`
	SchoolID   string `json:"school_id" validate:"required"`
	GradeLevel string `json:"grade_level"`
	Department string `json:"department"`
}

func (ni *NewInvitation) Validate(validate *validator.Validate) error {
	ni.Email = core.CleanString(ni.Email, true /* lower */)
	return validate.Struct(ni)
}

// RegistrationCode is a shareable school code for student self-registration.
// MaxUses of 0 means unlimited; otherwise the code auto-expires once
// CurrentUses reaches MaxUses.
type RegistrationCode struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	SchoolID string `json:"school_id"`

	Role        string `json:"role"`
	MaxUses     int    `json:"max_uses"`
	CurrentUses int    `json:"current_uses"`

	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at,omitempty"` // UTC; zero = never

	CreatedByID string    `json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"` // UTC

	GradeLevel string `json:"grade_level,omitempty"`
	Department string `json:"department,omitempty"`
}

// IsValid reports whether the code can still be redeemed.
func (rc RegistrationCode) IsValid(now time.Time) bool {
	if rc.Status != CodeActive {
		return false
	}
	if !rc.ExpiresAt.IsZero() && rc.ExpiresAt.Before(now) {
		return false
	}
	if rc.MaxUses > 0 && rc.CurrentUses >= rc.MaxUses {
		return false
	}
	return true
}

// NewRegistrationCode contains information needed to generate a RegistrationCode.
type NewRegistrationCode struct {
	SchoolID   string    `json:"school_id" validate:"required"`
	Role       string    `json:"role" validate:"omitempty,userrole"`
	MaxUses    int       `json:"max_uses" validate:"gte=0"`
	ExpiresAt  time.Time `json:"expires_at"`
	GradeLevel string    `json:"grade_level"`
	Department string    `json:"department"`
}

func (nc *NewRegistrationCode) Validate(validate *validator.Validate) error {
	return validate.Struct(nc)
}

type QueryFilter struct {
	Search     string `query:"search"`
	SchoolType string `query:"school_type"`
	IsActive   *bool  `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.SchoolType == "" && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.SchoolType = core.CleanString(qf.SchoolType, true /* lower */)
}
