package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/Digitalguyco/convade-backend/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Account statuses
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusSuspended = "suspended"
)

var (
	AllRoles    = []string{RoleStudent, RoleTeacher, RoleAdmin}
	AllStatuses = []string{StatusActive, StatusInactive, StatusSuspended}

	rolePriorities = map[string]int{
		RoleAdmin:   30,
		RoleTeacher: 20,
		RoleStudent: 10,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	Status    string `json:"status"`

	SchoolID    string `json:"school_id,omitempty"`
	GradeLevel  string `json:"grade_level,omitempty"`
	Department  string `json:"department,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Bio         string `json:"bio,omitempty"`

	IsEmailVerified        bool   `json:"is_email_verified"`
	EmailVerificationToken string `json:"-"`
	PasswordHash           []byte `json:"-"`

	EmailNotifications bool `json:"email_notifications"`

	LastLogin    time.Time `json:"last_login"`    // UTC
	LastActivity time.Time `json:"last_activity"` // UTC
	CreatedAt    time.Time `json:"created_at"`    // UTC
	UpdatedAt    time.Time `json:"updated_at"`    // UTC
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u User) IsStudent() bool { return u.Role == RoleStudent }
func (u User) IsActive() bool  { return u.Status == StatusActive }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Email           string `json:"email" validate:"required,email"`
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	Role            string `json:"role" validate:"omitempty,userrole"`
	SchoolID        string `json:"school_id"`
	GradeLevel      string `json:"grade_level"`
	Department      string `json:"department"`
	PhoneNumber     string `json:"phone_number" validate:"omitempty,e164"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	if nu.Role == "" {
		nu.Role = RoleStudent
	}

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Email           string `json:"email" validate:"omitempty,email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Role            string `json:"role" validate:"omitempty,userrole"`
	Status          string `json:"status" validate:"omitempty,userstatus"`
	SchoolID        string `json:"school_id"`
	GradeLevel      string `json:"grade_level"`
	Department      string `json:"department"`
	PhoneNumber     string `json:"phone_number" validate:"omitempty,e164"`
	Bio             string `json:"bio"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(ctx context.Context, validate *validator.Validate, svc Service, origUsr User) error {
	email := core.CleanString(uu.Email, true /* lower */)
	if email == "" {
		email = origUsr.Email
	}
	uu.Email = email

	if fname := core.CleanString(uu.FirstName); fname != "" {
		uu.FirstName = fname
	} else {
		uu.FirstName = origUsr.FirstName
	}
	if lname := core.CleanString(uu.LastName); lname != "" {
		uu.LastName = lname
	} else {
		uu.LastName = origUsr.LastName
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Role        string    `query:"role"`
	Status      string    `query:"status"`
	SchoolID    string    `query:"school_id"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Role == "" && qf.Status == "" && qf.SchoolID == "" &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}
