package school

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/Digitalguyco/convade-backend/core"
	"github.com/Digitalguyco/convade-backend/core/user"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 8

	maxCodeGenAttempts = 10
)

var (
	// errors
	ErrNotFound           = errors.New("school not found")
	ErrCodeExists         = errors.New("a school with this code already exists")
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrInvitationExists   = errors.New("a pending invitation for this email already exists")
	ErrInvitationInvalid  = errors.New("invitation is no longer valid")
	ErrRegCodeNotFound    = errors.New("registration code not found")
	ErrRegCodeInvalid     = errors.New("registration code is no longer valid")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CheckCodeUniqueness(ctx context.Context, code string) error
		CreateSchool(ctx context.Context, sch School) (School, error)
		QuerySchools(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]School, error)
		GetSchoolByID(ctx context.Context, id string) (School, error)
		GetSchoolByCode(ctx context.Context, code string) (School, error)
		UpdateSchool(ctx context.Context, sch School) (School, error)
		DeleteSchoolsByID(ctx context.Context, ids ...string) (int, error)

		CreateInvitation(ctx context.Context, inv Invitation) (Invitation, error)
		GetInvitationByID(ctx context.Context, id string) (Invitation, error)
		GetInvitationByToken(ctx context.Context, token string) (Invitation, error)
		// PendingInvitationExists checks for a pending invitation for email at a school.
		PendingInvitationExists(ctx context.Context, email, schoolID string) (bool, error)
		QueryInvitations(ctx context.Context, schoolID, status string) ([]Invitation, error)
		UpdateInvitation(ctx context.Context, inv Invitation) (Invitation, error)
		// ExpireOverdueInvitations flips all pending invitations past their
		// deadline to expired and returns how many were affected.
		ExpireOverdueInvitations(ctx context.Context, now time.Time) (int, error)

		CreateRegistrationCode(ctx context.Context, rc RegistrationCode) (RegistrationCode, error)
		RegistrationCodeExists(ctx context.Context, code string) (bool, error)
		GetRegistrationCodeByID(ctx context.Context, id string) (RegistrationCode, error)
		GetRegistrationCodeByCode(ctx context.Context, code string) (RegistrationCode, error)
		QueryRegistrationCodes(ctx context.Context, schoolID string) ([]RegistrationCode, error)
		UpdateRegistrationCode(ctx context.Context, rc RegistrationCode) (RegistrationCode, error)
		// UseRegistrationCode atomically increments CurrentUses of a valid code,
		// expiring it when MaxUses is reached. It must never overshoot MaxUses:
		// concurrent redeems of the last use leave exactly one winner.
		// Returns ErrRegCodeInvalid if the code cannot be redeemed.
		UseRegistrationCode(ctx context.Context, code string, now time.Time) (RegistrationCode, error)
		// ReleaseRegistrationCodeUse undoes a redeem after a failed registration.
		ReleaseRegistrationCodeUse(ctx context.Context, code string) error
		// ExpireOverdueRegistrationCodes flips all active codes past their
		// deadline to expired and returns how many were affected.
		ExpireOverdueRegistrationCodes(ctx context.Context, now time.Time) (int, error)
	}

	Service interface {
		CheckCodeUniqueness(ctx context.Context, code string) error
		Create(ctx context.Context, ns NewSchool) (School, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]School, error)
		GetByID(ctx context.Context, id string) (School, error)
		GetByCode(ctx context.Context, code string) (School, error)
		Update(ctx context.Context, id string, us UpdateSchool) (School, error)
		Delete(ctx context.Context, ids ...string) error

		Invite(ctx context.Context, ni NewInvitation, invitedBy user.User) (Invitation, error)
		GetInvitationByToken(ctx context.Context, token string) (Invitation, error)
		QueryInvitations(ctx context.Context, schoolID, status string) ([]Invitation, error)
		RevokeInvitation(ctx context.Context, id string) (Invitation, error)
		// AcceptInvitation registers the invitee. The account's email, role and
		// school always come from the invitation, never from the payload.
		AcceptInvitation(ctx context.Context, token string, nu user.NewUser) (user.User, error)
		ExpireOverdueInvitations(ctx context.Context) (int, error)

		GenerateRegistrationCode(ctx context.Context, nc NewRegistrationCode, createdBy user.User) (RegistrationCode, error)
		ValidateRegistrationCode(ctx context.Context, code string) (RegistrationCode, error)
		QueryRegistrationCodes(ctx context.Context, schoolID string) ([]RegistrationCode, error)
		// RegisterWithCode redeems a registration code and creates the account.
		RegisterWithCode(ctx context.Context, code string, nu user.NewUser) (user.User, error)
		DeactivateRegistrationCode(ctx context.Context, id string) (RegistrationCode, error)
		ExpireOverdueRegistrationCodes(ctx context.Context) (int, error)
	}

	service struct {
		repo    Repository
		usrSvc  user.Service
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service, mailSvc core.EmailService) Service {
	return &service{
		repo:    repo,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
	}
}

func (svc *service) CheckCodeUniqueness(ctx context.Context, code string) error {
	if err := svc.repo.CheckCodeUniqueness(ctx, code); err != nil {
		if err == ErrCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, ns NewSchool) (School, error) {
	now := nowFunc().UTC()
	sch := School{
		Name:              ns.Name,
		Code:              ns.Code,
		Address:           ns.Address,
		City:              ns.City,
		State:             ns.State,
		Country:           ns.Country,
		PostalCode:        ns.PostalCode,
		Phone:             ns.Phone,
		Email:             ns.Email,
		Website:           ns.Website,
		SchoolType:        ns.SchoolType,
		Timezone:          ns.Timezone,
		EstablishedDate:   ns.EstablishedDate,
		AcademicYearStart: ns.AcademicYearStart,
		AcademicYearEnd:   ns.AcademicYearEnd,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return svc.repo.CreateSchool(ctx, sch)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]School, error) {
	return svc.repo.QuerySchools(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchoolByID(ctx, id)
}

func (svc *service) GetByCode(ctx context.Context, code string) (School, error) {
	return svc.repo.GetSchoolByCode(ctx, code)
}

func (svc *service) Update(ctx context.Context, id string, us UpdateSchool) (School, error) {
	sch, err := svc.repo.GetSchoolByID(ctx, id)
	if err != nil {
		return School{}, err
	}

	if us.Name != "" {
		sch.Name = us.Name
	}
	if us.Address != "" {
		sch.Address = us.Address
	}
	if us.City != "" {
		sch.City = us.City
	}
	if us.State != "" {
		sch.State = us.State
	}
	if us.Country != "" {
		sch.Country = us.Country
	}
	if us.PostalCode != "" {
		sch.PostalCode = us.PostalCode
	}
	if us.Phone != "" {
		sch.Phone = us.Phone
	}
	if us.Email != "" {
		sch.Email = us.Email
	}
	if us.Website != "" {
		sch.Website = us.Website
	}
	if us.SchoolType != "" {
		sch.SchoolType = us.SchoolType
	}
	if us.Timezone != "" {
		sch.Timezone = us.Timezone
	}
	if !us.AcademicYearStart.IsZero() {
		sch.AcademicYearStart = us.AcademicYearStart
	}
	if !us.AcademicYearEnd.IsZero() {
		sch.AcademicYearEnd = us.AcademicYearEnd
	}
	if us.IsActive != nil {
		sch.IsActive = *us.IsActive
	}
	sch.UpdatedAt = nowFunc().UTC()

	return svc.repo.UpdateSchool(ctx, sch)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteSchoolsByID(ctx, ids...)
	return err
}

func (svc *service) Invite(ctx context.Context, ni NewInvitation, invitedBy user.User) (Invitation, error) {
	if err := svc.usrSvc.CheckUniqueness(ctx, ni.Email); err != nil {
		return Invitation{}, err
	}

	exists, err := svc.repo.PendingInvitationExists(ctx, ni.Email, ni.SchoolID)
	if err != nil {
		return Invitation{}, err
	}
	if exists {
		return Invitation{}, core.NewValidationError(
			ErrInvitationExists, core.FieldError{Field: "email", Error: ErrInvitationExists.Error()})
	}

	sch, err := svc.repo.GetSchoolByID(ctx, ni.SchoolID)
	if err != nil {
		return Invitation{}, err
	}

	now := nowFunc().UTC()
	inv := Invitation{
		Email:       ni.Email,
		Role:        ni.Role,
		SchoolID:    ni.SchoolID,
		Token:       randomToken(32),
		Status:      InvitationPending,
		InvitedByID: invitedBy.ID,
		GradeLevel:  ni.GradeLevel,
		Department:  ni.Department,
		CreatedAt:   now,
		ExpiresAt:   now.Add(DefaultInvitationTTL),
	}
	inv, err = svc.repo.CreateInvitation(ctx, inv)
	if err != nil {
		return Invitation{}, err
	}
	svc.sendInvitationMail(inv, sch, invitedBy)
	return inv, nil
}

func (svc *service) GetInvitationByToken(ctx context.Context, token string) (Invitation, error) {
	return svc.repo.GetInvitationByToken(ctx, token)
}

func (svc *service) QueryInvitations(ctx context.Context, schoolID, status string) ([]Invitation, error) {
	return svc.repo.QueryInvitations(ctx, schoolID, status)
}

func (svc *service) RevokeInvitation(ctx context.Context, id string) (Invitation, error) {
	inv, err := svc.repo.GetInvitationByID(ctx, id)
	if err != nil {
		return Invitation{}, err
	}
	if inv.Status != InvitationPending {
		return Invitation{}, core.NewValidationError(ErrInvitationInvalid)
	}
	inv.Status = InvitationRevoked
	return svc.repo.UpdateInvitation(ctx, inv)
}

func (svc *service) AcceptInvitation(ctx context.Context, token string, nu user.NewUser) (user.User, error) {
	inv, err := svc.repo.GetInvitationByToken(ctx, token)
	if err != nil {
		if errors.Cause(err) == ErrInvitationNotFound {
			return user.User{}, core.NewValidationError(ErrInvitationInvalid)
		}
		return user.User{}, err
	}
	if !inv.IsValid(nowFunc().UTC()) {
		return user.User{}, core.NewValidationError(ErrInvitationInvalid)
	}

	nu.Email = inv.Email
	nu.Role = inv.Role
	nu.SchoolID = inv.SchoolID
	if nu.GradeLevel == "" {
		nu.GradeLevel = inv.GradeLevel
	}
	if nu.Department == "" {
		nu.Department = inv.Department
	}

	usr, err := svc.usrSvc.Create(ctx, nu)
	if err != nil {
		return user.User{}, err
	}

	inv.Status = InvitationAccepted
	inv.AcceptedByID = usr.ID
	inv.AcceptedAt = nowFunc().UTC()
	if _, err = svc.repo.UpdateInvitation(ctx, inv); err != nil {
		return user.User{}, errors.Wrap(err, "marking invitation accepted")
	}
	return usr, nil
}

func (svc *service) ExpireOverdueInvitations(ctx context.Context) (int, error) {
	return svc.repo.ExpireOverdueInvitations(ctx, nowFunc().UTC())
}

func (svc *service) GenerateRegistrationCode(ctx context.Context, nc NewRegistrationCode, createdBy user.User) (RegistrationCode, error) {
	if nc.Role == "" {
		nc.Role = user.RoleStudent
	}

	code, err := svc.newUniqueCode(ctx)
	if err != nil {
		return RegistrationCode{}, err
	}

	rc := RegistrationCode{
		Code:        code,
		SchoolID:    nc.SchoolID,
		Role:        nc.Role,
		MaxUses:     nc.MaxUses,
		Status:      CodeActive,
		ExpiresAt:   nc.ExpiresAt,
		CreatedByID: createdBy.ID,
		CreatedAt:   nowFunc().UTC(),
		GradeLevel:  nc.GradeLevel,
		Department:  nc.Department,
	}
	return svc.repo.CreateRegistrationCode(ctx, rc)
}

func (svc *service) ValidateRegistrationCode(ctx context.Context, code string) (RegistrationCode, error) {
	rc, err := svc.repo.GetRegistrationCodeByCode(ctx, code)
	if err != nil {
		if errors.Cause(err) == ErrRegCodeNotFound {
			return RegistrationCode{}, core.NewValidationError(ErrRegCodeInvalid)
		}
		return RegistrationCode{}, err
	}
	if !rc.IsValid(nowFunc().UTC()) {
		return RegistrationCode{}, core.NewValidationError(ErrRegCodeInvalid)
	}
	return rc, nil
}

func (svc *service) QueryRegistrationCodes(ctx context.Context, schoolID string) ([]RegistrationCode, error) {
	return svc.repo.QueryRegistrationCodes(ctx, schoolID)
}

func (svc *service) RegisterWithCode(ctx context.Context, code string, nu user.NewUser) (user.User, error) {
	// redeem first so a concurrent last-use race cannot overshoot MaxUses
	rc, err := svc.repo.UseRegistrationCode(ctx, code, nowFunc().UTC())
	if err != nil {
		if errors.Cause(err) == ErrRegCodeNotFound || errors.Cause(err) == ErrRegCodeInvalid {
			return user.User{}, core.NewValidationError(ErrRegCodeInvalid)
		}
		return user.User{}, err
	}

	nu.Role = rc.Role
	nu.SchoolID = rc.SchoolID
	if nu.GradeLevel == "" {
		nu.GradeLevel = rc.GradeLevel
	}
	if nu.Department == "" {
		nu.Department = rc.Department
	}

	usr, err := svc.usrSvc.Create(ctx, nu)
	if err != nil {
		// give the use back; best effort
		_ = svc.repo.ReleaseRegistrationCodeUse(ctx, rc.Code)
		return user.User{}, err
	}
	return usr, nil
}

func (svc *service) DeactivateRegistrationCode(ctx context.Context, id string) (RegistrationCode, error) {
	rc, err := svc.repo.GetRegistrationCodeByID(ctx, id)
	if err != nil {
		return RegistrationCode{}, err
	}
	rc.Status = CodeInactive
	return svc.repo.UpdateRegistrationCode(ctx, rc)
}

func (svc *service) ExpireOverdueRegistrationCodes(ctx context.Context) (int, error) {
	return svc.repo.ExpireOverdueRegistrationCodes(ctx, nowFunc().UTC())
}

// newUniqueCode draws random codes until one is free.
func (svc *service) newUniqueCode(ctx context.Context) (string, error) {
	for i := 0; i < maxCodeGenAttempts; i++ {
		code, err := randomCode(codeLength)
		if err != nil {
			return "", errors.Wrap(err, "generating registration code")
		}
		exists, err := svc.repo.RegistrationCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("could not generate a unique registration code")
}

func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// randomToken returns a URL-safe random token.
func randomToken(nBytes int) string {
	b := make([]byte, nBytes)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (svc *service) sendInvitationMail(inv Invitation, sch School, invitedBy user.User) {
	svc.mailSvc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Address: inv.Email}},
			Subject:      fmt.Sprintf("You have been invited to join %s", sch.Name),
			TemplateName: "invitation",
			TemplateData: struct {
				SchoolName string
				Role       string
				InvitedBy  string
				Token      string
				ExpiresAt  time.Time
			}{sch.Name, inv.Role, invitedBy.FullName(), inv.Token, inv.ExpiresAt},
		},
	)
}
