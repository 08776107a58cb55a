package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Digitalguyco/convade-backend/core"
	"github.com/Digitalguyco/convade-backend/core/school"
)

type schoolRow struct {
	ID                string    `db:"id"`
	Name              string    `db:"name"`
	Code              string    `db:"code"`
	Address           string    `db:"address"`
	City              string    `db:"city"`
	State             string    `db:"state"`
	Country           string    `db:"country"`
	PostalCode        string    `db:"postal_code"`
	PhoneNumber       string    `db:"phone_number"`
	Email             string    `db:"email"`
	Website           string    `db:"website"`
	SchoolType        string    `db:"school_type"`
	Timezone          string    `db:"timezone"`
	EstablishedDate   null.Time `db:"established_date"`
	AcademicYearStart null.Time `db:"academic_year_start"`
	AcademicYearEnd   null.Time `db:"academic_year_end"`
	IsActive          bool      `db:"is_active"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (r schoolRow) toDomain() school.School {
	return school.School{
		ID:                r.ID,
		Name:              r.Name,
		Code:              r.Code,
		Address:           r.Address,
		City:              r.City,
		State:             r.State,
		Country:           r.Country,
		PostalCode:        r.PostalCode,
		Phone:             r.PhoneNumber,
		Email:             r.Email,
		Website:           r.Website,
		SchoolType:        r.SchoolType,
		Timezone:          r.Timezone,
		EstablishedDate:   fromNullTime(r.EstablishedDate),
		AcademicYearStart: fromNullTime(r.AcademicYearStart),
		AcademicYearEnd:   fromNullTime(r.AcademicYearEnd),
		IsActive:          r.IsActive,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

func newSchoolRow(sch school.School) schoolRow {
	return schoolRow{
		ID:                sch.ID,
		Name:              sch.Name,
		Code:              sch.Code,
		Address:           sch.Address,
		City:              sch.City,
		State:             sch.State,
		Country:           sch.Country,
		PostalCode:        sch.PostalCode,
		PhoneNumber:       sch.Phone,
		Email:             sch.Email,
		Website:           sch.Website,
		SchoolType:        sch.SchoolType,
		Timezone:          sch.Timezone,
		EstablishedDate:   nullTime(sch.EstablishedDate),
		AcademicYearStart: nullTime(sch.AcademicYearStart),
		AcademicYearEnd:   nullTime(sch.AcademicYearEnd),
		IsActive:          sch.IsActive,
		CreatedAt:         sch.CreatedAt,
		UpdatedAt:         sch.UpdatedAt,
	}
}

const schoolColumns = `id, name, code, address, city, state, country, postal_code, phone_number,
	email, website, school_type, timezone, established_date, academic_year_start,
	academic_year_end, is_active, created_at, updated_at`

type invitationRow struct {
	ID         string      `db:"id"`
	SchoolID   string      `db:"school_id"`
	Email      string      `db:"email"`
	Role       string      `db:"role"`
	Token      string      `db:"token"`
	Status     string      `db:"status"`
	InvitedBy  null.String `db:"invited_by"`
	AcceptedBy null.String `db:"accepted_by"`
	GradeLevel string      `db:"grade_level"`
	Department string      `db:"department"`
	ExpiresAt  time.Time   `db:"expires_at"`
	AcceptedAt null.Time   `db:"accepted_at"`
	CreatedAt  time.Time   `db:"created_at"`
}

func (r invitationRow) toDomain() school.Invitation {
	return school.Invitation{
		ID:           r.ID,
		Email:        r.Email,
		Role:         r.Role,
		SchoolID:     r.SchoolID,
		Token:        r.Token,
		Status:       r.Status,
		InvitedByID:  r.InvitedBy.String,
		AcceptedByID: r.AcceptedBy.String,
		GradeLevel:   r.GradeLevel,
		Department:   r.Department,
		CreatedAt:    r.CreatedAt.UTC(),
		ExpiresAt:    r.ExpiresAt.UTC(),
		AcceptedAt:   fromNullTime(r.AcceptedAt),
	}
}

func newInvitationRow(inv school.Invitation) invitationRow {
	return invitationRow{
		ID:         inv.ID,
		SchoolID:   inv.SchoolID,
		Email:      inv.Email,
		Role:       inv.Role,
		Token:      inv.Token,
		Status:     inv.Status,
		InvitedBy:  nullString(inv.InvitedByID),
		AcceptedBy: nullString(inv.AcceptedByID),
		GradeLevel: inv.GradeLevel,
		Department: inv.Department,
		ExpiresAt:  inv.ExpiresAt,
		AcceptedAt: nullTime(inv.AcceptedAt),
		CreatedAt:  inv.CreatedAt,
	}
}

const invitationColumns = `id, school_id, email, role, token, status, invited_by, accepted_by,
	grade_level, department, expires_at, accepted_at, created_at`

type regCodeRow struct {
	ID          string      `db:"id"`
	SchoolID    string      `db:"school_id"`
	Code        string      `db:"code"`
	Role        string      `db:"role"`
	Status      string      `db:"status"`
	MaxUses     int         `db:"max_uses"`
	CurrentUses int         `db:"current_uses"`
	ExpiresAt   null.Time   `db:"expires_at"`
	GradeLevel  string      `db:"grade_level"`
	Department  string      `db:"department"`
	CreatedBy   null.String `db:"created_by"`
	CreatedAt   time.Time   `db:"created_at"`
}

func (r regCodeRow) toDomain() school.RegistrationCode {
	return school.RegistrationCode{
		ID:          r.ID,
		Code:        r.Code,
		SchoolID:    r.SchoolID,
		Role:        r.Role,
		MaxUses:     r.MaxUses,
		CurrentUses: r.CurrentUses,
		Status:      r.Status,
		ExpiresAt:   fromNullTime(r.ExpiresAt),
		CreatedByID: r.CreatedBy.String,
		CreatedAt:   r.CreatedAt.UTC(),
		GradeLevel:  r.GradeLevel,
		Department:  r.Department,
	}
}

const regCodeColumns = `id, school_id, code, role, status, max_uses, current_uses, expires_at,
	grade_level, department, created_by, created_at`

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *sqlx.DB) school.Repository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) CheckCodeUniqueness(ctx context.Context, code string) error {
	var count int
	if err := repo.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM schools WHERE code = $1`, code); err != nil {
		return errors.Wrap(err, "checking school code uniqueness")
	}
	if count > 0 {
		return school.ErrCodeExists
	}
	return nil
}

func (repo *schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	if sch.ID == "" {
		sch.ID = uuid.NewString()
	}
	q := `INSERT INTO schools (` + schoolColumns + `) VALUES (
		:id, :name, :code, :address, :city, :state, :country, :postal_code, :phone_number,
		:email, :website, :school_type, :timezone, :established_date, :academic_year_start,
		:academic_year_end, :is_active, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, newSchoolRow(sch)); err != nil {
		return school.School{}, errors.Wrap(err, "creating school")
	}
	return sch, nil
}

func (repo *schoolRepository) QuerySchools(ctx context.Context, filter *school.QueryFilter, ordering []core.DBOrdering) ([]school.School, error) {
	q := `SELECT ` + schoolColumns + ` FROM schools`
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			conds = append(conds, fmt.Sprintf("(name ILIKE %[1]s OR code ILIKE %[1]s OR city ILIKE %[1]s)", p))
		}
		if filter.SchoolType != "" {
			conds = append(conds, "school_type = "+arg(filter.SchoolType))
		}
		if filter.IsActive != nil {
			conds = append(conds, "is_active = "+arg(*filter.IsActive))
		}
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += orderBy(ordering, "name ASC")

	var rows []schoolRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	schools := make([]school.School, 0, len(rows))
	for _, row := range rows {
		schools = append(schools, row.toDomain())
	}
	return schools, nil
}

func (repo *schoolRepository) GetSchoolByID(ctx context.Context, id string) (school.School, error) {
	var row schoolRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+schoolColumns+` FROM schools WHERE id = $1`, id); err != nil {
		if isNoRows(err) {
			return school.School{}, school.ErrNotFound
		}
		return school.School{}, errors.Wrap(err, "getting school")
	}
	return row.toDomain(), nil
}

func (repo *schoolRepository) GetSchoolByCode(ctx context.Context, code string) (school.School, error) {
	var row schoolRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+schoolColumns+` FROM schools WHERE code = $1`, code); err != nil {
		if isNoRows(err) {
			return school.School{}, school.ErrNotFound
		}
		return school.School{}, errors.Wrap(err, "getting school by code")
	}
	return row.toDomain(), nil
}

func (repo *schoolRepository) UpdateSchool(ctx context.Context, sch school.School) (school.School, error) {
	q := `UPDATE schools SET
		name = :name, address = :address, city = :city, state = :state, country = :country,
		postal_code = :postal_code, phone_number = :phone_number, email = :email,
		website = :website, school_type = :school_type, timezone = :timezone,
		established_date = :established_date, academic_year_start = :academic_year_start,
		academic_year_end = :academic_year_end, is_active = :is_active, updated_at = :updated_at
	WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newSchoolRow(sch))
	if err != nil {
		return school.School{}, errors.Wrap(err, "updating school")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return school.School{}, school.ErrNotFound
	}
	return sch, nil
}

func (repo *schoolRepository) DeleteSchoolsByID(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM schools WHERE id = ANY($1)`, stringArray(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting schools")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (repo *schoolRepository) CreateInvitation(ctx context.Context, inv school.Invitation) (school.Invitation, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	q := `INSERT INTO school_invitations (` + invitationColumns + `) VALUES (
		:id, :school_id, :email, :role, :token, :status, :invited_by, :accepted_by,
		:grade_level, :department, :expires_at, :accepted_at, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, newInvitationRow(inv)); err != nil {
		return school.Invitation{}, errors.Wrap(err, "creating invitation")
	}
	return inv, nil
}

func (repo *schoolRepository) GetInvitationByID(ctx context.Context, id string) (school.Invitation, error) {
	var row invitationRow
	q := `SELECT ` + invitationColumns + ` FROM school_invitations WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if isNoRows(err) {
			return school.Invitation{}, school.ErrInvitationNotFound
		}
		return school.Invitation{}, errors.Wrap(err, "getting invitation")
	}
	return row.toDomain(), nil
}

func (repo *schoolRepository) GetInvitationByToken(ctx context.Context, token string) (school.Invitation, error) {
	var row invitationRow
	q := `SELECT ` + invitationColumns + ` FROM school_invitations WHERE token = $1`
	if err := repo.db.GetContext(ctx, &row, q, token); err != nil {
		if isNoRows(err) {
			return school.Invitation{}, school.ErrInvitationNotFound
		}
		return school.Invitation{}, errors.Wrap(err, "getting invitation by token")
	}
	return row.toDomain(), nil
}

func (repo *schoolRepository) PendingInvitationExists(ctx context.Context, email, schoolID string) (bool, error) {
	var count int
	q := `SELECT COUNT(*) FROM school_invitations WHERE email = $1 AND school_id = $2 AND status = $3`
	if err := repo.db.GetContext(ctx, &count, q, email, schoolID, school.InvitationPending); err != nil {
		return false, errors.Wrap(err, "checking pending invitation")
	}
	return count > 0, nil
}

func (repo *schoolRepository) QueryInvitations(ctx context.Context, schoolID, status string) ([]school.Invitation, error) {
	q := `SELECT ` + invitationColumns + ` FROM school_invitations`
	var (
		conds []string
		args  []interface{}
	)
	if schoolID != "" {
		args = append(args, schoolID)
		conds = append(conds, fmt.Sprintf("school_id = $%d", len(args)))
	}
	if status != "" {
		args = append(args, status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC"

	var rows []invitationRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying invitations")
	}
	invs := make([]school.Invitation, 0, len(rows))
	for _, row := range rows {
		invs = append(invs, row.toDomain())
	}
	return invs, nil
}

func (repo *schoolRepository) UpdateInvitation(ctx context.Context, inv school.Invitation) (school.Invitation, error) {
	q := `UPDATE school_invitations SET
		status = :status, accepted_by = :accepted_by, accepted_at = :accepted_at
	WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newInvitationRow(inv))
	if err != nil {
		return school.Invitation{}, errors.Wrap(err, "updating invitation")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return school.Invitation{}, school.ErrInvitationNotFound
	}
	return inv, nil
}

func (repo *schoolRepository) ExpireOverdueInvitations(ctx context.Context, now time.Time) (int, error) {
	q := `UPDATE school_invitations SET status = $1 WHERE status = $2 AND expires_at <= $3`
	res, err := repo.db.ExecContext(ctx, q, school.InvitationExpired, school.InvitationPending, now)
	if err != nil {
		return 0, errors.Wrap(err, "expiring invitations")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (repo *schoolRepository) CreateRegistrationCode(ctx context.Context, rc school.RegistrationCode) (school.RegistrationCode, error) {
	if rc.ID == "" {
		rc.ID = uuid.NewString()
	}
	q := `INSERT INTO school_registration_codes (` + regCodeColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := repo.db.ExecContext(ctx, q,
		rc.ID, rc.SchoolID, rc.Code, rc.Role, rc.Status, rc.MaxUses, rc.CurrentUses,
		nullTime(rc.ExpiresAt), rc.GradeLevel, rc.Department, nullString(rc.CreatedByID), rc.CreatedAt)
	if err != nil {
		return school.RegistrationCode{}, errors.Wrap(err, "creating registration code")
	}
	return rc, nil
}

func (repo *schoolRepository) RegistrationCodeExists(ctx context.Context, code string) (bool, error) {
	var count int
	if err := repo.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM school_registration_codes WHERE code = $1`, code); err != nil {
		return false, errors.Wrap(err, "checking registration code")
	}
	return count > 0, nil
}

func (repo *schoolRepository) GetRegistrationCodeByID(ctx context.Context, id string) (school.RegistrationCode, error) {
	var row regCodeRow
	q := `SELECT ` + regCodeColumns + ` FROM school_registration_codes WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if isNoRows(err) {
			return school.RegistrationCode{}, school.ErrRegCodeNotFound
		}
		return school.RegistrationCode{}, errors.Wrap(err, "getting registration code")
	}
	return row.toDomain(), nil
}

func (repo *schoolRepository) GetRegistrationCodeByCode(ctx context.Context, code string) (school.RegistrationCode, error) {
	var row regCodeRow
	q := `SELECT ` + regCodeColumns + ` FROM school_registration_codes WHERE code = $1`
	if err := repo.db.GetContext(ctx, &row, q, code); err != nil {
		if isNoRows(err) {
			return school.RegistrationCode{}, school.ErrRegCodeNotFound
		}
		return school.RegistrationCode{}, errors.Wrap(err, "getting registration code")
	}
	return row.toDomain(), nil
}

func (repo *schoolRepository) QueryRegistrationCodes(ctx context.Context, schoolID string) ([]school.RegistrationCode, error) {
	q := `SELECT ` + regCodeColumns + ` FROM school_registration_codes`
	var args []interface{}
	if schoolID != "" {
		q += ` WHERE school_id = $1`
		args = append(args, schoolID)
	}
	q += ` ORDER BY created_at DESC`

	var rows []regCodeRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying registration codes")
	}
	codes := make([]school.RegistrationCode, 0, len(rows))
	for _, row := range rows {
		codes = append(codes, row.toDomain())
	}
	return codes, nil
}

func (repo *schoolRepository) UpdateRegistrationCode(ctx context.Context, rc school.RegistrationCode) (school.RegistrationCode, error) {
	q := `UPDATE school_registration_codes SET status = $1, max_uses = $2, expires_at = $3 WHERE id = $4`
	res, err := repo.db.ExecContext(ctx, q, rc.Status, rc.MaxUses, nullTime(rc.ExpiresAt), rc.ID)
	if err != nil {
		return school.RegistrationCode{}, errors.Wrap(err, "updating registration code")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return school.RegistrationCode{}, school.ErrRegCodeNotFound
	}
	return rc, nil
}

// UseRegistrationCode increments current_uses with a guarded UPDATE so the
// last use can only be won once, then expires the code when it hits max_uses.
func (repo *schoolRepository) UseRegistrationCode(ctx context.Context, code string, now time.Time) (school.RegistrationCode, error) {
	q := `UPDATE school_registration_codes SET
		current_uses = current_uses + 1,
		status = CASE WHEN max_uses > 0 AND current_uses + 1 >= max_uses THEN $1 ELSE status END
	WHERE code = $2
		AND status = $3
		AND (expires_at IS NULL OR expires_at > $4)
		AND (max_uses = 0 OR current_uses < max_uses)
	RETURNING ` + regCodeColumns
	var row regCodeRow
	if err := repo.db.GetContext(ctx, &row, q, school.CodeExpired, code, school.CodeActive, now); err != nil {
		if isNoRows(err) {
			return school.RegistrationCode{}, school.ErrRegCodeInvalid
		}
		return school.RegistrationCode{}, errors.Wrap(err, "redeeming registration code")
	}
	return row.toDomain(), nil
}

func (repo *schoolRepository) ReleaseRegistrationCodeUse(ctx context.Context, code string) error {
	q := `UPDATE school_registration_codes SET
		current_uses = GREATEST(current_uses - 1, 0),
		status = CASE WHEN status = $1 THEN $2 ELSE status END
	WHERE code = $3`
	if _, err := repo.db.ExecContext(ctx, q, school.CodeExpired, school.CodeActive, code); err != nil {
		return errors.Wrap(err, "releasing registration code use")
	}
	return nil
}

func (repo *schoolRepository) ExpireOverdueRegistrationCodes(ctx context.Context, now time.Time) (int, error) {
	q := `UPDATE school_registration_codes SET status = $1
		WHERE status = $2 AND expires_at IS NOT NULL AND expires_at <= $3`
	res, err := repo.db.ExecContext(ctx, q, school.CodeExpired, school.CodeActive, now)
	if err != nil {
		return 0, errors.Wrap(err, "expiring registration codes")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
