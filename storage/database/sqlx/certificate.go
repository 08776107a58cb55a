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

	"github.com/Digitalguyco/convade-backend/core/certificate"
)

type certificateRow struct {
	ID     string `db:"id"`
	Number string `db:"certificate_number"`

	RecipientID string `db:"recipient_id"`
	Type        string `db:"certificate_type"`
	Status      string `db:"status"`

	Title       string `db:"title"`
	Description string `db:"description"`

	CourseID     null.String `db:"course_id"`
	EnrollmentID null.String `db:"enrollment_id"`

	CompletionDate null.Time `db:"completion_date"`
	FinalGrade     float64   `db:"final_grade"`

	IssuerName      string `db:"issuer_name"`
	InstitutionName string `db:"institution_name"`

	IssueDate  time.Time `db:"issue_date"`
	ExpiryDate null.Time `db:"expiry_date"`

	VerificationCode string `db:"verification_code"`

	IsPublic     bool `db:"is_public"`
	AllowSharing bool `db:"allow_sharing"`

	DownloadCount  int       `db:"download_count"`
	LastDownloaded null.Time `db:"last_downloaded"`

	IssuedByID       null.String `db:"issued_by_id"`
	RevokedByID      null.String `db:"revoked_by_id"`
	RevokedAt        null.Time   `db:"revoked_at"`
	RevocationReason string      `db:"revocation_reason"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r certificateRow) toDomain() certificate.Certificate {
	return certificate.Certificate{
		ID:     r.ID,
		Number: r.Number,

		RecipientID: r.RecipientID,
		Type:        r.Type,
		Status:      r.Status,

		Title:       r.Title,
		Description: r.Description,

		CourseID:     r.CourseID.String,
		EnrollmentID: r.EnrollmentID.String,

		CompletionDate: fromNullTime(r.CompletionDate),
		FinalGrade:     r.FinalGrade,

		IssuerName:      r.IssuerName,
		InstitutionName: r.InstitutionName,

		IssueDate:  r.IssueDate.UTC(),
		ExpiryDate: fromNullTime(r.ExpiryDate),

		VerificationCode: r.VerificationCode,

		IsPublic:     r.IsPublic,
		AllowSharing: r.AllowSharing,

		DownloadCount:  r.DownloadCount,
		LastDownloaded: fromNullTime(r.LastDownloaded),

		IssuedByID:       r.IssuedByID.String,
		RevokedByID:      r.RevokedByID.String,
		RevokedAt:        fromNullTime(r.RevokedAt),
		RevocationReason: r.RevocationReason,

		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func newCertificateRow(cert certificate.Certificate) certificateRow {
	return certificateRow{
		ID:     cert.ID,
		Number: cert.Number,

		RecipientID: cert.RecipientID,
		Type:        cert.Type,
		Status:      cert.Status,

		Title:       cert.Title,
		Description: cert.Description,

		CourseID:     nullString(cert.CourseID),
		EnrollmentID: nullString(cert.EnrollmentID),

		CompletionDate: nullTime(cert.CompletionDate),
		FinalGrade:     cert.FinalGrade,

		IssuerName:      cert.IssuerName,
		InstitutionName: cert.InstitutionName,

		IssueDate:  cert.IssueDate,
		ExpiryDate: nullTime(cert.ExpiryDate),

		VerificationCode: cert.VerificationCode,

		IsPublic:     cert.IsPublic,
		AllowSharing: cert.AllowSharing,

		DownloadCount:  cert.DownloadCount,
		LastDownloaded: nullTime(cert.LastDownloaded),

		IssuedByID:       nullString(cert.IssuedByID),
		RevokedByID:      nullString(cert.RevokedByID),
		RevokedAt:        nullTime(cert.RevokedAt),
		RevocationReason: cert.RevocationReason,

		CreatedAt: cert.CreatedAt,
		UpdatedAt: cert.UpdatedAt,
	}
}

const certificateColumns = `id, certificate_number, recipient_id, certificate_type, status,
	title, description, course_id, enrollment_id, completion_date, final_grade, issuer_name,
	institution_name, issue_date, expiry_date, verification_code, is_public, allow_sharing,
	download_count, last_downloaded, issued_by_id, revoked_by_id, revoked_at,
	revocation_reason, created_at, updated_at`

type certificateRepository struct {
	db *sqlx.DB
}

var _ certificate.Repository = (*certificateRepository)(nil)

func NewCertificateRepository(db *sqlx.DB) certificate.Repository {
	return &certificateRepository{db: db}
}

func (repo *certificateRepository) CreateCertificate(ctx context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	q := `INSERT INTO certificates (` + certificateColumns + `) VALUES (
		:id, :certificate_number, :recipient_id, :certificate_type, :status, :title,
		:description, :course_id, :enrollment_id, :completion_date, :final_grade, :issuer_name,
		:institution_name, :issue_date, :expiry_date, :verification_code, :is_public,
		:allow_sharing, :download_count, :last_downloaded, :issued_by_id, :revoked_by_id,
		:revoked_at, :revocation_reason, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, newCertificateRow(cert)); err != nil {
		return certificate.Certificate{}, errors.Wrap(err, "creating certificate")
	}
	return cert, nil
}

func (repo *certificateRepository) getBy(ctx context.Context, column string, value interface{}) (certificate.Certificate, error) {
	var row certificateRow
	q := `SELECT ` + certificateColumns + ` FROM certificates WHERE ` + column + ` = $1`
	if err := repo.db.GetContext(ctx, &row, q, value); err != nil {
		if isNoRows(err) {
			return certificate.Certificate{}, certificate.ErrNotFound
		}
		return certificate.Certificate{}, errors.Wrap(err, "getting certificate")
	}
	return row.toDomain(), nil
}

func (repo *certificateRepository) GetCertificateByID(ctx context.Context, id string) (certificate.Certificate, error) {
	return repo.getBy(ctx, "id", id)
}

func (repo *certificateRepository) GetCertificateByNumber(ctx context.Context, number string) (certificate.Certificate, error) {
	return repo.getBy(ctx, "certificate_number", number)
}

func (repo *certificateRepository) GetCertificateByVerificationCode(ctx context.Context, code string) (certificate.Certificate, error) {
	return repo.getBy(ctx, "verification_code", code)
}

func (repo *certificateRepository) GetCertificateByEnrollment(ctx context.Context, enrollmentID string) (certificate.Certificate, error) {
	return repo.getBy(ctx, "enrollment_id", enrollmentID)
}

func (repo *certificateRepository) QueryCertificates(ctx context.Context, recipientID, courseID, status string) ([]certificate.Certificate, error) {
	q := `SELECT ` + certificateColumns + ` FROM certificates`
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if recipientID != "" {
		conds = append(conds, "recipient_id = "+arg(recipientID))
	}
	if courseID != "" {
		conds = append(conds, "course_id = "+arg(courseID))
	}
	if status != "" {
		conds = append(conds, "status = "+arg(status))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY issue_date DESC"

	var rows []certificateRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying certificates")
	}
	certs := make([]certificate.Certificate, 0, len(rows))
	for _, row := range rows {
		certs = append(certs, row.toDomain())
	}
	return certs, nil
}

func (repo *certificateRepository) UpdateCertificate(ctx context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	q := `UPDATE certificates SET
		status = :status, title = :title, description = :description, is_public = :is_public,
		allow_sharing = :allow_sharing, download_count = :download_count,
		last_downloaded = :last_downloaded, expiry_date = :expiry_date,
		revoked_by_id = :revoked_by_id, revoked_at = :revoked_at,
		revocation_reason = :revocation_reason, updated_at = :updated_at
	WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newCertificateRow(cert))
	if err != nil {
		return certificate.Certificate{}, errors.Wrap(err, "updating certificate")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return certificate.Certificate{}, certificate.ErrNotFound
	}
	return cert, nil
}

func (repo *certificateRepository) ExpireOverdueCertificates(ctx context.Context, now time.Time) (int, error) {
	q := `UPDATE certificates SET status = $1, updated_at = $2
		WHERE status = $3 AND expiry_date IS NOT NULL AND expiry_date <= $2`
	res, err := repo.db.ExecContext(ctx, q, certificate.StatusExpired, now, certificate.StatusIssued)
	if err != nil {
		return 0, errors.Wrap(err, "expiring certificates")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
