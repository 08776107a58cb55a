package certificate

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/Digitalguyco/convade-backend/core"
	"github.com/Digitalguyco/convade-backend/core/course"
	"github.com/Digitalguyco/convade-backend/core/user"
)

var (
	// errors
	ErrNotFound       = errors.New("certificate not found")
	ErrAlreadyIssued  = errors.New("a certificate was already issued for this enrollment")
	ErrNotRevocable   = errors.New("certificate is not issued")
	ErrNotCertifiable = errors.New("enrollment is not certifiable")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateCertificate(ctx context.Context, cert Certificate) (Certificate, error)
		GetCertificateByID(ctx context.Context, id string) (Certificate, error)
		GetCertificateByNumber(ctx context.Context, number string) (Certificate, error)
		GetCertificateByVerificationCode(ctx context.Context, code string) (Certificate, error)
		GetCertificateByEnrollment(ctx context.Context, enrollmentID string) (Certificate, error)
		QueryCertificates(ctx context.Context, recipientID, courseID, status string) ([]Certificate, error)
		UpdateCertificate(ctx context.Context, cert Certificate) (Certificate, error)
		// ExpireOverdueCertificates flips issued certificates past their expiry
		// date to expired and returns how many were affected.
		ExpireOverdueCertificates(ctx context.Context, now time.Time) (int, error)
	}

	// VerificationResult is the public answer to a verification lookup.
	VerificationResult struct {
		Valid       bool      `json:"valid"`
		Number      string    `json:"certificate_number,omitempty"`
		Title       string    `json:"title,omitempty"`
		Recipient   string    `json:"recipient,omitempty"`
		Institution string    `json:"institution,omitempty"`
		IssueDate   time.Time `json:"issue_date,omitempty"`
		Status      string    `json:"status,omitempty"`
	}

	Service interface {
		// IssueForEnrollment issues a completion certificate for a completed
		// enrollment on a certificate-enabled course. Idempotent per enrollment.
		IssueForEnrollment(ctx context.Context, enr course.Enrollment, crs course.Course) (Certificate, error)
		GetByID(ctx context.Context, id string) (Certificate, error)
		Query(ctx context.Context, recipientID, courseID, status string) ([]Certificate, error)
		// Verify answers a public verification-code lookup without leaking
		// anything about unknown codes.
		Verify(ctx context.Context, code string) (VerificationResult, error)
		Revoke(ctx context.Context, id, reason string, revokedBy user.User) (Certificate, error)
		RecordDownload(ctx context.Context, id string) (Certificate, error)
		ExpireOverdueCertificates(ctx context.Context) (int, error)
	}

	service struct {
		repo            Repository
		usrSvc          user.Service
		mailSvc         core.EmailService
		institutionName string
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{
		repo:            repo,
		usrSvc:          usrSvc,
		mailSvc:         mailSvc,
		institutionName: conf.AppName,
	}
}

func (svc *service) IssueForEnrollment(ctx context.Context, enr course.Enrollment, crs course.Course) (Certificate, error) {
	if !crs.CertificateEnabled || enr.Status != course.EnrollmentCompleted {
		return Certificate{}, core.NewValidationError(ErrNotCertifiable)
	}

	if existing, err := svc.repo.GetCertificateByEnrollment(ctx, enr.ID); err == nil {
		return existing, core.NewValidationError(ErrAlreadyIssued)
	} else if errors.Cause(err) != ErrNotFound {
		return Certificate{}, err
	}

	usr, err := svc.usrSvc.GetByID(ctx, enr.StudentID)
	if err != nil {
		return Certificate{}, err
	}
	instructor, err := svc.usrSvc.GetByID(ctx, crs.InstructorID)
	if err != nil {
		return Certificate{}, err
	}

	now := nowFunc().UTC()
	cert := Certificate{
		Number:      makeNumber(usr.ID, crs.CourseCode, now),
		RecipientID: usr.ID,
		Type:        TypeCourseCompletion,
		Status:      StatusIssued,

		Title:       fmt.Sprintf("Certificate of Completion: %s", crs.Title),
		Description: crs.ShortDescription,

		CourseID:     crs.ID,
		EnrollmentID: enr.ID,

		CompletionDate: enr.CompletionDate,
		FinalGrade:     enr.FinalGrade,

		IssuerName:      instructor.FullName(),
		InstitutionName: svc.institutionName,

		IssueDate:        now,
		VerificationCode: makeVerificationCode(usr.ID, crs.ID, now),
		AllowSharing:     true,

		CreatedAt: now,
		UpdatedAt: now,
	}
	cert, err = svc.repo.CreateCertificate(ctx, cert)
	if err != nil {
		return Certificate{}, err
	}

	go svc.sendIssuedMail(usr, cert, crs)
	return cert, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Certificate, error) {
	return svc.repo.GetCertificateByID(ctx, id)
}

func (svc *service) Query(ctx context.Context, recipientID, courseID, status string) ([]Certificate, error) {
	return svc.repo.QueryCertificates(ctx, recipientID, courseID, status)
}

func (svc *service) Verify(ctx context.Context, code string) (VerificationResult, error) {
	cert, err := svc.repo.GetCertificateByVerificationCode(ctx, code)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return VerificationResult{}, nil
		}
		return VerificationResult{}, err
	}

	usr, err := svc.usrSvc.GetByID(ctx, cert.RecipientID)
	if err != nil {
		return VerificationResult{}, err
	}

	return VerificationResult{
		Valid:       cert.IsValid(nowFunc().UTC()),
		Number:      cert.Number,
		Title:       cert.Title,
		Recipient:   usr.FullName(),
		Institution: cert.InstitutionName,
		IssueDate:   cert.IssueDate,
		Status:      cert.Status,
	}, nil
}

func (svc *service) Revoke(ctx context.Context, id, reason string, revokedBy user.User) (Certificate, error) {
	cert, err := svc.repo.GetCertificateByID(ctx, id)
	if err != nil {
		return Certificate{}, err
	}
	if cert.Status != StatusIssued {
		return Certificate{}, core.NewValidationError(ErrNotRevocable)
	}

	now := nowFunc().UTC()
	cert.Status = StatusRevoked
	cert.RevokedByID = revokedBy.ID
	cert.RevokedAt = now
	cert.RevocationReason = reason
	cert.UpdatedAt = now
	return svc.repo.UpdateCertificate(ctx, cert)
}

func (svc *service) RecordDownload(ctx context.Context, id string) (Certificate, error) {
	cert, err := svc.repo.GetCertificateByID(ctx, id)
	if err != nil {
		return Certificate{}, err
	}
	now := nowFunc().UTC()
	cert.DownloadCount++
	cert.LastDownloaded = now
	cert.UpdatedAt = now
	return svc.repo.UpdateCertificate(ctx, cert)
}

func (svc *service) ExpireOverdueCertificates(ctx context.Context) (int, error) {
	return svc.repo.ExpireOverdueCertificates(ctx, nowFunc().UTC())
}

func (svc *service) sendIssuedMail(usr user.User, cert Certificate, crs course.Course) {
	svc.mailSvc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
			Subject:      "Your certificate is ready",
			TemplateName: "certificate-issued",
			TemplateData: struct {
				Name             string
				CourseTitle      string
				Number           string
				VerificationCode string
			}{usr.FirstName, crs.Title, cert.Number, cert.VerificationCode},
		},
	)
}
