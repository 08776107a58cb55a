package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Digitalguyco/convade-backend/core/certificate"
)

type certificateRepository struct {
	db *DB
}

var _ certificate.Repository = (*certificateRepository)(nil)

func NewCertificateRepository(db *DB) certificate.Repository {
	return &certificateRepository{db: db}
}

func (repo *certificateRepository) CreateCertificate(ctx context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	repo.db.certificates[cert.ID] = cert
	return cert, nil
}

func (repo *certificateRepository) GetCertificateByID(ctx context.Context, id string) (certificate.Certificate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if cert, ok := repo.db.certificates[id]; ok {
		return cert, nil
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) GetCertificateByNumber(ctx context.Context, number string) (certificate.Certificate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, cert := range repo.db.certificates {
		if cert.Number == number {
			return cert, nil
		}
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) GetCertificateByVerificationCode(ctx context.Context, code string) (certificate.Certificate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, cert := range repo.db.certificates {
		if cert.VerificationCode == code {
			return cert, nil
		}
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) GetCertificateByEnrollment(ctx context.Context, enrollmentID string) (certificate.Certificate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, cert := range repo.db.certificates {
		if cert.EnrollmentID == enrollmentID {
			return cert, nil
		}
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) QueryCertificates(ctx context.Context, recipientID, courseID, status string) ([]certificate.Certificate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var certs []certificate.Certificate
	for _, cert := range repo.db.certificates {
		if recipientID != "" && cert.RecipientID != recipientID {
			continue
		}
		if courseID != "" && cert.CourseID != courseID {
			continue
		}
		if status != "" && cert.Status != status {
			continue
		}
		certs = append(certs, cert)
	}
	sort.Slice(certs, func(i, j int) bool { return certs[i].IssueDate.After(certs[j].IssueDate) })
	return certs, nil
}

func (repo *certificateRepository) UpdateCertificate(ctx context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.certificates[cert.ID]; !ok {
		return certificate.Certificate{}, certificate.ErrNotFound
	}
	repo.db.certificates[cert.ID] = cert
	return cert, nil
}

func (repo *certificateRepository) ExpireOverdueCertificates(ctx context.Context, now time.Time) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for id, cert := range repo.db.certificates {
		if cert.Status == certificate.StatusIssued && !cert.ExpiryDate.IsZero() && !cert.ExpiryDate.After(now) {
			cert.Status = certificate.StatusExpired
			cert.UpdatedAt = now
			repo.db.certificates[id] = cert
			n++
		}
	}
	return n, nil
}
