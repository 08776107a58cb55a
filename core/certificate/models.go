package certificate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Certificate statuses
const (
	StatusIssued  = "issued"
	StatusRevoked = "revoked"
	StatusExpired = "expired"
)

// Certificate types
const (
	TypeCourseCompletion   = "course_completion"
	TypeTestAchievement    = "test_achievement"
	TypeSkillCertification = "skill_certification"
	TypeParticipation      = "participation"
)

var AllTypes = []string{TypeCourseCompletion, TypeTestAchievement, TypeSkillCertification, TypeParticipation}

type Certificate struct {
	ID     string `json:"id"`
	Number string `json:"certificate_number"`

	RecipientID string `json:"recipient_id"`
	Type        string `json:"certificate_type"`
	Status      string `json:"status"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	CourseID     string `json:"course_id,omitempty"`
	EnrollmentID string `json:"enrollment_id,omitempty"`

	CompletionDate time.Time `json:"completion_date"`
	FinalGrade     float64   `json:"final_grade,omitempty"`

	IssuerName      string `json:"issuer_name"`
	InstitutionName string `json:"institution_name"`

	IssueDate  time.Time `json:"issue_date"`
	ExpiryDate time.Time `json:"expiry_date,omitempty"` // zero = never

	VerificationCode string `json:"verification_code"`

	IsPublic     bool `json:"is_public"`
	AllowSharing bool `json:"allow_sharing"`

	DownloadCount  int       `json:"download_count"`
	LastDownloaded time.Time `json:"last_downloaded,omitempty"`

	IssuedByID       string    `json:"issued_by_id,omitempty"`
	RevokedByID      string    `json:"revoked_by_id,omitempty"`
	RevokedAt        time.Time `json:"revoked_at,omitempty"`
	RevocationReason string    `json:"revocation_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// IsValid reports whether the certificate is issued and unexpired.
func (c Certificate) IsValid(now time.Time) bool {
	if c.Status != StatusIssued {
		return false
	}
	return !c.IsExpired(now)
}

func (c Certificate) IsExpired(now time.Time) bool {
	return !c.ExpiryDate.IsZero() && now.After(c.ExpiryDate)
}

// makeNumber builds a human-readable certificate number:
// CERT-<yyyymmdd>-<course prefix>-<recipient id tail>.
func makeNumber(recipientID, courseCode string, now time.Time) string {
	prefix := "GEN"
	if courseCode != "" {
		prefix = strings.ToUpper(courseCode)
		if len(prefix) > 3 {
			prefix = prefix[:3]
		}
	}
	tail := recipientID
	if len(tail) > 6 {
		tail = tail[len(tail)-6:]
	}
	return fmt.Sprintf("CERT-%s-%s-%s", now.Format("20060102"), prefix, tail)
}

// makeVerificationCode derives a short public lookup code.
func makeVerificationCode(recipientID, courseID string, now time.Time) string {
	sum := sha256.Sum256([]byte(recipientID + "-" + courseID + "-" + now.Format(time.RFC3339Nano)))
	return strings.ToUpper(hex.EncodeToString(sum[:8]))
}
