package certificate

import (
	"strings"
	"testing"
	"time"
)

func TestCertificateIsValid(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		name string
		cert Certificate
		want bool
	}{
		{name: "issued no expiry", cert: Certificate{Status: StatusIssued}, want: true},
		{name: "issued unexpired", cert: Certificate{Status: StatusIssued, ExpiryDate: now.Add(time.Hour)}, want: true},
		{name: "issued expired", cert: Certificate{Status: StatusIssued, ExpiryDate: now.Add(-time.Hour)}},
		{name: "revoked", cert: Certificate{Status: StatusRevoked}},
		{name: "expired status", cert: Certificate{Status: StatusExpired}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cert.IsValid(now); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMakeNumber(t *testing.T) {
	now := time.Date(2026, time.August, 23, 12, 0, 0, 0, time.UTC)

	got := makeNumber("0b7aa935-0152-4b6f-8d91-9c1f2e34a8b7", "BIO101", now)
	if want := "CERT-20260823-BIO-34a8b7"; got != want {
		t.Errorf("makeNumber() = %q, want %q", got, want)
	}

	// no course falls back to GEN
	if got = makeNumber("abc123", "", now); got != "CERT-20260823-GEN-abc123" {
		t.Errorf("makeNumber() = %q, want CERT-20260823-GEN-abc123", got)
	}
}

func TestMakeVerificationCode(t *testing.T) {
	now := time.Now().UTC()
	code := makeVerificationCode("u1", "c1", now)
	if len(code) != 16 {
		t.Errorf("len(code) = %d, want 16", len(code))
	}
	if code != strings.ToUpper(code) {
		t.Errorf("code %q is not uppercase", code)
	}
	// different inputs yield different codes
	if other := makeVerificationCode("u2", "c1", now); other == code {
		t.Error("verification codes collide across recipients")
	}
}
