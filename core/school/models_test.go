package school

import (
	"strings"
	"testing"
	"time"
)

func TestRegistrationCodeIsValid(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		name string
		rc   RegistrationCode
		want bool
	}{
		{name: "active unlimited", rc: RegistrationCode{Status: CodeActive}, want: true},
		{name: "inactive", rc: RegistrationCode{Status: CodeInactive}},
		{name: "expired status", rc: RegistrationCode{Status: CodeExpired}},
		{name: "past deadline", rc: RegistrationCode{Status: CodeActive, ExpiresAt: now.Add(-time.Minute)}},
		{name: "future deadline", rc: RegistrationCode{Status: CodeActive, ExpiresAt: now.Add(time.Hour)}, want: true},
		{name: "uses left", rc: RegistrationCode{Status: CodeActive, MaxUses: 5, CurrentUses: 4}, want: true},
		{name: "uses exhausted", rc: RegistrationCode{Status: CodeActive, MaxUses: 5, CurrentUses: 5}},
		{name: "zero max is unlimited", rc: RegistrationCode{Status: CodeActive, MaxUses: 0, CurrentUses: 1000}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rc.IsValid(now); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInvitationIsValid(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		name string
		inv  Invitation
		want bool
	}{
		{name: "pending not expired", inv: Invitation{Status: InvitationPending, ExpiresAt: now.Add(time.Hour)}, want: true},
		{name: "pending expired", inv: Invitation{Status: InvitationPending, ExpiresAt: now.Add(-time.Hour)}},
		{name: "accepted", inv: Invitation{Status: InvitationAccepted, ExpiresAt: now.Add(time.Hour)}},
		{name: "revoked", inv: Invitation{Status: InvitationRevoked, ExpiresAt: now.Add(time.Hour)}},
		{name: "expired status", inv: Invitation{Status: InvitationExpired, ExpiresAt: now.Add(time.Hour)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.inv.IsValid(now); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRandomCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := randomCode(codeLength)
		if err != nil {
			t.Fatalf("randomCode() error = %v", err)
		}
		if len(code) != codeLength {
			t.Fatalf("randomCode() len = %d, want %d", len(code), codeLength)
		}
		for _, char := range code {
			if !strings.ContainsRune(codeAlphabet, char) {
				t.Fatalf("randomCode() produced %q: %q not in alphabet", code, char)
			}
		}
		seen[code] = true
	}
	if len(seen) < 95 {
		t.Errorf("randomCode() produced too many collisions: %d unique out of 100", len(seen))
	}
}
