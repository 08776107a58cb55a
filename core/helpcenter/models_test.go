package helpcenter

import (
	"regexp"
	"testing"
)

func TestMakeTicketNumber(t *testing.T) {
	format := regexp.MustCompile(`^TCK-\d{6}$`)

	seen := make(map[string]bool, 50)
	for i := 0; i < 50; i++ {
		num := makeTicketNumber()
		if !format.MatchString(num) {
			t.Fatalf("makeTicketNumber() = %q, want TCK-XXXXXX", num)
		}
		seen[num] = true
	}
	// 6 random digits should rarely collide over 50 draws
	if len(seen) < 45 {
		t.Errorf("only %d unique numbers out of 50", len(seen))
	}
}

func TestTicketIsOpen(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{TicketOpen, true},
		{TicketInProgress, true},
		{TicketWaitingOnUser, true},
		{TicketResolved, false},
		{TicketClosed, false},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			if got := (SupportTicket{Status: tt.status}).IsOpen(); got != tt.want {
				t.Errorf("IsOpen() = %v, want %v", got, tt.want)
			}
		})
	}
}
