package tests

import (
	"net/http"
	"testing"

	"github.com/Digitalguyco/convade-backend/core/helpcenter"
	"github.com/Digitalguyco/convade-backend/core/user"
)

func Test_helpCenterApi_faqs(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin, true)
	adminToken := getToken(t, admin)

	rec := env.do(t, http.MethodPost, "/v1/help/faqs", adminToken, map[string]interface{}{
		"question": "How do I reset my password?",
		"answer":   "Use the forgot-password link on the login page.",
		"category": "account",
	})
	checkCode(t, rec, http.StatusCreated)
	var faq helpcenter.FAQ
	decode(t, rec, &faq)
	if faq.IsPublished {
		t.Fatal("new faqs should start unpublished")
	}

	t.Run("drafts hidden from the public list", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/help/faqs", "", nil)
		checkCode(t, rec, http.StatusOK)

		var faqs []helpcenter.FAQ
		decode(t, rec, &faqs)
		if len(faqs) != 0 {
			t.Errorf("got %d faqs; want 0", len(faqs))
		}
	})

	rec = env.do(t, http.MethodPost, "/v1/help/faqs/"+faq.ID+"/publish", adminToken, nil)
	checkCode(t, rec, http.StatusOK)

	t.Run("published faqs are public", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/help/faqs", "", nil)
		checkCode(t, rec, http.StatusOK)

		var faqs []helpcenter.FAQ
		decode(t, rec, &faqs)
		if len(faqs) != 1 {
			t.Fatalf("got %d faqs; want 1", len(faqs))
		}
	})

	t.Run("view counter", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/help/faqs/"+faq.ID+"/view", "", nil)
		checkCode(t, rec, http.StatusNoContent)

		rec = env.do(t, http.MethodGet, "/v1/help/faqs", "", nil)
		var faqs []helpcenter.FAQ
		decode(t, rec, &faqs)
		if faqs[0].ViewCount != 1 {
			t.Errorf("view count = %d; want 1", faqs[0].ViewCount)
		}
	})
}

func Test_helpCenterApi_tickets(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin, true)
	student := env.createUser(t, "Hero", "hero@test.cd", user.RoleStudent, true)
	adminToken := getToken(t, admin)
	studentToken := getToken(t, student)

	rec := env.do(t, http.MethodPost, "/v1/help/tickets", studentToken, map[string]string{
		"subject":     "Cannot open lesson videos",
		"description": "The player keeps buffering forever.",
		"category":    "technical_issue",
	})
	checkCode(t, rec, http.StatusCreated)
	var tkt helpcenter.SupportTicket
	decode(t, rec, &tkt)
	if tkt.Number == "" || tkt.Status != helpcenter.TicketOpen || tkt.RequesterID != student.ID {
		t.Fatalf("unexpected ticket: %+v", tkt)
	}

	t.Run("requesters only see their own tickets", func(t *testing.T) {
		other := env.createUser(t, "Other", "other@test.cd", user.RoleStudent, true)

		rec := env.do(t, http.MethodGet, "/v1/help/tickets", getToken(t, other), nil)
		checkCode(t, rec, http.StatusOK)
		var tickets []helpcenter.SupportTicket
		decode(t, rec, &tickets)
		if len(tickets) != 0 {
			t.Errorf("got %d tickets; want 0", len(tickets))
		}

		rec = env.do(t, http.MethodGet, "/v1/help/tickets/"+tkt.ID, getToken(t, other), nil)
		checkCode(t, rec, http.StatusNotFound)
	})

	t.Run("staff required to assign", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/help/tickets/"+tkt.ID+"/assign", studentToken, nil)
		checkCode(t, rec, http.StatusForbidden)
	})

	t.Run("assign defaults to the caller", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/help/tickets/"+tkt.ID+"/assign", adminToken, nil)
		checkCode(t, rec, http.StatusOK)

		decode(t, rec, &tkt)
		if tkt.AssigneeID != admin.ID || tkt.Status != helpcenter.TicketInProgress {
			t.Fatalf("unexpected ticket after assign: %+v", tkt)
		}
	})

	t.Run("internal notes hidden from the requester", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/help/messages", adminToken, map[string]interface{}{
			"ticket_id": tkt.ID, "content": "looks like a CDN outage", "is_internal": true,
		})
		checkCode(t, rec, http.StatusCreated)

		rec = env.do(t, http.MethodPost, "/v1/help/messages", studentToken, map[string]interface{}{
			"ticket_id": tkt.ID, "content": "any news?", "is_internal": true, // stripped for requesters
		})
		checkCode(t, rec, http.StatusCreated)
		var msg helpcenter.TicketMessage
		decode(t, rec, &msg)
		if msg.IsInternal {
			t.Error("requester messages must never be internal")
		}

		rec = env.do(t, http.MethodGet, "/v1/help/tickets/"+tkt.ID+"/messages", studentToken, nil)
		checkCode(t, rec, http.StatusOK)
		var msgs []helpcenter.TicketMessage
		decode(t, rec, &msgs)
		if len(msgs) != 1 {
			t.Errorf("requester sees %d messages; want 1", len(msgs))
		}

		rec = env.do(t, http.MethodGet, "/v1/help/tickets/"+tkt.ID+"/messages", adminToken, nil)
		checkCode(t, rec, http.StatusOK)
		decode(t, rec, &msgs)
		if len(msgs) != 2 {
			t.Errorf("staff sees %d messages; want 2", len(msgs))
		}
	})

	t.Run("resolve", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/help/tickets/"+tkt.ID+"/status", adminToken, map[string]string{
			"status": "resolved", "resolution": "CDN issue fixed upstream",
		})
		checkCode(t, rec, http.StatusOK)

		decode(t, rec, &tkt)
		if tkt.Status != helpcenter.TicketResolved || tkt.ResolvedByID != admin.ID || tkt.Resolution == "" {
			t.Fatalf("unexpected ticket after resolve: %+v", tkt)
		}
	})

	t.Run("lookup by number", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/help/tickets/number/"+tkt.Number, studentToken, nil)
		checkCode(t, rec, http.StatusOK)
	})
}
