package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Digitalguyco/convade-backend/core/course"
	"github.com/Digitalguyco/convade-backend/core/payment"
	"github.com/Digitalguyco/convade-backend/core/user"
)

// createPaidCourse publishes a priced course ready for checkout.
func (env *testEnv) createPaidCourse(t *testing.T, teacher user.User, priceCents int64) course.Course {
	t.Helper()
	teacherToken := getToken(t, teacher)

	sch := env.createSchool(t, "Kin Academy", "KIN01")
	cat, err := env.crsSvc.CreateCategory(context.Background(), course.NewCategory{Name: "Mathematics"})
	if err != nil {
		t.Fatalf("creating category: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/v1/courses", teacherToken, map[string]interface{}{
		"title": "Pro Algebra", "course_code": "ALG201",
		"category_id": cat.ID, "school_id": sch.ID,
		"is_free": false, "price_cents": priceCents,
	})
	checkCode(t, rec, http.StatusCreated)
	var crs course.Course
	decode(t, rec, &crs)

	rec = env.do(t, http.MethodPost, "/v1/courses/"+crs.ID+"/publish", teacherToken, nil)
	checkCode(t, rec, http.StatusOK)
	decode(t, rec, &crs)
	return crs
}

func Test_paymentApi_checkout(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin, true)
	teacher := env.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, true)
	student := env.createUser(t, "Hero", "hero@test.cd", user.RoleStudent, true)
	adminToken := getToken(t, admin)
	studentToken := getToken(t, student)

	crs := env.createPaidCourse(t, teacher, 5000)

	// enrolling in a paid course leaves the enrollment pending payment
	rec := env.do(t, http.MethodPost, "/v1/courses/"+crs.ID+"/enroll", studentToken, nil)
	checkCode(t, rec, http.StatusCreated)
	var enr course.Enrollment
	decode(t, rec, &enr)
	if enr.Status != course.EnrollmentPending || enr.PaymentCompleted {
		t.Fatalf("unexpected enrollment: %+v", enr)
	}

	rec = env.do(t, http.MethodPost, "/v1/payments", studentToken, map[string]string{
		"course_id": crs.ID, "provider": "stripe",
	})
	checkCode(t, rec, http.StatusCreated)
	var pmt payment.Payment
	decode(t, rec, &pmt)
	if pmt.Status != payment.StatusPending || pmt.AmountCents != 5000 || pmt.TotalCents != 5000 {
		t.Fatalf("unexpected payment: %+v", pmt)
	}

	t.Run("owners cannot complete, only admins", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/payments/"+pmt.ID+"/complete", studentToken, nil)
		checkCode(t, rec, http.StatusForbidden)
	})

	t.Run("complete activates the enrollment", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/payments/"+pmt.ID+"/complete", adminToken, map[string]string{
			"external_id": "ch_123",
		})
		checkCode(t, rec, http.StatusOK)
		decode(t, rec, &pmt)
		if pmt.Status != payment.StatusCompleted || pmt.ExternalID != "ch_123" {
			t.Fatalf("unexpected payment after complete: %+v", pmt)
		}

		enr, err := env.crsSvc.GetEnrollment(context.Background(), student.ID, crs.ID)
		if err != nil {
			t.Fatalf("fetching enrollment: %v", err)
		}
		if enr.Status != course.EnrollmentActive || !enr.PaymentCompleted {
			t.Fatalf("unexpected enrollment after payment: %+v", enr)
		}
	})

	t.Run("completed payments cannot be completed again", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/payments/"+pmt.ID+"/complete", adminToken, nil)
		checkCode(t, rec, http.StatusBadRequest)
	})

	t.Run("owners only see their own payments", func(t *testing.T) {
		other := env.createUser(t, "Other", "other@test.cd", user.RoleStudent, true)

		rec := env.do(t, http.MethodGet, "/v1/payments/"+pmt.ID, getToken(t, other), nil)
		checkCode(t, rec, http.StatusNotFound)

		rec = env.do(t, http.MethodGet, "/v1/payments", getToken(t, other), nil)
		checkCode(t, rec, http.StatusOK)
		var pmts []payment.Payment
		decode(t, rec, &pmts)
		if len(pmts) != 0 {
			t.Errorf("got %d payments; want 0", len(pmts))
		}
	})

	t.Run("refund", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/payments/refunds", adminToken, map[string]interface{}{
			"payment_id": pmt.ID, "reason": "customer_request", "amount_cents": 2000,
		})
		checkCode(t, rec, http.StatusCreated)
		var ref payment.Refund
		decode(t, rec, &ref)
		if ref.Status != payment.RefundCompleted || ref.AmountCents != 2000 {
			t.Fatalf("unexpected refund: %+v", ref)
		}

		rec = env.do(t, http.MethodGet, "/v1/payments/"+pmt.ID, adminToken, nil)
		checkCode(t, rec, http.StatusOK)
		decode(t, rec, &pmt)
		if pmt.Status != payment.StatusPartiallyRefunded || pmt.RefundedCents != 2000 {
			t.Fatalf("unexpected payment after refund: %+v", pmt)
		}

		// refund the rest
		rec = env.do(t, http.MethodPost, "/v1/payments/refunds", adminToken, map[string]interface{}{
			"payment_id": pmt.ID, "reason": "customer_request",
		})
		checkCode(t, rec, http.StatusCreated)

		rec = env.do(t, http.MethodGet, "/v1/payments/"+pmt.ID, adminToken, nil)
		decode(t, rec, &pmt)
		if pmt.Status != payment.StatusRefunded {
			t.Fatalf("unexpected payment after full refund: %+v", pmt)
		}
	})
}

func Test_paymentApi_discounts(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin, true)
	teacher := env.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, true)
	student := env.createUser(t, "Hero", "hero@test.cd", user.RoleStudent, true)
	adminToken := getToken(t, admin)
	studentToken := getToken(t, student)

	crs := env.createPaidCourse(t, teacher, 5000)

	rec := env.do(t, http.MethodPost, "/v1/courses/"+crs.ID+"/enroll", studentToken, nil)
	checkCode(t, rec, http.StatusCreated)

	now := time.Now().UTC()
	rec = env.do(t, http.MethodPost, "/v1/payments/discounts", adminToken, map[string]interface{}{
		"code":           "LAUNCH50",
		"name":           "Launch promo",
		"discount_type":  "percentage",
		"discount_value": 50,
		"valid_from":     now.Format(time.RFC3339),
		"valid_until":    now.Add(24 * time.Hour).Format(time.RFC3339),
	})
	checkCode(t, rec, http.StatusCreated)
	var d payment.Discount
	decode(t, rec, &d)
	if !d.IsActive {
		t.Fatalf("unexpected discount: %+v", d)
	}

	t.Run("unknown code rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/payments", studentToken, map[string]string{
			"course_id": crs.ID, "provider": "stripe", "discount_code": "NOPE",
		})
		checkCode(t, rec, http.StatusBadRequest)
	})

	t.Run("percentage discount applied", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/payments", studentToken, map[string]string{
			"course_id": crs.ID, "provider": "stripe", "discount_code": "LAUNCH50",
		})
		checkCode(t, rec, http.StatusCreated)

		var pmt payment.Payment
		decode(t, rec, &pmt)
		if pmt.DiscountCents != 2500 || pmt.TotalCents != 2500 {
			t.Fatalf("unexpected payment with discount: %+v", pmt)
		}
	})
}
