// Package inmemdb is a map-backed database used in tests. It implements the
// same repository interfaces as the sqlx package without a Postgres server.
package inmemdb

import (
	"strings"
	"sync"

	"github.com/Digitalguyco/convade-backend/core/badge"
	"github.com/Digitalguyco/convade-backend/core/certificate"
	"github.com/Digitalguyco/convade-backend/core/course"
	"github.com/Digitalguyco/convade-backend/core/helpcenter"
	"github.com/Digitalguyco/convade-backend/core/notification"
	"github.com/Digitalguyco/convade-backend/core/payment"
	"github.com/Digitalguyco/convade-backend/core/quiz"
	"github.com/Digitalguyco/convade-backend/core/school"
	"github.com/Digitalguyco/convade-backend/core/user"
)

type DB struct {
	mutex sync.RWMutex

	users map[string]user.User

	schools     map[string]school.School
	invitations map[string]school.Invitation
	regCodes    map[string]school.RegistrationCode

	categories     map[string]course.Category
	courses        map[string]course.Course
	modules        map[string]course.Module
	lessons        map[string]course.Lesson
	enrollments    map[string]course.Enrollment
	lessonProgress map[string]course.LessonProgress
	announcements  map[string]course.Announcement

	tests     map[string]quiz.Test
	questions map[string]quiz.Question
	attempts  map[string]quiz.TestAttempt
	responses map[string]quiz.QuestionResponse
	results   map[string]quiz.TestResult

	badges     map[string]badge.Badge
	userBadges map[string]badge.UserBadge
	userPoints map[string]badge.UserPoints // keyed by user id
	pointTxns  []badge.PointTransaction

	certificates map[string]certificate.Certificate

	discounts map[string]payment.Discount
	payments  map[string]payment.Payment
	refunds   map[string]payment.Refund

	notifications map[string]notification.Notification
	notifSettings map[string]notification.Settings // keyed by user id

	tickets        map[string]helpcenter.SupportTicket
	ticketMessages map[string]helpcenter.TicketMessage
	faqs           map[string]helpcenter.FAQ
}

func NewDB() *DB {
	return &DB{
		users: make(map[string]user.User),

		schools:     make(map[string]school.School),
		invitations: make(map[string]school.Invitation),
		regCodes:    make(map[string]school.RegistrationCode),

		categories:     make(map[string]course.Category),
		courses:        make(map[string]course.Course),
		modules:        make(map[string]course.Module),
		lessons:        make(map[string]course.Lesson),
		enrollments:    make(map[string]course.Enrollment),
		lessonProgress: make(map[string]course.LessonProgress),
		announcements:  make(map[string]course.Announcement),

		tests:     make(map[string]quiz.Test),
		questions: make(map[string]quiz.Question),
		attempts:  make(map[string]quiz.TestAttempt),
		responses: make(map[string]quiz.QuestionResponse),
		results:   make(map[string]quiz.TestResult),

		badges:     make(map[string]badge.Badge),
		userBadges: make(map[string]badge.UserBadge),
		userPoints: make(map[string]badge.UserPoints),

		certificates: make(map[string]certificate.Certificate),

		discounts: make(map[string]payment.Discount),
		payments:  make(map[string]payment.Payment),
		refunds:   make(map[string]payment.Refund),

		notifications: make(map[string]notification.Notification),
		notifSettings: make(map[string]notification.Settings),

		tickets:        make(map[string]helpcenter.SupportTicket),
		ticketMessages: make(map[string]helpcenter.TicketMessage),
		faqs:           make(map[string]helpcenter.FAQ),
	}
}

func containsFold(s, substr string) bool {
	return substr == "" || strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
