package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/Digitalguyco/convade-backend/apps/api/echo"
	"github.com/Digitalguyco/convade-backend/core"
	"github.com/Digitalguyco/convade-backend/core/analytics"
	"github.com/Digitalguyco/convade-backend/core/badge"
	"github.com/Digitalguyco/convade-backend/core/certificate"
	"github.com/Digitalguyco/convade-backend/core/course"
	"github.com/Digitalguyco/convade-backend/core/helpcenter"
	"github.com/Digitalguyco/convade-backend/core/notification"
	"github.com/Digitalguyco/convade-backend/core/payment"
	"github.com/Digitalguyco/convade-backend/core/quiz"
	"github.com/Digitalguyco/convade-backend/core/school"
	"github.com/Digitalguyco/convade-backend/core/user"
	emailsvc "github.com/Digitalguyco/convade-backend/services/email"
	logsvc "github.com/Digitalguyco/convade-backend/services/logger"
	inmemdb "github.com/Digitalguyco/convade-backend/storage/database/inmem"
)

var (
	conf       *core.Config
	validate   *validator.Validate
	translator ut.Translator

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

func TestMain(m *testing.M) {
	conf = core.NewConfig()
	conf.TestMode = true
	conf.Debug = false

	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)

	validate = validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")

	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	course.InitValidators(validate, translator)
	quiz.InitValidators(validate, translator)
	badge.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)
	user.LoadCommonPasswords(conf, logger)

	os.Exit(m.Run())
}

// testEnv wires a fresh in-memory database behind a full server so each
// test starts from a clean slate.
type testEnv struct {
	app echoapi.Server

	usrSvc   user.Service
	schSvc   school.Service
	crsSvc   course.Service
	quizSvc  quiz.Service
	badgeSvc badge.Service
	certSvc  certificate.Service
	paySvc   payment.Service
	notifSvc notification.Service
	helpSvc  helpcenter.Service
	anlSvc   analytics.Service

	usrRepo user.Repository
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	emailsvc.ClearSentMessages()

	db := inmemdb.NewDB()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	env := &testEnv{usrRepo: inmemdb.NewUserRepository(db)}
	env.usrSvc = user.NewServiceMock(env.usrRepo, mailSvc)
	env.schSvc = school.NewService(inmemdb.NewSchoolRepository(db), env.usrSvc, mailSvc)
	env.crsSvc = course.NewService(inmemdb.NewCourseRepository(db), env.usrSvc, mailSvc)
	env.quizSvc = quiz.NewService(inmemdb.NewQuizRepository(db))
	env.quizSvc.SetEnrollmentChecker(func(ctx context.Context, studentID, courseID string) error {
		enr, err := env.crsSvc.GetEnrollment(ctx, studentID, courseID)
		if err != nil || enr.Status != course.EnrollmentActive {
			return core.NewValidationError(quiz.ErrNotEnrolled)
		}
		return nil
	})
	env.badgeSvc = badge.NewService(inmemdb.NewBadgeRepository(db), nil)
	env.certSvc = certificate.NewService(inmemdb.NewCertificateRepository(db), env.usrSvc, mailSvc, conf)
	env.paySvc = payment.NewService(inmemdb.NewPaymentRepository(db), env.crsSvc, env.usrSvc, mailSvc)
	env.notifSvc = notification.NewService(inmemdb.NewNotificationRepository(db), env.usrSvc, mailSvc)
	env.helpSvc = helpcenter.NewService(inmemdb.NewHelpCenterRepository(db), env.notifSvc, mailSvc, conf)
	env.anlSvc = analytics.NewService(inmemdb.NewAnalyticsRepository(db), nil)

	env.app = echoapi.NewServer(
		&echoapi.Options{
			DisableReqLogs:  true,
			Conf:            conf,
			Logger:          logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf),
			Validate:        validate,
			Translator:      translator,
			UserSvc:         env.usrSvc,
			SchoolSvc:       env.schSvc,
			CourseSvc:       env.crsSvc,
			QuizSvc:         env.quizSvc,
			BadgeSvc:        env.badgeSvc,
			CertificateSvc:  env.certSvc,
			PaymentSvc:      env.paySvc,
			NotificationSvc: env.notifSvc,
			HelpCenterSvc:   env.helpSvc,
			AnalyticsSvc:    env.anlSvc,
		},
	)
	return env
}

func (env *testEnv) createUser(t *testing.T, firstName, email, role string, active bool) user.User {
	t.Helper()
	usr := user.User{
		FirstName:       firstName,
		LastName:        "Test",
		Email:           email,
		Role:            role,
		Status:          user.StatusActive,
		IsEmailVerified: true,
	}
	if !active {
		usr.Status = user.StatusInactive
	}
	if err := usr.SetPassword("LePassword!"); err != nil {
		t.Fatalf("SetPassword() failed: %v", err)
	}
	usr, err := env.usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func (env *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.app.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	claims := echoapi.GetUserClaims(usr)
	token, err := echoapi.GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	token    string
	wantCode int
	wantData []byte
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj(): %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	// arrays compare regardless of order
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func checkCode(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("failed! code = %v; want %v; body %s", rec.Code, want, rec.Body.String())
	}
}
