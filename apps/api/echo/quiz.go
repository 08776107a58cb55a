package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Digitalguyco/convade-backend/core/quiz"
	"github.com/Digitalguyco/convade-backend/core/user"
)

type quizApi struct {
	svc      quiz.Service
	userSvc  user.Service
	validate *validator.Validate
}

func registerQuizAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc quiz.Service, userSvc user.Service, validate *validator.Validate) {
	api := quizApi{svc: svc, userSvc: userSvc, validate: validate}

	tg := g.Group("/tests", jwt)

	tg.POST("", api.create, staffMiddleware())
	tg.GET("", api.query)
	tg.DELETE("", api.destroyMultiple, staffMiddleware())
	tg.GET("/:id", api.retrieve)
	tg.POST("/:id/publish", api.publish, staffMiddleware())
	tg.POST("/:id/archive", api.archive, staffMiddleware())

	tg.POST("/questions", api.addQuestion, staffMiddleware())
	tg.GET("/:id/questions", api.queryQuestions)
	tg.DELETE("/questions", api.destroyQuestions, staffMiddleware())

	tg.POST("/:id/attempts", api.startAttempt)
	tg.GET("/attempts", api.queryAttempts)
	tg.GET("/attempts/:id", api.retrieveAttempt)
	tg.GET("/attempts/:id/review", api.reviewAttempt)
	tg.POST("/attempts/:id/responses", api.saveResponse)
	tg.POST("/attempts/:id/submit", api.submitAttempt)
	tg.POST("/responses/:id/grade", api.gradeResponse, staffMiddleware())

	tg.GET("/:id/result", api.retrieveResult)
	tg.GET("/results", api.queryResults)
}

func (api *quizApi) create(ctx echo.Context) error {
	var data quiz.NewTest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	tst, err := api.svc.Create(ctx.Request().Context(), data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "creating test")
	}
	return ctx.JSON(http.StatusCreated, tst)
}

func (api *quizApi) query(ctx echo.Context) error {
	filter := new(quiz.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []quiz.Test{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	tests, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying tests")
	}
	if tests == nil {
		tests = []quiz.Test{}
	}
	return ctx.JSON(http.StatusOK, tests)
}

func (api *quizApi) retrieve(ctx echo.Context) error {
	tst, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return httpNotFound(err, quiz.ErrNotFound)
	}
	return ctx.JSON(http.StatusOK, tst)
}

func (api *quizApi) publish(ctx echo.Context) error {
	tst, err := api.svc.Publish(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return httpNotFound(err, quiz.ErrNotFound)
	}
	return ctx.JSON(http.StatusOK, tst)
}

func (api *quizApi) archive(ctx echo.Context) error {
	tst, err := api.svc.Archive(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return httpNotFound(err, quiz.ErrNotFound)
	}
	return ctx.JSON(http.StatusOK, tst)
}

func (api *quizApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting tests")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Questions

func (api *quizApi) addQuestion(ctx echo.Context) error {
	var data quiz.NewQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	q, err := api.svc.AddQuestion(ctx.Request().Context(), data)
	if err != nil {
		return httpNotFound(err, quiz.ErrNotFound)
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *quizApi) queryQuestions(ctx echo.Context) error {
	questions, err := api.svc.QueryQuestions(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying questions")
	}
	if questions == nil {
		questions = []quiz.Question{}
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *quizApi) destroyQuestions(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err := api.svc.DeleteQuestions(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting questions")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Attempts

func (api *quizApi) startAttempt(ctx echo.Context) error {
	var data StartAttemptRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StartAttemptRequest")
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	in := quiz.StartAttemptInput{
		Password:  data.Password,
		IPAddress: ctx.RealIP(),
		UserAgent: ctx.Request().UserAgent(),
	}
	att, err := api.svc.StartAttempt(ctx.Request().Context(), ctx.Param("id"), ctxUsr.ID, in)
	if err != nil {
		return httpNotFound(err, quiz.ErrNotFound)
	}
	return ctx.JSON(http.StatusCreated, att)
}

// getOwnedAttempt fetches an attempt, hiding other students' attempts from
// the caller.
func (api *quizApi) getOwnedAttempt(ctx echo.Context, id string) (quiz.TestAttempt, user.User, error) {
	att, err := api.svc.GetAttempt(ctx.Request().Context(), id)
	if err != nil {
		return quiz.TestAttempt{}, user.User{}, httpNotFound(err, quiz.ErrAttemptNotFound)
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return quiz.TestAttempt{}, user.User{}, errors.Wrap(err, "getting context user")
	}
	if ctxUsr.IsStudent() && att.StudentID != ctxUsr.ID {
		return quiz.TestAttempt{}, user.User{}, errHttpNotFound
	}
	return att, ctxUsr, nil
}

func (api *quizApi) retrieveAttempt(ctx echo.Context) error {
	att, _, err := api.getOwnedAttempt(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, att)
}

func (api *quizApi) reviewAttempt(ctx echo.Context) error {
	att, _, err := api.getOwnedAttempt(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	review, err := api.svc.ReviewAttempt(ctx.Request().Context(), att.ID)
	if err != nil {
		return httpNotFound(err, quiz.ErrAttemptNotFound)
	}
	return ctx.JSON(http.StatusOK, review)
}

func (api *quizApi) queryAttempts(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	studentID := ctx.QueryParam("student_id")
	// students only see their own attempts
	if ctxUsr.IsStudent() {
		studentID = ctxUsr.ID
	}

	attempts, err := api.svc.QueryAttempts(ctx.Request().Context(), ctx.QueryParam("test_id"), studentID, ctx.QueryParam("status"))
	if err != nil {
		return errors.Wrap(err, "querying attempts")
	}
	if attempts == nil {
		attempts = []quiz.TestAttempt{}
	}
	return ctx.JSON(http.StatusOK, attempts)
}

func (api *quizApi) saveResponse(ctx echo.Context) error {
	var data quiz.SaveResponse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveResponse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	att, _, err := api.getOwnedAttempt(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	resp, err := api.svc.SaveResponse(ctx.Request().Context(), att.ID, data)
	if err != nil {
		return httpNotFound(err, quiz.ErrAttemptNotFound)
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *quizApi) submitAttempt(ctx echo.Context) error {
	att, ctxUsr, err := api.getOwnedAttempt(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	att, err = api.svc.SubmitAttempt(ctx.Request().Context(), att.ID)
	if err != nil {
		return httpNotFound(err, quiz.ErrAttemptNotFound)
	}
	if ctxUsr.IsStudent() {
		tst, err := api.svc.GetByID(ctx.Request().Context(), att.TestID)
		if err != nil {
			return errors.Wrap(err, "getting attempted test")
		}
		if !tst.ShowScoreImmediately {
			// scores surface through results once the instructor reviews them
			att.Score, att.Percentage, att.IsPassed = 0, 0, false
		}
	}
	return ctx.JSON(http.StatusOK, att)
}

func (api *quizApi) gradeResponse(ctx echo.Context) error {
	var data quiz.GradeInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	att, err := api.svc.GradeResponse(ctx.Request().Context(), ctx.Param("id"), data, ctxUsr)
	if err != nil {
		return httpNotFound(err, quiz.ErrResponseNotFound)
	}
	return ctx.JSON(http.StatusOK, att)
}

// Results

func (api *quizApi) retrieveResult(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	studentID := ctxUsr.ID
	if id := ctx.QueryParam("student_id"); id != "" && !ctxUsr.IsStudent() {
		studentID = id
	}

	res, err := api.svc.GetResult(ctx.Request().Context(), ctx.Param("id"), studentID)
	if err != nil {
		return httpNotFound(err, quiz.ErrResultNotFound)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *quizApi) queryResults(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	studentID := ctx.QueryParam("student_id")
	if ctxUsr.IsStudent() {
		studentID = ctxUsr.ID
	}

	results, err := api.svc.QueryResults(ctx.Request().Context(), ctx.QueryParam("test_id"), studentID)
	if err != nil {
		return errors.Wrap(err, "querying results")
	}
	if results == nil {
		results = []quiz.TestResult{}
	}
	return ctx.JSON(http.StatusOK, results)
}

type StartAttemptRequest struct {
	Password string `json:"password"`
}
