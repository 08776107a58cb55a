package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Digitalguyco/convade-backend/core/course"
	"github.com/Digitalguyco/convade-backend/core/user"
)

type courseApi struct {
	svc      course.Service
	userSvc  user.Service
	validate *validator.Validate
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc course.Service, userSvc user.Service, validate *validator.Validate) {
	api := courseApi{svc: svc, userSvc: userSvc, validate: validate}

	cg := g.Group("/courses")

	// un-authed endpoints: public catalog
	cg.GET("/categories", api.queryCategories)
	cg.GET("/slug/:slug", api.retrieveBySlug)

	// authed endpoints
	ag := cg.Group("", jwt)
	ag.POST("/categories", api.createCategory, adminMiddleware())

	ag.POST("", api.create, staffMiddleware())
	ag.GET("", api.query)
	ag.DELETE("", api.destroyMultiple, staffMiddleware())
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update, staffMiddleware())
	ag.POST("/:id/publish", api.publish, staffMiddleware())
	ag.POST("/:id/archive", api.archive, staffMiddleware())

	ag.POST("/modules", api.addModule, staffMiddleware())
	ag.GET("/:id/modules", api.queryModules)
	ag.POST("/modules/:id/publish", api.publishModule, staffMiddleware())
	ag.DELETE("/modules", api.destroyModules, staffMiddleware())

	ag.POST("/lessons", api.addLesson, staffMiddleware())
	ag.GET("/modules/:id/lessons", api.queryLessons)
	ag.GET("/lessons/:id", api.retrieveLesson)
	ag.POST("/lessons/:id/publish", api.publishLesson, staffMiddleware())
	ag.DELETE("/lessons", api.destroyLessons, staffMiddleware())

	ag.POST("/:id/enroll", api.enroll)
	ag.GET("/enrollments", api.queryEnrollments)
	ag.POST("/enrollments/:id/approve", api.approveEnrollment, staffMiddleware())
	ag.POST("/enrollments/:id/drop", api.dropEnrollment)
	ag.POST("/enrollments/:id/progress", api.recordProgress)
	ag.GET("/enrollments/:id/progress", api.queryProgress)

	ag.POST("/announcements", api.announce, staffMiddleware())
	ag.GET("/:id/announcements", api.queryAnnouncements)
}

// Categories

func (api *courseApi) createCategory(ctx echo.Context) error {
	var data course.NewCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCategory")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	cat, err := api.svc.CreateCategory(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating category")
	}
	return ctx.JSON(http.StatusCreated, cat)
}

func (api *courseApi) queryCategories(ctx echo.Context) error {
	activeOnly := ctx.QueryParam("all") == ""
	cats, err := api.svc.QueryCategories(ctx.Request().Context(), activeOnly)
	if err != nil {
		return errors.Wrap(err, "querying categories")
	}
	if cats == nil {
		cats = []course.Category{}
	}
	return ctx.JSON(http.StatusOK, cats)
}

// Courses

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	crs, err := api.svc.Create(ctx.Request().Context(), data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) query(ctx echo.Context) error {
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return httpNotFound(err, course.ErrNotFound)
	}
	_ = api.svc.RecordView(ctx.Request().Context(), crs.ID)
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) retrieveBySlug(ctx echo.Context) error {
	crs, err := api.svc.GetBySlug(ctx.Request().Context(), ctx.Param("slug"))
	if err != nil {
		return httpNotFound(err, course.ErrNotFound)
	}
	_ = api.svc.RecordView(ctx.Request().Context(), crs.ID)
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) update(ctx echo.Context) error {
	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	crs, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return httpNotFound(err, course.ErrNotFound)
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) publish(ctx echo.Context) error {
	crs, err := api.svc.Publish(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return httpNotFound(err, course.ErrNotFound)
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) archive(ctx echo.Context) error {
	crs, err := api.svc.Archive(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return httpNotFound(err, course.ErrNotFound)
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting courses")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Modules

func (api *courseApi) addModule(ctx echo.Context) error {
	var data course.NewModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModule")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	mod, err := api.svc.AddModule(ctx.Request().Context(), data)
	if err != nil {
		return httpNotFound(err, course.ErrNotFound)
	}
	return ctx.JSON(http.StatusCreated, mod)
}

func (api *courseApi) queryModules(ctx echo.Context) error {
	mods, err := api.svc.QueryModules(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying modules")
	}
	if mods == nil {
		mods = []course.Module{}
	}
	return ctx.JSON(http.StatusOK, mods)
}

func (api *courseApi) publishModule(ctx echo.Context) error {
	mod, err := api.svc.PublishModule(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return httpNotFound(err, course.ErrModuleNotFound)
	}
	return ctx.JSON(http.StatusOK, mod)
}

func (api *courseApi) destroyModules(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err := api.svc.DeleteModules(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting modules")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Lessons

func (api *courseApi) addLesson(ctx echo.Context) error {
	var data course.NewLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	lsn, err := api.svc.AddLesson(ctx.Request().Context(), data)
	if err != nil {
		return httpNotFound(err, course.ErrModuleNotFound)
	}
	return ctx.JSON(http.StatusCreated, lsn)
}

func (api *courseApi) queryLessons(ctx echo.Context) error {
	lsns, err := api.svc.QueryLessons(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying lessons")
	}
	if lsns == nil {
		lsns = []course.Lesson{}
	}
	return ctx.JSON(http.StatusOK, lsns)
}

func (api *courseApi) retrieveLesson(ctx echo.Context) error {
	lsn, err := api.svc.GetLessonByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return httpNotFound(err, course.ErrLessonNotFound)
	}
	return ctx.JSON(http.StatusOK, lsn)
}

func (api *courseApi) publishLesson(ctx echo.Context) error {
	lsn, err := api.svc.PublishLesson(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return httpNotFound(err, course.ErrLessonNotFound)
	}
	return ctx.JSON(http.StatusOK, lsn)
}

func (api *courseApi) destroyLessons(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err := api.svc.DeleteLessons(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting lessons")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Enrollments

func (api *courseApi) enroll(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	studentID := ctxUsr.ID
	if id := ctx.QueryParam("student_id"); id != "" && ctxUsr.IsAdmin() {
		studentID = id
	}

	enr, err := api.svc.Enroll(ctx.Request().Context(), studentID, ctx.Param("id"))
	if err != nil {
		return httpNotFound(err, course.ErrNotFound)
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *courseApi) queryEnrollments(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	studentID := ctx.QueryParam("student_id")
	// students only see their own enrollments
	if ctxUsr.IsStudent() {
		studentID = ctxUsr.ID
	}

	enrs, err := api.svc.QueryEnrollments(ctx.Request().Context(), studentID, ctx.QueryParam("course_id"), ctx.QueryParam("status"))
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrs == nil {
		enrs = []course.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrs)
}

func (api *courseApi) approveEnrollment(ctx echo.Context) error {
	enr, err := api.svc.ApproveEnrollment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return httpNotFound(err, course.ErrEnrollmentNotFound)
	}
	return ctx.JSON(http.StatusOK, enr)
}

// getOwnedEnrollment fetches an enrollment, hiding other students'
// enrollments from the caller.
func (api *courseApi) getOwnedEnrollment(ctx echo.Context, id string) (course.Enrollment, error) {
	enr, err := api.svc.GetEnrollmentByID(ctx.Request().Context(), id)
	if err != nil {
		return course.Enrollment{}, httpNotFound(err, course.ErrEnrollmentNotFound)
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return course.Enrollment{}, errors.Wrap(err, "getting context user")
	}
	if ctxUsr.IsStudent() && enr.StudentID != ctxUsr.ID {
		return course.Enrollment{}, errHttpNotFound
	}
	return enr, nil
}

func (api *courseApi) dropEnrollment(ctx echo.Context) error {
	enr, err := api.getOwnedEnrollment(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	enr, err = api.svc.DropEnrollment(ctx.Request().Context(), enr.ID)
	if err != nil {
		return httpNotFound(err, course.ErrEnrollmentNotFound)
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *courseApi) recordProgress(ctx echo.Context) error {
	var data course.RecordProgress
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RecordProgress")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	enr, err := api.getOwnedEnrollment(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	enr, err = api.svc.RecordLessonProgress(ctx.Request().Context(), enr.ID, data)
	if err != nil {
		return httpNotFound(err, course.ErrEnrollmentNotFound)
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *courseApi) queryProgress(ctx echo.Context) error {
	enr, err := api.getOwnedEnrollment(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	progress, err := api.svc.QueryLessonProgress(ctx.Request().Context(), enr.ID)
	if err != nil {
		return errors.Wrap(err, "querying lesson progress")
	}
	if progress == nil {
		progress = []course.LessonProgress{}
	}
	return ctx.JSON(http.StatusOK, progress)
}

// Announcements

func (api *courseApi) announce(ctx echo.Context) error {
	var data course.NewAnnouncement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnnouncement")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	ann, err := api.svc.Announce(ctx.Request().Context(), data, ctxUsr)
	if err != nil {
		return httpNotFound(err, course.ErrNotFound)
	}
	return ctx.JSON(http.StatusCreated, ann)
}

func (api *courseApi) queryAnnouncements(ctx echo.Context) error {
	anns, err := api.svc.QueryAnnouncements(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying announcements")
	}
	if anns == nil {
		anns = []course.Announcement{}
	}
	return ctx.JSON(http.StatusOK, anns)
}
