package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(func(claims Claims) bool { return claims.IsAdmin })
}

// staffMiddleware allows teachers and admins through.
func staffMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(func(claims Claims) bool { return claims.IsAdmin || claims.IsTeacher })
}

func roleMiddleware(allowed func(Claims) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if allowed(claims) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
