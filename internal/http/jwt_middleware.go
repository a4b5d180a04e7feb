package http

import (
	"errors"

	"github.com/gin-gonic/gin"

	"natours/internal/domain"
	"natours/internal/service"
)

const currentUserKey = "current_user"

var errMissingProtect = errors.New("role check reached without an authenticated user")

// Protect exige una sesion valida y guarda el usuario en el contexto.
func Protect(guard *service.SessionGuard, cookies *CookieHelper) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := guard.Authenticate(c.Request.Context(), cookies.SessionToken(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(currentUserKey, user)
		c.Next()
	}
}

// Identify es la variante silenciosa: si hay sesion valida la expone, si no sigue igual.
func Identify(guard *service.SessionGuard, cookies *CookieHelper) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user, ok := guard.Identify(c.Request.Context(), cookies.SessionToken(c)); ok {
			c.Set(currentUserKey, user)
		}
		c.Next()
	}
}

// RestrictTo requiere Protect antes en la cadena; sin usuario responde 500.
func RestrictTo(roles ...domain.Role) gin.HandlerFunc {
	allowed := domain.NewRoleSet(roles...)
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abortWithError(c, errMissingProtect)
			return
		}
		if err := service.Authorize(user, allowed); err != nil {
			abortWithError(c, err)
			return
		}
		c.Next()
	}
}

// CurrentUser obtiene el usuario autenticado desde el contexto.
func CurrentUser(c *gin.Context) (domain.User, bool) {
	val, ok := c.Get(currentUserKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := val.(domain.User)
	return user, ok
}
