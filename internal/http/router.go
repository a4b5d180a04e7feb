package http

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"natours/internal/apperr"
	"natours/internal/domain"
	"natours/internal/metrics"
	"natours/internal/service"
)

// RouterDeps agrupa lo que necesita NewRouter.
type RouterDeps struct {
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Production bool
	Users      *UserHandler
	Guard      *service.SessionGuard
	Cookies    *CookieHelper
}

// NewRouter configura el router de Gin con middlewares y rutas base.
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery, metricas y respuesta de errores.
	r.Use(
		zapLoggerMiddleware(deps.Logger),
		gin.Recovery(),
		metricsMiddleware(deps.Metrics),
		jsonContentTypeMiddleware(),
		errorResponder(deps.Logger, deps.Production),
	)

	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	protect := Protect(deps.Guard, deps.Cookies)
	identify := Identify(deps.Guard, deps.Cookies)

	users := r.Group("/api/v1/users")
	users.POST("/signup", deps.Users.Signup)
	users.POST("/login", deps.Users.Login)
	users.GET("/logout", deps.Users.Logout)
	users.POST("/forgotPassword", deps.Users.ForgotPassword)
	users.PATCH("/resetPassword/:token", deps.Users.ResetPassword)
	users.GET("/session", identify, deps.Users.Session)

	users.PATCH("/updateMyPassword", protect, deps.Users.UpdateMyPassword)
	users.GET("/me", protect, deps.Users.Me)
	users.GET("", protect, RestrictTo(domain.RoleAdmin, domain.RoleLeadGuide), deps.Users.ListUsers)
	users.PATCH("/:id/role", protect, RestrictTo(domain.RoleAdmin), deps.Users.UpdateRole)

	r.NoRoute(func(c *gin.Context) {
		abortWithError(c, apperr.NotFound(fmt.Sprintf("Can't find %s on this server!", c.Request.URL.Path), nil))
	})

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// metricsMiddleware etiqueta por plantilla de ruta para acotar la cardinalidad.
func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
