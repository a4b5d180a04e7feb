package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"natours/internal/apperr"
)

const genericErrorMessage = "Something went very wrong!"

// abortWithError delega la respuesta al errorResponder.
func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// errorResponder traduce el ultimo error del contexto al sobre
// {"status": "fail"|"error", "message": ...}.
func errorResponder(logger *zap.Logger, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status, body := renderError(err, production)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
		}
		c.JSON(status, body)
	}
}

func renderError(err error, production bool) (int, gin.H) {
	status := apperr.StatusOf(err)
	label := "fail"
	if status >= http.StatusInternalServerError {
		label = "error"
	}

	appErr, operational := apperr.As(err)
	if operational {
		body := gin.H{"status": label, "message": appErr.Message}
		if !production && appErr.Err != nil {
			body["error"] = appErr.Err.Error()
		}
		return status, body
	}

	if production {
		return status, gin.H{"status": label, "message": genericErrorMessage}
	}
	return status, gin.H{"status": label, "message": genericErrorMessage, "error": err.Error()}
}
