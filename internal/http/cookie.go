package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"natours/internal/service"
)

const (
	SessionCookie = "jwt"

	loggedOutMaxAge = 10
)

// CookieConfig se arma en el arranque desde config.Config.
type CookieConfig struct {
	Secure   bool
	MaxAge   time.Duration
	Path     string
	SameSite http.SameSite
}

// CookieHelper maneja la cookie de sesion.
type CookieHelper struct {
	config CookieConfig
}

func NewCookieHelper(config CookieConfig) *CookieHelper {
	if config.Path == "" {
		config.Path = "/"
	}
	if config.SameSite == 0 {
		config.SameSite = http.SameSiteLaxMode
	}
	return &CookieHelper{config: config}
}

// SetSession guarda el token en la cookie jwt.
func (h *CookieHelper) SetSession(c *gin.Context, token string) {
	h.setCookie(c, token, int(h.config.MaxAge.Seconds()))
}

// ClearSession sobrescribe la cookie con un valor inerte de vida corta.
func (h *CookieHelper) ClearSession(c *gin.Context) {
	h.setCookie(c, service.LoggedOutToken, loggedOutMaxAge)
}

// SessionToken busca el token primero en Authorization: Bearer y luego en la cookie.
func (h *CookieHelper) SessionToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	token, err := c.Cookie(SessionCookie)
	if err != nil || token == service.LoggedOutToken {
		return ""
	}
	return token
}

func (h *CookieHelper) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(h.config.SameSite)
	c.SetCookie(
		SessionCookie,
		value,
		maxAge,
		h.config.Path,
		"",
		h.config.Secure,
		true,
	)
}
