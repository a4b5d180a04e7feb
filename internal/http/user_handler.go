package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"natours/internal/apperr"
	"natours/internal/service"
)

// UserHandler mantiene dependencias para endpoints de usuarios y sesion.
type UserHandler struct {
	logger  *zap.Logger
	auth    *service.AuthService
	cookies *CookieHelper
}

func NewUserHandler(logger *zap.Logger, auth *service.AuthService, cookies *CookieHelper) *UserHandler {
	return &UserHandler{
		logger:  logger,
		auth:    auth,
		cookies: cookies,
	}
}

// Signup maneja POST /api/v1/users/signup.
func (h *UserHandler) Signup(c *gin.Context) {
	var req struct {
		Name            string `json:"name"`
		Email           string `json:"email"`
		Identity        string `json:"identity"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"passwordConfirm"`
		Role            string `json:"role"`
		Photo           string `json:"photo"`
	}
	if !h.bind(c, &req) {
		return
	}

	session, err := h.auth.Signup(c.Request.Context(), service.SignupInput{
		Name:            req.Name,
		Email:           identityOf(req.Email, req.Identity),
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		Role:            req.Role,
		Photo:           req.Photo,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.sendSession(c, http.StatusCreated, session)
}

// Login maneja POST /api/v1/users/login.
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Identity string `json:"identity"`
		Password string `json:"password"`
	}
	if !h.bind(c, &req) {
		return
	}

	session, err := h.auth.Login(c.Request.Context(), identityOf(req.Email, req.Identity), req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.sendSession(c, http.StatusOK, session)
}

// Logout maneja GET /api/v1/users/logout. No hay revocacion en servidor.
func (h *UserHandler) Logout(c *gin.Context) {
	h.cookies.ClearSession(c)
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// ForgotPassword maneja POST /api/v1/users/forgotPassword.
func (h *UserHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Identity string `json:"identity"`
	}
	if !h.bind(c, &req) {
		return
	}

	if err := h.auth.ForgotPassword(c.Request.Context(), identityOf(req.Email, req.Identity)); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Token sent to email!"})
}

// ResetPassword maneja PATCH /api/v1/users/resetPassword/:token.
func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Password        string `json:"password"`
		PasswordConfirm string `json:"passwordConfirm"`
	}
	if !h.bind(c, &req) {
		return
	}

	session, err := h.auth.ResetPassword(c.Request.Context(), c.Param("token"), req.Password, req.PasswordConfirm)
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.sendSession(c, http.StatusOK, session)
}

// UpdateMyPassword maneja PATCH /api/v1/users/updateMyPassword (protegido).
func (h *UserHandler) UpdateMyPassword(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		abortWithError(c, errMissingProtect)
		return
	}
	var req struct {
		PasswordCurrent string `json:"passwordCurrent"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"passwordConfirm"`
	}
	if !h.bind(c, &req) {
		return
	}

	session, err := h.auth.UpdatePassword(c.Request.Context(), user.ID, req.PasswordCurrent, req.Password, req.PasswordConfirm)
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.sendSession(c, http.StatusOK, session)
}

// Me maneja GET /api/v1/users/me (protegido).
func (h *UserHandler) Me(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		abortWithError(c, errMissingProtect)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"user": user}})
}

// Session maneja GET /api/v1/users/session; nunca falla por falta de sesion.
func (h *UserHandler) Session(c *gin.Context) {
	var payload any
	if user, ok := CurrentUser(c); ok {
		payload = user
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"user": payload}})
}

// ListUsers maneja GET /api/v1/users (admin, lead-guide).
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.auth.ListUsers(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "results": len(users), "data": gin.H{"users": users}})
}

// UpdateRole maneja PATCH /api/v1/users/:id/role (admin).
func (h *UserHandler) UpdateRole(c *gin.Context) {
	var req struct {
		Role string `json:"role"`
	}
	if !h.bind(c, &req) {
		return
	}

	user, err := h.auth.AssignRole(c.Request.Context(), c.Param("id"), req.Role)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"user": user}})
}

// identityOf acepta "identity" como alias de "email".
func identityOf(emailAddr, identity string) string {
	if strings.TrimSpace(emailAddr) != "" {
		return emailAddr
	}
	return identity
}

func (h *UserHandler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Warn("invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
		abortWithError(c, apperr.BadRequest("Invalid request body", err))
		return false
	}
	return true
}

func (h *UserHandler) sendSession(c *gin.Context, status int, session service.Session) {
	h.cookies.SetSession(c, session.Token)
	c.JSON(status, gin.H{
		"status": "success",
		"token":  session.Token,
		"data":   gin.H{"user": session.User},
	})
}
