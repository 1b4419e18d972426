package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/inkwell/internal/db"
	"github.com/inkwell/internal/service"
)

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func userPayload(user *db.User) gin.H {
	return gin.H{
		"id":        user.ID,
		"firstName": user.FirstName,
		"lastName":  user.LastName,
		"email":     user.Email,
		"role":      user.Role,
	}
}

// Register 创建普通账号。
func (a *API) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req, "invalid request body") {
		return
	}

	user, err := a.users.Register(req.FirstName, req.LastName, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserExists):
			respondError(c, http.StatusBadRequest, "User already exists")
		case service.IsValidationError(err):
			respondError(c, http.StatusBadRequest, err.Error())
		default:
			c.Error(err)
			respondError(c, http.StatusInternalServerError, "failed to register")
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": userPayload(user)})
}

// Login 校验凭证并写入会话。
func (a *API) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req, "invalid request body") {
		return
	}

	user, err := a.users.Authenticate(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		c.Error(err)
		respondError(c, http.StatusInternalServerError, "failed to log in")
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Set("role", user.Role)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to save session")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userPayload(user)})
}

// Logout 清空会话。
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// ForgotPassword 发送密码重置邮件。邮箱不存在时同样返回成功，
// 避免接口被用来探测注册邮箱。
func (a *API) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindJSON(c, &req, "invalid request body") {
		return
	}

	err := a.users.RequestPasswordReset(c.Request.Context(), req.Email, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrResetThrottled):
			respondError(c, http.StatusTooManyRequests, "A reset email was sent recently. Please wait a few minutes before trying again.")
		case service.IsValidationError(err):
			respondError(c, http.StatusBadRequest, err.Error())
		default:
			c.Error(err)
			respondError(c, http.StatusInternalServerError, "failed to send reset email")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "If that email is registered, a reset link has been sent"})
}

// ResetPassword 用邮件里的一次性口令设置新密码。
func (a *API) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req, "invalid request body") {
		return
	}

	user, err := a.users.ResetPassword(req.Token, req.Password, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrResetInvalid):
			respondError(c, http.StatusBadRequest, "Invalid or expired reset token")
		case service.IsValidationError(err):
			respondError(c, http.StatusBadRequest, err.Error())
		default:
			c.Error(err)
			respondError(c, http.StatusInternalServerError, "failed to reset password")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset", "user": userPayload(user)})
}

// AuthRequired 要求请求携带已登录的会话。
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if session.Get("user_id") == nil {
			respondError(c, http.StatusUnauthorized, "authentication required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminRequired 在 AuthRequired 之后使用，校验管理员角色。
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		role, _ := session.Get("role").(string)
		if role != db.RoleAdmin {
			respondError(c, http.StatusForbidden, "admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}
