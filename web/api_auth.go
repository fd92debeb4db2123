package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"profitcal/logger"
)

// getAuthStatus 认证状态（前端据此决定进入设置还是登录流程）
func (s *Server) getAuthStatus(c *gin.Context) {
	if !s.cfg.Web.AuthEnabled {
		respondOK(c, gin.H{"enabled": false})
		return
	}

	hasPwd, err := s.pm.HasPassword()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "update_data_failed", err)
		return
	}
	_, loggedIn := s.sessions.GetSessionFromRequest(c.Request)
	respondOK(c, gin.H{
		"enabled":     true,
		"hasPassword": hasPwd,
		"loggedIn":    loggedIn,
	})
}

// setPassword 设置访问密码。首次设置不需要旧密码，
// 修改时必须先验证旧密码。
func (s *Server) setPassword(c *gin.Context) {
	if !s.cfg.Web.AuthEnabled {
		respondError(c, http.StatusBadRequest, "auth_disabled")
		return
	}

	var req struct {
		Password    string `json:"password" binding:"required"`
		OldPassword string `json:"oldPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	hasPwd, err := s.pm.HasPassword()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "update_data_failed", err)
		return
	}
	if hasPwd {
		ok, verr := s.pm.VerifyPassword(req.OldPassword)
		if verr != nil {
			respondError(c, http.StatusInternalServerError, "update_data_failed", verr)
			return
		}
		if !ok {
			respondError(c, http.StatusUnauthorized, "wrong_password")
			return
		}
	}

	if err := s.pm.SetPassword(req.Password); err != nil {
		respondError(c, http.StatusBadRequest, "update_data_failed", err)
		return
	}
	logger.Info("✅ 访问密码已更新")
	respondMessage(c, "password_set_success")
}

// verifyPassword 登录：校验密码并发放会话 Cookie
func (s *Server) verifyPassword(c *gin.Context) {
	if !s.cfg.Web.AuthEnabled {
		respondError(c, http.StatusBadRequest, "auth_disabled")
		return
	}

	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	ok, err := s.pm.VerifyPassword(req.Password)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "update_data_failed", err)
		return
	}
	if !ok {
		s.publishAuthFailed(c.ClientIP(), "/api/auth/password/verify")
		respondError(c, http.StatusUnauthorized, "wrong_password")
		return
	}

	session, err := s.sessions.CreateSession(c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "update_data_failed", err)
		return
	}
	s.sessions.SetSessionCookie(c.Writer, session.SessionID)
	respondMessage(c, "login_success")
}

// logout 退出登录
func (s *Server) logout(c *gin.Context) {
	if cookie, err := c.Request.Cookie("session_id"); err == nil {
		s.sessions.DeleteSession(cookie.Value)
	}
	s.sessions.ClearSessionCookie(c.Writer)
	respondMessage(c, "logout_success")
}
