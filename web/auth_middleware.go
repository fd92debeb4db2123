package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"profitcal/event"
)

// authMiddleware 认证中间件。认证关闭时直接放行。
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.cfg.Web.AuthEnabled {
			c.Next()
			return
		}

		// 尚未设置密码时放行，引导前端进入首次设置流程
		if hasPwd, err := s.pm.HasPassword(); err == nil && !hasPwd {
			c.Next()
			return
		}

		session, exists := s.sessions.GetSessionFromRequest(c.Request)
		if !exists || session == nil {
			s.publishAuthFailed(c.ClientIP(), c.Request.URL.Path)
			respondError(c, http.StatusUnauthorized, "not_logged_in")
			c.Abort()
			return
		}

		c.Set("session", session)
		c.Next()
	}
}

func (s *Server) publishAuthFailed(ip, path string) {
	s.state.PublishEvent(&event.Event{
		Type:    event.EventTypeAuthFailed,
		Source:  "web",
		Title:   "未认证访问",
		Message: ip + " " + path,
	})
}
