package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"profitcal/config"
	"profitcal/database"
	"profitcal/logger"
	"profitcal/storage"
	"profitcal/store"
)

// Server Web 服务器
type Server struct {
	cfg        *config.Config
	state      *store.AppState
	logStorage *storage.LogStorage
	eventDB    database.Database

	pm       *PasswordManager
	sessions *SessionManager
	hub      *WebSocketHub

	server *http.Server
}

// NewServer 创建 Web 服务器
func NewServer(cfg *config.Config, state *store.AppState, ls *storage.LogStorage, eventDB database.Database) (*Server, error) {
	if cfg.System.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:        cfg,
		state:      state,
		logStorage: ls,
		eventDB:    eventDB,
		sessions:   NewSessionManager(),
		hub:        NewWebSocketHub(),
	}

	if cfg.Web.AuthEnabled {
		pm, err := NewPasswordManager(cfg.Web.DataDir)
		if err != nil {
			return nil, fmt.Errorf("初始化密码管理器失败: %w", err)
		}
		s.pm = pm
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(GinLoggerMiddleware(cfg.System.LogLevel == "debug"))
	r.Use(I18nMiddleware())
	s.setupRoutes(r)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Web.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(r *gin.Engine) {
	// Prometheus 抓取端点（不需要认证）
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket（日志与状态推送）
	r.GET("/ws", s.handleWebSocket)

	api := r.Group("/api")
	{
		// 认证相关路由（不需要认证）
		auth := api.Group("/auth")
		{
			auth.GET("/status", s.getAuthStatus)
			auth.POST("/password/set", s.setPassword)
			auth.POST("/password/verify", s.verifyPassword)
			auth.POST("/logout", s.logout)
		}

		protected := api.Group("")
		protected.Use(s.authMiddleware())
		{
			protected.GET("/status", s.getStatus)
			protected.GET("/system", s.getSystemMetrics)
			protected.POST("/refresh", s.refreshData)
			protected.POST("/bin/switch", s.switchBin)

			// 用户
			protected.GET("/users", s.listUsers)
			protected.POST("/users", s.createUser)
			protected.DELETE("/users/:user", s.deleteUser)
			protected.PUT("/users/:user/config", s.updateUserConfig)

			// 平台配置与记录
			protected.GET("/platform/:user/:platform/config", s.getPlatformConfig)
			protected.PUT("/platform/:user/:platform/config", s.updatePlatformConfig)
			protected.GET("/calendar/:user/:platform", s.getCalendar)
			protected.GET("/records/:user/:platform", s.getDayRecords)
			protected.POST("/records/:user/:platform", s.saveDayRecords)
			protected.DELETE("/records/:user/:platform", s.clearDayRecords)
			protected.POST("/records/:user/:platform/quick", s.quickCreateRecord)
			protected.GET("/stats/:user/:platform", s.getStats)
			protected.GET("/score/:user/:platform/simulate", s.simulateScore)

			// OKX 账号
			protected.GET("/okx/:user/accounts", s.listOKXAccounts)
			protected.POST("/okx/:user/accounts", s.createOKXAccount)
			protected.DELETE("/okx/:user/accounts/:account", s.deleteOKXAccount)
			protected.POST("/okx/:user/accounts/:account/rename", s.renameOKXAccount)

			// 任务
			protected.GET("/tasks/:user", s.getTasks)
			protected.POST("/tasks/:user/templates", s.createTaskTemplate)
			protected.PUT("/tasks/:user/templates/:id", s.updateTaskTemplate)
			protected.DELETE("/tasks/:user/templates/:id", s.deleteTaskTemplate)
			protected.POST("/tasks/:user/generate", s.generateTasks)
			protected.POST("/tasks/:user/complete", s.completeTask)
			protected.POST("/tasks/:user/uncomplete", s.uncompleteTask)
			protected.POST("/tasks/:user/remark", s.setTaskRemark)
			protected.DELETE("/tasks/:user/days", s.deleteTaskDay)
			protected.GET("/tasks/:user/statistics", s.getTaskStatistics)

			// 导入导出
			protected.GET("/export", s.exportData)
			protected.POST("/import", s.importData)

			// 操作日志与应用日志
			protected.GET("/oplogs/:user/:platform", s.getOperationLogs)
			protected.POST("/oplogs/:user/:platform/clear", s.clearOperationLogs)
			protected.GET("/logs", s.getAppLogs)
			protected.GET("/events", s.getEvents)
		}
	}
}

// Start 启动 Web 服务器
func (s *Server) Start(ctx context.Context) {
	go func() {
		logger.Info("🌐 Web服务器启动在 http://localhost:%d", s.cfg.Web.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("❌ Web服务器启动失败: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logger.Error("❌ Web服务器关闭失败: %v", err)
		} else {
			logger.Info("✅ Web服务器已关闭")
		}
	}()
}

// Stop 停止 Web 服务器
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.server.Shutdown(shutdownCtx)

	if s.pm != nil {
		s.pm.Close()
	}
}

// Hub 暴露 WebSocket 中心（main 里把日志存储接进来）
func (s *Server) Hub() *WebSocketHub {
	return s.hub
}
