package web

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"profitcal/logger"
	"profitcal/metrics"
)

// GinLoggerMiddleware 自定义 Gin 日志中间件。
// logAll=true 时全量输出；否则仅记录错误请求（状态码 >= 400）。
func GinLoggerMiddleware(logAll bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		statusCode := c.Writer.Status()
		latency := time.Since(start)

		// 指标以路由模板为准，避免按具体参数爆炸
		routePath := c.FullPath()
		if routePath == "" {
			routePath = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, routePath, strconv.Itoa(statusCode), latency)

		// 非 debug 模式只记录 4xx/5xx
		if !logAll && statusCode < 400 {
			return
		}

		if raw != "" {
			path = path + "?" + raw
		}

		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		var logMessage string
		if errorMessage != "" {
			logMessage = fmt.Sprintf("[GIN] %d | %v | %s | %-7s %s | Error: %s",
				statusCode, latency, c.ClientIP(), c.Request.Method, path, errorMessage)
		} else {
			logMessage = fmt.Sprintf("[GIN] %d | %v | %s | %-7s %s",
				statusCode, latency, c.ClientIP(), c.Request.Method, path)
		}

		logger.WriteWebLog(logMessage)
	}
}
