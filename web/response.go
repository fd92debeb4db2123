package web

import (
	"github.com/gin-gonic/gin"
)

// respondOK 统一成功响应
func respondOK(c *gin.Context, data interface{}) {
	c.JSON(200, gin.H{"success": true, "data": data})
}

// respondMessage 带国际化消息的成功响应，消息语言跟随请求
func respondMessage(c *gin.Context, messageKey string) {
	c.JSON(200, gin.H{"success": true, "message": T(c, messageKey)})
}

// respondError 统一错误响应，messageKey 经过国际化
func respondError(c *gin.Context, status int, messageKey string, errs ...error) {
	msg := T(c, messageKey)
	if len(errs) > 0 && errs[0] != nil {
		msg = msg + ": " + errs[0].Error()
	}
	c.JSON(status, gin.H{"success": false, "error": msg})
}
