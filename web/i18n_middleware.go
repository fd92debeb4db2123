package web

import (
	"strings"

	"github.com/gin-gonic/gin"

	"profitcal/i18n"
)

// I18nMiddleware 解析请求的 Accept-Language 头并设置到上下文，
// 接口响应里的提示消息按请求语言本地化
func I18nMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := parseAcceptLanguage(c.GetHeader("Accept-Language"))
		c.Set("language", lang)
		c.Next()
	}
}

// parseAcceptLanguage 解析 Accept-Language 头
// 示例: "zh-CN,zh;q=0.9,en;q=0.8" -> "zh-CN"
func parseAcceptLanguage(acceptLang string) string {
	if acceptLang == "" {
		return "zh-CN"
	}

	langs := strings.Split(acceptLang, ",")
	first := strings.TrimSpace(langs[0])
	if idx := strings.Index(first, ";"); idx != -1 {
		first = first[:idx]
	}

	// 只内置中英两套文案，其他语言退到英文
	lower := strings.ToLower(strings.TrimSpace(first))
	switch {
	case strings.HasPrefix(lower, "zh"):
		return "zh-CN"
	case lower == "":
		return "zh-CN"
	default:
		return "en-US"
	}
}

// requestLanguage 从上下文获取语言
func requestLanguage(c *gin.Context) string {
	if lang, exists := c.Get("language"); exists {
		if l, ok := lang.(string); ok {
			return l
		}
	}
	return "zh-CN"
}

// T 翻译消息（按请求语言）
func T(c *gin.Context, key string, data ...interface{}) string {
	return i18n.TWithLang(requestLanguage(c), key, data...)
}
