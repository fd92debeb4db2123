package i18n

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// 文案随二进制内嵌，部署不需要携带 locales 目录
//
//go:embed locales/*.toml
var localeFS embed.FS

var (
	mu             sync.RWMutex
	bundle         *i18n.Bundle
	systemLanguage = "zh-CN"
)

// Init 加载内嵌的全部文案并设定系统语言。一个文件加载失败只告警，
// 全部失败才算初始化失败。未命中的 key 原样返回，所以响应里的
// 消息 key 永远不会变成空串。
func Init(lang string) error {
	mu.Lock()
	defer mu.Unlock()

	if lang != "" {
		systemLanguage = lang
	}

	b := i18n.NewBundle(language.Chinese)
	b.RegisterUnmarshalFunc("toml", yaml.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return fmt.Errorf("读取内嵌文案目录失败: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".toml") {
			continue
		}
		if _, lerr := b.LoadMessageFileFS(localeFS, "locales/"+name); lerr != nil {
			// logger 的翻译钩子此时还没挂上，只能直接打印
			fmt.Printf("[WARN] 加载文案 %s 失败: %v\n", name, lerr)
			continue
		}
		loaded++
	}
	if loaded == 0 {
		return fmt.Errorf("没有加载到任何文案文件")
	}

	bundle = b
	return nil
}

// GetLocalizer 获取指定语言的 Localizer，lang 为空时用系统语言
func GetLocalizer(lang string) *i18n.Localizer {
	mu.RLock()
	defer mu.RUnlock()

	if bundle == nil {
		return nil
	}
	if lang == "" {
		lang = systemLanguage
	}
	return i18n.NewLocalizer(bundle, lang)
}

// T 按系统语言翻译消息
func T(key string, data ...interface{}) string {
	mu.RLock()
	lang := systemLanguage
	mu.RUnlock()
	return TWithLang(lang, key, data...)
}

// TWithLang 按指定语言翻译消息。未初始化或 key 缺失时原样返回 key
func TWithLang(lang string, key string, data ...interface{}) string {
	localizer := GetLocalizer(lang)
	if localizer == nil {
		return key
	}

	var templateData map[string]interface{}
	if len(data) > 0 {
		if m, ok := data[0].(map[string]interface{}); ok {
			templateData = m
		}
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: templateData,
	})
	if err != nil {
		return key
	}
	return msg
}

// SetSystemLanguage 切换系统语言（配置热更新入口）
func SetSystemLanguage(lang string) {
	if lang == "" {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	systemLanguage = lang
}

// GetSystemLanguage 当前系统语言
func GetSystemLanguage() string {
	mu.RLock()
	defer mu.RUnlock()
	return systemLanguage
}
