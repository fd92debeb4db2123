package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DocStoreConfig 文档存储（JSONBin 风格）配置
type DocStoreConfig struct {
	BaseURL        string            `yaml:"base_url"`    // 形如 https://api.jsonbin.io/v3/b/
	MasterKey      string            `yaml:"master_key"`  // X-Master-Key 请求头
	DefaultBin     string            `yaml:"default_bin"` // 兜底文档 ID
	Bins           map[string]string `yaml:"bins"`        // 别名 → 文档 ID 映射
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	WritesPerMin   int               `yaml:"writes_per_minute"` // PUT 限速（0 表示不限）
}

// TriggerConfig 一次性触发下单配置
type TriggerConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Symbol         string  `yaml:"symbol"`
	APIKey         string  `yaml:"api_key"`
	SecretKey      string  `yaml:"secret_key"`
	Testnet        bool    `yaml:"testnet"`         // 下单走测试网
	PriceThreshold float64 `yaml:"price_threshold"` // 卖一低于该价格时触发
	Notional       float64 `yaml:"notional"`        // 每单金额（USDT）
	MarketWsBase   string  `yaml:"market_ws_base"`  // 行情流地址（主网）
	UserWsBase     string  `yaml:"user_ws_base"`    // 用户流地址（测试网）
}

// NotificationsConfig 通知配置
type NotificationsConfig struct {
	Enabled  bool `yaml:"enabled"`
	Telegram struct {
		Enabled  bool   `yaml:"enabled"`
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Webhook struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
	} `yaml:"webhook"`
}

// LockConfig 分布式写锁配置（默认关闭，保持“最后写入获胜”的原始行为）
type LockConfig struct {
	Type       string `yaml:"type"` // none / redis
	RedisAddr  string `yaml:"redis_addr"`
	RedisDB    int    `yaml:"redis_db"`
	RedisPass  string `yaml:"redis_password"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// Config 收益日历服务配置
type Config struct {
	DocStore DocStoreConfig `yaml:"docstore"`

	Storage struct {
		Path    string `yaml:"path"`     // 文档快照缓存（sqlite）
		LogPath string `yaml:"log_path"` // 应用日志存储（sqlite）
	} `yaml:"storage"`

	Database struct {
		Type     string `yaml:"type"` // sqlite / mysql / postgres
		DSN      string `yaml:"dsn"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"database"`

	Web struct {
		Port        int    `yaml:"port"`
		AuthEnabled bool   `yaml:"auth_enabled"`
		DataDir     string `yaml:"data_dir"` // auth.db 所在目录
	} `yaml:"web"`

	System struct {
		LogLevel         string `yaml:"log_level"`
		Timezone         string `yaml:"timezone"`     // 时区，如 "Asia/Shanghai"
		LogLanguage      string `yaml:"log_language"` // 日志语言，如 "zh-CN" 或 "en-US"
		LogRetentionDays int    `yaml:"log_retention_days"`
	} `yaml:"system"`

	Refresh struct {
		IntervalSeconds     int `yaml:"interval_seconds"`      // 定期重新拉取文档
		TaskCheckIntervalSec int `yaml:"task_check_interval_seconds"` // 跨天任务生成检查
	} `yaml:"refresh"`

	Trigger TriggerConfig `yaml:"trigger"`

	Notifications NotificationsConfig `yaml:"notifications"`

	Lock LockConfig `yaml:"lock"`
}

// LoadConfig 从 YAML 文件加载配置
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return cfg, nil
}

// Validate 验证配置并补全默认值
func (c *Config) Validate() error {
	if c.DocStore.BaseURL == "" {
		c.DocStore.BaseURL = "https://api.jsonbin.io/v3/b/"
	}
	if c.DocStore.TimeoutSeconds <= 0 {
		c.DocStore.TimeoutSeconds = 10
	}
	if c.DocStore.MasterKey == "" {
		return fmt.Errorf("docstore.master_key 未配置")
	}
	if c.DocStore.DefaultBin == "" && len(c.DocStore.Bins) == 0 {
		return fmt.Errorf("docstore 至少需要配置 default_bin 或 bins")
	}

	if c.Storage.Path == "" {
		c.Storage.Path = "./data/profitcal.db"
	}
	if c.Storage.LogPath == "" {
		c.Storage.LogPath = "./data/logs.db"
	}

	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	switch c.Database.Type {
	case "sqlite", "mysql", "postgres", "postgresql":
	default:
		return fmt.Errorf("不支持的数据库类型: %s", c.Database.Type)
	}
	if c.Database.DSN == "" && c.Database.Type == "sqlite" {
		c.Database.DSN = "./data/audit.db"
	}

	if c.Web.Port <= 0 {
		c.Web.Port = 28890
	}
	if c.Web.DataDir == "" {
		c.Web.DataDir = "./data"
	}

	if c.System.Timezone == "" {
		c.System.Timezone = "Asia/Shanghai"
	}
	if c.System.LogLanguage == "" {
		c.System.LogLanguage = "zh-CN"
	}
	if c.System.LogRetentionDays < 0 {
		return fmt.Errorf("log_retention_days 不能为负数")
	}

	if c.Refresh.IntervalSeconds <= 0 {
		c.Refresh.IntervalSeconds = 300
	}
	if c.Refresh.TaskCheckIntervalSec <= 0 {
		c.Refresh.TaskCheckIntervalSec = 60
	}

	if c.Trigger.Enabled {
		if c.Trigger.Symbol == "" {
			return fmt.Errorf("trigger.symbol 未配置")
		}
		if c.Trigger.APIKey == "" || c.Trigger.SecretKey == "" {
			return fmt.Errorf("trigger API 配置不完整")
		}
		if c.Trigger.PriceThreshold <= 0 {
			return fmt.Errorf("trigger.price_threshold 必须大于 0")
		}
		if c.Trigger.Notional <= 0 {
			c.Trigger.Notional = 10
		}
		if c.Trigger.MarketWsBase == "" {
			c.Trigger.MarketWsBase = "wss://stream.binance.com:9443/ws"
		}
		if c.Trigger.UserWsBase == "" {
			c.Trigger.UserWsBase = "wss://stream.testnet.binance.vision/ws"
		}
	}

	switch c.Lock.Type {
	case "", "none":
		c.Lock.Type = "none"
	case "redis":
		if c.Lock.RedisAddr == "" {
			return fmt.Errorf("lock.redis_addr 未配置")
		}
		if c.Lock.TTLSeconds <= 0 {
			c.Lock.TTLSeconds = 30
		}
	default:
		return fmt.Errorf("不支持的锁类型: %s", c.Lock.Type)
	}

	return nil
}

// ResolveBin 按别名解析文档 ID：别名映射 → 兜底 ID
func (c *Config) ResolveBin(alias string) string {
	if alias != "" {
		if id, ok := c.DocStore.Bins[alias]; ok {
			return id
		}
	}
	return c.DocStore.DefaultBin
}
