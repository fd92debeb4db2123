package notify

import (
	"profitcal/config"
	"profitcal/logger"
)

// Notifier 通知渠道接口
type Notifier interface {
	Send(title, message string) error
	Name() string
}

// NotificationService 通知服务，按配置启用的渠道扇出发送
type NotificationService struct {
	notifiers []Notifier
	cfg       *config.Config
}

// NewNotificationService 创建通知服务
func NewNotificationService(cfg *config.Config) *NotificationService {
	ns := &NotificationService{cfg: cfg}

	if cfg.Notifications.Enabled {
		if cfg.Notifications.Telegram.Enabled && cfg.Notifications.Telegram.BotToken != "" {
			telegramNotifier, err := NewTelegramNotifier(cfg)
			if err != nil {
				logger.Warn("⚠️ 初始化 Telegram 通知失败: %v", err)
			} else {
				ns.notifiers = append(ns.notifiers, telegramNotifier)
				logger.Info("✅ Telegram 通知已启用")
			}
		}

		if cfg.Notifications.Webhook.Enabled && cfg.Notifications.Webhook.URL != "" {
			webhookNotifier, err := NewWebhookNotifier(cfg)
			if err != nil {
				logger.Warn("⚠️ 初始化 Webhook 通知失败: %v", err)
			} else {
				ns.notifiers = append(ns.notifiers, webhookNotifier)
				logger.Info("✅ Webhook 通知已启用")
			}
		}
	}

	return ns
}

// Send 异步发送到所有已启用的渠道，单个渠道失败不影响其他渠道
func (ns *NotificationService) Send(title, message string) {
	for _, n := range ns.notifiers {
		go func(n Notifier) {
			if err := n.Send(title, message); err != nil {
				logger.Warn("⚠️ %s 通知发送失败: %v", n.Name(), err)
			}
		}(n)
	}
}

// Enabled 是否有任何已启用的渠道
func (ns *NotificationService) Enabled() bool {
	return len(ns.notifiers) > 0
}
