package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"profitcal/config"
	"profitcal/event"
	"profitcal/logger"
	"profitcal/market"
	"profitcal/notify"
	"profitcal/storage"
	"profitcal/utils"
)

// 一次性触发下单器的独立入口。不带 Web 界面，盯住卖一价，
// 触发一笔限价买单并确认订单回报后退出。

func main() {
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("[FATAL] 加载配置失败: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] 配置校验失败: %v", err)
	}
	if !cfg.Trigger.Enabled {
		log.Fatalf("[FATAL] trigger.enabled 未开启")
	}

	if err := utils.SetLocation(cfg.System.Timezone); err == nil {
		logger.SetLocation(utils.GlobalLocation)
	}
	logger.SetLevel(logger.ParseLogLevel(cfg.System.LogLevel))

	logger.Info("🚀 触发下单器启动: %s 阈值 %.8f 金额 %.2f USDT",
		cfg.Trigger.Symbol, cfg.Trigger.PriceThreshold, cfg.Trigger.Notional)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 下单记录落到同一个本地库
	var cache *storage.SQLiteStorage
	if cache, err = storage.NewSQLiteStorage(cfg.Storage.Path); err != nil {
		logger.Warn("⚠️ 初始化本地存储失败: %v，下单记录不落库", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	bus := event.NewEventBus(100)
	defer bus.Close()
	notifier := notify.NewNotificationService(cfg)

	trigger := market.NewTrigger(&cfg.Trigger, cache, bus)

	streams := market.NewStreamManager(cfg.Trigger.MarketWsBase, cfg.Trigger.Symbol)
	streams.OnBookTicker(trigger.HandleTick)
	if err := streams.Start(ctx); err != nil {
		logger.Fatal("❌ 启动行情流失败: %v", err)
	}
	defer streams.Stop()

	// 订单回报：成交即通知
	filled := make(chan market.OrderUpdate, 1)
	userStream := market.NewUserStream(trigger.Client(), cfg.Trigger.UserWsBase)
	if err := userStream.Start(ctx, func(update market.OrderUpdate) {
		if update.Status == "FILLED" {
			select {
			case filled <- update:
			default:
			}
		}
	}); err != nil {
		logger.Warn("⚠️ 启动用户数据流失败: %v，无法确认成交", err)
	} else {
		defer userStream.Stop()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("📋 收到信号 %v，未触发即退出", sig)
		return
	case record := <-trigger.Done():
		logger.Info("📋 下单流程结束: %s 状态 %s", record.Symbol, record.Status)
		if notifier.Enabled() {
			notifier.Send("触发下单",
				fmt.Sprintf("%s 状态 %s 数量 %s", record.Symbol, record.Status,
					market.FormatQuantity(record.Quantity)))
		}
		if record.Status == "FAILED" || record.Status == "REJECTED" {
			return
		}
	}

	// 挂单成功后等待成交回报，最多等5分钟
	select {
	case update := <-filled:
		logger.Info("✅ 订单已成交: %s 成交量 %.8f", update.Symbol, update.FilledQty)
		if notifier.Enabled() {
			notifier.Send("触发订单已成交", fmt.Sprintf("%s 已全部成交", update.Symbol))
		}
	case <-time.After(5 * time.Minute):
		logger.Warn("⚠️ 等待成交超时，挂单仍在交易所，退出")
	case sig := <-sigChan:
		logger.Info("📋 收到信号 %v，挂单仍在交易所，退出", sig)
	}
}
