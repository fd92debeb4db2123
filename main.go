package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"profitcal/config"
	"profitcal/database"
	"profitcal/docstore"
	"profitcal/event"
	"profitcal/i18n"
	"profitcal/lock"
	"profitcal/logger"
	"profitcal/market"
	"profitcal/metrics"
	"profitcal/notify"
	"profitcal/storage"
	"profitcal/store"
	"profitcal/utils"
	"profitcal/web"
)

// Version 版本号
var Version = "1.4.0"

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-version" || os.Args[1] == "--version") {
		fmt.Printf("ProfitCal 空投收益日历\n")
		fmt.Printf("Version: %s\n", Version)
		os.Exit(0)
	}

	// 解析调试参数（-debug / --debug）
	debugMode := false
	filteredArgs := []string{os.Args[0]}
	for _, arg := range os.Args[1:] {
		switch arg {
		case "-debug", "--debug":
			debugMode = true
		default:
			filteredArgs = append(filteredArgs, arg)
		}
	}
	os.Args = filteredArgs

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
	if debugMode {
		cfg.System.LogLevel = "debug"
	}

	// 时区先行，后面所有日期运算都依赖它
	if err := utils.SetLocation(cfg.System.Timezone); err != nil {
		log.Printf("[WARN] 加载时区 %s 失败: %v，使用默认时区", cfg.System.Timezone, err)
	}
	logger.SetLocation(utils.GlobalLocation)
	logger.SetLevel(logger.ParseLogLevel(cfg.System.LogLevel))

	if err := i18n.Init(cfg.System.LogLanguage); err != nil {
		log.Printf("[WARN] 初始化 i18n 失败: %v", err)
	}
	logger.SetTranslateFunc(i18n.T)

	// 日志存储：应用日志进本地 SQLite，支持 Web 查询与实时推送
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.LogPath), 0755); err != nil {
		log.Printf("[WARN] 创建日志目录失败: %v", err)
	}
	logStorage, err := storage.NewLogStorage(cfg.Storage.LogPath)
	if err != nil {
		log.Printf("[WARN] 初始化日志存储失败: %v，日志不再入库", err)
		logStorage = nil
	} else {
		logger.InitLogStorage(func(level, message string) {
			logStorage.WriteLog(level, message)
		})
	}
	if err := logger.InitWebLogger(); err != nil {
		log.Printf("[WARN] 初始化 Web 日志失败: %v", err)
	}

	logger.Info("🚀 ProfitCal 启动...")
	logger.Info("📦 版本号: %s", Version)
	logger.Info("✅ 系统时区: %s，日志语言: %s", cfg.System.Timezone, cfg.System.LogLanguage)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 日志保留：每天清理一次过期日志
	if logStorage != nil && cfg.System.LogRetentionDays > 0 {
		go func() {
			ticker := time.NewTicker(24 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					removed, err := logStorage.CleanupOldLogs(cfg.System.LogRetentionDays)
					if err != nil {
						logger.Warn("⚠️ 清理日志失败: %v", err)
					} else if removed > 0 {
						logger.Info("🧹 已清理 %d 条过期日志（%d 天前）", removed, cfg.System.LogRetentionDays)
					}
				}
			}
		}()
	}

	// 事件总线 & 通知 & 事件持久化
	eventBus := event.NewEventBus(1000)
	notifier := notify.NewNotificationService(cfg)

	var eventDB database.Database
	dbConfig := &database.Config{
		Type:     cfg.Database.Type,
		DSN:      cfg.Database.DSN,
		LogLevel: cfg.Database.LogLevel,
	}
	eventDB, err = database.NewDatabase(dbConfig)
	if err != nil {
		logger.Warn("⚠️ 初始化事件数据库失败: %v，事件只记日志不落库", err)
		eventDB = nil
	} else {
		defer eventDB.Close()
		logger.Info("✅ 事件数据库已初始化 (类型: %s)", cfg.Database.Type)
	}

	var processorNotifier event.Notifier
	if notifier.Enabled() {
		processorNotifier = notifier
	}
	processor := event.NewProcessor(eventBus, eventDB, processorNotifier)
	processor.Start()
	defer processor.Stop()

	// 分布式写锁（默认 none，保持“最后写入获胜”）
	locker, err := lock.NewLock(&cfg.Lock)
	if err != nil {
		logger.Fatal("❌ 初始化分布式锁失败: %v", err)
	}
	defer locker.Close()

	// 文档快照缓存
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0755); err != nil {
		logger.Warn("⚠️ 创建数据目录失败: %v", err)
	}
	cache, err := storage.NewSQLiteStorage(cfg.Storage.Path)
	if err != nil {
		logger.Warn("⚠️ 初始化快照缓存失败: %v，远端故障时将无法降级", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	// 文档存储客户端与应用状态
	client := docstore.NewClient(docstore.Options{
		BaseURL:      cfg.DocStore.BaseURL,
		MasterKey:    cfg.DocStore.MasterKey,
		Timeout:      time.Duration(cfg.DocStore.TimeoutSeconds) * time.Second,
		WritesPerMin: cfg.DocStore.WritesPerMin,
	})
	state := store.NewAppState(cfg, client, cache, eventBus, locker)

	loadCtx, loadCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := state.Load(loadCtx, ""); err != nil {
		loadCancel()
		logger.Fatal("❌ 加载文档失败且无可用快照: %v", err)
	}
	loadCancel()
	state.StartBackground()
	defer state.Stop()

	// Prometheus 系统指标采集
	systemCollector := metrics.NewSystemCollector(30 * time.Second)
	systemCollector.Start()
	defer systemCollector.Stop()

	// Web 服务
	server, err := web.NewServer(cfg, state, logStorage, eventDB)
	if err != nil {
		logger.Fatal("❌ 初始化 Web 服务失败: %v", err)
	}
	server.Start(ctx)
	defer server.Stop()

	// 配置热更新：目前只接管日志级别与语言，结构性配置仍需重启
	if watcher, werr := config.NewConfigWatcher(configPath); werr == nil {
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("⚠️ 启动配置监控失败: %v", err)
		} else {
			defer watcher.Stop()
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case newCfg := <-watcher.GetUpdateChan():
						logger.SetLevel(logger.ParseLogLevel(newCfg.System.LogLevel))
						i18n.SetSystemLanguage(newCfg.System.LogLanguage)
						logger.Info("✅ 配置已热更新: 日志级别 %s，语言 %s",
							newCfg.System.LogLevel, newCfg.System.LogLanguage)
					case werr := <-watcher.GetErrorChan():
						logger.Warn("⚠️ 配置监控错误: %v", werr)
					}
				}
			}()
		}
	}

	// 可选：一次性触发下单（也可以用独立的 tools/trigger 二进制跑）
	var streams *market.StreamManager
	var userStream *market.UserStream
	if cfg.Trigger.Enabled {
		trigger := market.NewTrigger(&cfg.Trigger, cache, eventBus)
		streams = market.NewStreamManager(cfg.Trigger.MarketWsBase, cfg.Trigger.Symbol)
		streams.OnBookTicker(trigger.HandleTick)
		if err := streams.Start(ctx); err != nil {
			logger.Error("❌ 启动行情流失败: %v", err)
		} else {
			logger.Info("🎯 触发下单已武装: %s 阈值 %.8f", cfg.Trigger.Symbol, cfg.Trigger.PriceThreshold)
			eventBus.Publish(&event.Event{
				Type:    event.EventTypeTriggerArmed,
				Source:  "trigger",
				Title:   "触发下单已武装",
				Message: cfg.Trigger.Symbol,
			})

			// 每秒把折叠后的行情状态推给 Web 端
			go func() {
				ticker := time.NewTicker(time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if st, serr := streams.Snapshot(ctx); serr == nil {
							server.Hub().Broadcast("price", st)
						}
					}
				}
			}()
		}

		userStream = market.NewUserStream(trigger.Client(), cfg.Trigger.UserWsBase)
		if err := userStream.Start(ctx, func(update market.OrderUpdate) {
			if update.Status == "FILLED" {
				notifier.Send("触发订单已成交", fmt.Sprintf("%s %s 已全部成交", update.Symbol, update.ClientOrderID))
			}
		}); err != nil {
			logger.Warn("⚠️ 启动用户数据流失败: %v", err)
		}

		go func() {
			select {
			case <-ctx.Done():
			case record := <-trigger.Done():
				logger.Info("📋 触发下单流程结束: %s 状态 %s", record.Symbol, record.Status)
				// 一次性触发完成后行情流就没有存在的意义了
				streams.Stop()
			}
		}()
	}

	eventBus.Publish(&event.Event{
		Type:    event.EventTypeSystemStart,
		Source:  "system",
		Title:   "系统启动",
		Message: fmt.Sprintf("版本 %s", Version),
	})

	// 等待退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("📋 收到信号 %v，开始关闭...", sig)

	eventBus.Publish(&event.Event{
		Type:   event.EventTypeSystemStop,
		Source: "system",
		Title:  "系统停止",
	})
	// 给事件处理器一点时间消费停止事件
	time.Sleep(200 * time.Millisecond)

	if userStream != nil {
		userStream.Stop()
	}
	if streams != nil {
		streams.Stop()
	}
	cancel()
	eventBus.Close()
	if logStorage != nil {
		logStorage.Close()
	}
	logger.Info("✅ ProfitCal 已退出")
	logger.Close()
}
