package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"profitcal/config"
	"profitcal/docstore"
	"profitcal/event"
	"profitcal/ledger"
	"profitcal/lock"
	"profitcal/logger"
	"profitcal/metrics"
	"profitcal/storage"
	"profitcal/utils"
)

const writeLockKey = "document"

// AppState 应用状态：远端文档的内存镜像。所有读写都经过这里，
// 写入遵循 读改写 + 整体 PUT + 回显覆盖 的周期。
type AppState struct {
	cfg    *config.Config
	client *docstore.Client
	cache  *storage.SQLiteStorage
	bus    *event.EventBus
	locker lock.DistributedLock

	mu       sync.RWMutex
	binID    string
	doc      *ledger.ProfitData
	lastSync time.Time
	offline  bool // 远端不可用，当前镜像来自本地快照

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAppState 创建应用状态
func NewAppState(cfg *config.Config, client *docstore.Client, cache *storage.SQLiteStorage,
	bus *event.EventBus, locker lock.DistributedLock) *AppState {
	if locker == nil {
		locker = lock.NewNopLock()
	}
	return &AppState{
		cfg:      cfg,
		client:   client,
		cache:    cache,
		bus:      bus,
		locker:   locker,
		stopChan: make(chan struct{}),
	}
}

// Load 解析别名并拉取文档。远端失败时降级到本地快照。
func (s *AppState) Load(ctx context.Context, binAlias string) error {
	binID := s.cfg.ResolveBin(binAlias)
	if binID == "" {
		return fmt.Errorf("无法解析文档 ID（别名 %q）", binAlias)
	}

	start := time.Now()
	doc, err := s.client.Fetch(ctx, binID)
	if err != nil {
		metrics.RecordDocstoreRequest("fetch", "error", time.Since(start))
		logger.Warn("⚠️ 拉取文档失败: %v，尝试本地快照", err)
		s.publish(event.EventTypeDocFetchFailed, "拉取文档失败", err.Error())
		return s.loadFromSnapshot(binID)
	}
	metrics.RecordDocstoreRequest("fetch", "ok", time.Since(start))

	s.adopt(binID, doc, false)
	s.saveSnapshot(binID, doc)
	logger.Info("✅ 文档加载成功: %d 个用户", len(doc.Users))
	s.publish(event.EventTypeDataRefreshed, "数据刷新", fmt.Sprintf("%d 个用户", len(doc.Users)))
	return nil
}

// loadFromSnapshot 降级：用最近一次成功拉取的快照构建镜像
func (s *AppState) loadFromSnapshot(binID string) error {
	if s.cache == nil {
		return fmt.Errorf("远端不可用且未配置本地快照")
	}
	snap, err := s.cache.LatestSnapshot(binID)
	if err != nil || snap == nil {
		return fmt.Errorf("远端不可用且没有可用快照")
	}

	doc := ledger.NewProfitData()
	if err := json.Unmarshal(snap.Document, doc); err != nil {
		return fmt.Errorf("解析本地快照失败: %w", err)
	}
	doc.SyncUsers()

	s.adopt(binID, doc, true)
	logger.Warn("⚠️ 使用 %s 的本地快照（%s）", binID, snap.FetchedAt.Format(time.RFC3339))
	return nil
}

func (s *AppState) adopt(binID string, doc *ledger.ProfitData, offline bool) {
	s.mu.Lock()
	s.binID = binID
	s.doc = doc
	s.lastSync = time.Now()
	s.offline = offline
	s.mu.Unlock()

	metrics.SetDocumentStats(len(doc.Users), countRecords(doc))
}

func (s *AppState) saveSnapshot(binID string, doc *ledger.ProfitData) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return
	}
	if err := s.cache.SaveSnapshot(binID, payload); err != nil {
		logger.Debug("保存快照失败: %v", err)
		return
	}
	s.cache.PruneSnapshots(binID, 10)
}

// Refresh 重新拉取当前文档
func (s *AppState) Refresh(ctx context.Context) error {
	s.mu.RLock()
	binID := s.binID
	s.mu.RUnlock()
	if binID == "" {
		return fmt.Errorf("尚未加载任何文档")
	}

	start := time.Now()
	doc, err := s.client.Fetch(ctx, binID)
	if err != nil {
		metrics.RecordDocstoreRequest("fetch", "error", time.Since(start))
		return err
	}
	metrics.RecordDocstoreRequest("fetch", "ok", time.Since(start))

	s.adopt(binID, doc, false)
	s.saveSnapshot(binID, doc)
	return nil
}

// Read 在读锁下访问镜像。fn 不得保留对文档的引用。
func (s *AppState) Read(fn func(doc *ledger.ProfitData)) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return fmt.Errorf("尚未加载任何文档")
	}
	fn(s.doc)
	return nil
}

// Mutate 读改写周期：在写锁下应用 fn，整体 PUT 远端，
// 成功后以远端回显覆盖镜像。镜像保留本地修改即使 PUT 失败，
// 下一次刷新会重新对齐。
func (s *AppState) Mutate(ctx context.Context, fn func(doc *ledger.ProfitData) error) error {
	// 可选的分布式写锁；默认空实现，保持“最后写入获胜”
	ttl := time.Duration(s.cfg.Lock.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if err := s.locker.Lock(ctx, writeLockKey, ttl); err != nil {
		return fmt.Errorf("获取写锁失败: %w", err)
	}
	defer s.locker.Unlock(context.Background(), writeLockKey)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return fmt.Errorf("尚未加载任何文档")
	}
	if s.offline {
		return fmt.Errorf("当前为快照降级模式，拒绝写入")
	}

	if err := fn(s.doc); err != nil {
		return err
	}
	s.doc.SyncUsers()

	start := time.Now()
	echoed, err := s.client.Put(ctx, s.binID, s.doc)
	if err != nil {
		metrics.RecordDocstoreRequest("put", "error", time.Since(start))
		s.publish(event.EventTypeDocWriteFailed, "写入文档失败", err.Error())
		return fmt.Errorf("保存到远端失败: %w", err)
	}
	metrics.RecordDocstoreRequest("put", "ok", time.Since(start))

	s.doc = echoed
	s.lastSync = time.Now()
	metrics.SetDocumentStats(len(echoed.Users), countRecords(echoed))
	s.publish(event.EventTypeDataSaved, "数据保存", "")

	go s.saveSnapshot(s.binID, echoed)
	return nil
}

// Status 状态摘要（状态接口用）
type Status struct {
	BinID    string    `json:"binId"`
	Users    int       `json:"users"`
	Offline  bool      `json:"offline"`
	LastSync time.Time `json:"lastSync"`
}

// Status 当前状态摘要
func (s *AppState) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		BinID:    s.binID,
		Offline:  s.offline,
		LastSync: s.lastSync,
	}
	if s.doc != nil {
		st.Users = len(s.doc.Users)
	}
	return st
}

// StartBackground 启动后台循环：定期刷新文档、跨天生成任务快照
func (s *AppState) StartBackground() {
	refreshInterval := time.Duration(s.cfg.Refresh.IntervalSeconds) * time.Second
	taskInterval := time.Duration(s.cfg.Refresh.TaskCheckIntervalSec) * time.Second

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if err := s.Refresh(ctx); err != nil {
					logger.Warn("⚠️ 定期刷新失败: %v", err)
				}
				cancel()
			}
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(taskInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.generateDailyTasks()
			}
		}
	}()
}

// generateDailyTasks 为所有配置了任务模板的用户生成今天的任务快照。
// 生成按日幂等，跨天后第一次检查才会真正写入。
func (s *AppState) generateDailyTasks() {
	now := utils.TodayStartMillis() + 1
	generated := false

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.Mutate(ctx, func(doc *ledger.ProfitData) error {
		for name, user := range doc.Data {
			if user.Tasks == nil || len(user.Tasks.Tasks) == 0 {
				continue
			}
			if user.Tasks.GenerateTodayTasks(now) {
				generated = true
				logger.Info("📅 已为 %s 生成今日任务快照", name)
			}
		}
		if !generated {
			return errNothingToDo
		}
		return nil
	})

	if err == errNothingToDo {
		return
	}
	if err != nil {
		logger.Warn("⚠️ 任务快照生成失败: %v", err)
		return
	}
	s.publish(event.EventTypeTaskGenerated, "任务快照生成", utils.TodayStr())
}

// errNothingToDo 中止 Mutate 而不触发 PUT
var errNothingToDo = fmt.Errorf("nothing to do")

// Stop 停止后台循环
func (s *AppState) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

// PublishEvent 把事件发到应用总线（其他层复用同一条总线）
func (s *AppState) PublishEvent(e *event.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(e)
}

func (s *AppState) publish(eventType event.EventType, title, message string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(&event.Event{
		Type:    eventType,
		Source:  "store",
		Title:   title,
		Message: message,
	})
}

func countRecords(doc *ledger.ProfitData) int {
	total := 0
	for _, user := range doc.Data {
		if user.Binance != nil {
			total += len(user.Binance.Date)
		}
		if user.Gate != nil {
			total += len(user.Gate.Date)
		}
		if user.OKX != nil {
			for _, acc := range user.OKX.Accounts {
				total += len(acc.Date)
			}
		}
	}
	return total
}
