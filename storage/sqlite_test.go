package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSnapshotStorage(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "profitcal.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}
	defer store.Close()

	// 没有快照时返回 nil
	snap, err := store.LatestSnapshot("bin1")
	if err != nil {
		t.Fatalf("查询快照失败: %v", err)
	}
	if snap != nil {
		t.Fatal("空库不应有快照")
	}

	// 非法 JSON 拒绝
	if err := store.SaveSnapshot("bin1", []byte("not json")); err == nil {
		t.Error("非法 JSON 应被拒绝")
	}

	// 保存多份，取最新
	for i, doc := range []string{`{"users":[]}`, `{"users":["alice"]}`, `{"users":["alice","bob"]}`} {
		if err := store.SaveSnapshot("bin1", []byte(doc)); err != nil {
			t.Fatalf("保存快照 %d 失败: %v", i, err)
		}
	}
	if err := store.SaveSnapshot("bin2", []byte(`{"users":["carol"]}`)); err != nil {
		t.Fatalf("保存快照失败: %v", err)
	}

	snap, err = store.LatestSnapshot("bin1")
	if err != nil || snap == nil {
		t.Fatalf("查询快照失败: %v", err)
	}
	if string(snap.Document) != `{"users":["alice","bob"]}` {
		t.Errorf("应返回最新快照, 得到 %s", snap.Document)
	}

	// 清理只保留最近2份，其他文档不受影响
	removed, err := store.PruneSnapshots("bin1", 2)
	if err != nil {
		t.Fatalf("清理快照失败: %v", err)
	}
	if removed != 1 {
		t.Errorf("期望删除1份, 实际 %d", removed)
	}
	if snap, _ := store.LatestSnapshot("bin2"); snap == nil {
		t.Error("清理不应影响其他文档")
	}
}

func TestTriggerOrders(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "profitcal.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}
	defer store.Close()

	order := &TriggerOrder{
		Symbol:        "REDUSDT",
		OrderID:       123456789,
		ClientOrderID: "trigger_1",
		TriggerPrice:  0.5,
		AskPrice:      0.49,
		Quantity:      200,
		Status:        "NEW",
	}
	if err := store.SaveTriggerOrder(order); err != nil {
		t.Fatalf("保存触发下单记录失败: %v", err)
	}
	if order.ID == 0 {
		t.Error("保存后应回填自增 ID")
	}
	if order.CreatedAt.IsZero() {
		t.Error("保存后应回填创建时间")
	}

	orders, err := store.QueryTriggerOrders("REDUSDT", 10)
	if err != nil {
		t.Fatalf("查询触发下单记录失败: %v", err)
	}
	if len(orders) != 1 || orders[0].OrderID != 123456789 {
		t.Errorf("查询结果不正确: %+v", orders)
	}

	if orders, _ := store.QueryTriggerOrders("BTCUSDT", 10); len(orders) != 0 {
		t.Error("按符号过滤应为空")
	}
}

func TestLogStorage(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "logs.db")

	ls, err := NewLogStorage(dbPath)
	if err != nil {
		t.Fatalf("创建日志存储失败: %v", err)
	}
	defer ls.Close()

	sub := ls.Subscribe()

	ls.WriteLog("INFO", "数据刷新成功")
	ls.WriteLog("ERROR", "写入文档失败: HTTP 429")

	// 异步批量写入，等订阅通知确认落库
	select {
	case <-sub:
	case <-time.After(3 * time.Second):
		t.Fatal("等待日志落库超时")
	}
	ls.Unsubscribe(sub)

	deadline := time.Now().Add(3 * time.Second)
	var records []*LogRecord
	var total int
	for time.Now().Before(deadline) {
		records, total, err = ls.GetLogs(LogQueryParams{Limit: 10})
		if err != nil {
			t.Fatalf("查询日志失败: %v", err)
		}
		if total == 2 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if total != 2 {
		t.Fatalf("期望2条日志, 实际 %d", total)
	}

	// 按级别过滤
	records, total, err = ls.GetLogs(LogQueryParams{Level: "ERROR", Limit: 10})
	if err != nil {
		t.Fatalf("查询日志失败: %v", err)
	}
	if total != 1 || records[0].Level != "ERROR" {
		t.Errorf("级别过滤结果不正确: total=%d", total)
	}

	// 关键字过滤
	_, total, err = ls.GetLogs(LogQueryParams{Keyword: "刷新", Limit: 10})
	if err != nil {
		t.Fatalf("查询日志失败: %v", err)
	}
	if total != 1 {
		t.Errorf("关键字过滤结果不正确: total=%d", total)
	}

	// 保留期外的日志被清理
	if _, err := ls.CleanupOldLogs(7); err != nil {
		t.Fatalf("清理日志失败: %v", err)
	}
	if _, total, _ = ls.GetLogs(LogQueryParams{Limit: 10}); total != 2 {
		t.Errorf("7天内的日志不应被清理: total=%d", total)
	}
}
