package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"profitcal/config"
	"profitcal/docstore"
	"profitcal/ledger"
	"profitcal/storage"
)

func testConfig(baseURL string) *config.Config {
	cfg := &config.Config{}
	cfg.DocStore.BaseURL = baseURL
	cfg.DocStore.MasterKey = "test-key"
	cfg.DocStore.DefaultBin = "bin123"
	cfg.DocStore.Bins = map[string]string{"main": "bin123"}
	cfg.DocStore.TimeoutSeconds = 2
	cfg.DocStore.WritesPerMin = 6000
	cfg.Refresh.IntervalSeconds = 300
	cfg.Refresh.TaskCheckIntervalSec = 60
	return cfg
}

func newState(t *testing.T, handler http.HandlerFunc, withCache bool) *AppState {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := testConfig(server.URL)
	client := docstore.NewClient(docstore.Options{
		BaseURL:      server.URL,
		MasterKey:    cfg.DocStore.MasterKey,
		Timeout:      2 * time.Second,
		WritesPerMin: cfg.DocStore.WritesPerMin,
	})

	var cache *storage.SQLiteStorage
	if withCache {
		var err error
		cache, err = storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "cache.db"))
		if err != nil {
			t.Fatalf("创建快照缓存失败: %v", err)
		}
		t.Cleanup(func() { cache.Close() })
	}

	return NewAppState(cfg, client, cache, nil, nil)
}

func TestLoadAndRead(t *testing.T) {
	state := newState(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"record": {"users": [], "data": {"alice": {"binance": {"date": []}}}}}`))
	}, false)

	if err := state.Load(context.Background(), "main"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var users []string
	err := state.Read(func(doc *ledger.ProfitData) { users = doc.Users })
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	// users 数组以 data 映射为准重建
	if len(users) != 1 || users[0] != "alice" {
		t.Errorf("Expected users [alice], got %v", users)
	}

	status := state.Status()
	if status.BinID != "bin123" || status.Offline {
		t.Errorf("Unexpected status: %+v", status)
	}
}

func TestLoadFallsBackToSnapshot(t *testing.T) {
	failing := false
	state := newState(t, func(w http.ResponseWriter, r *http.Request) {
		if failing {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"record": {"users": ["alice"], "data": {"alice": {}}}}`))
	}, true)

	// 第一次成功，写入快照
	if err := state.Load(context.Background(), ""); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// 远端故障后重新加载，降级到快照
	failing = true
	if err := state.Load(context.Background(), ""); err != nil {
		t.Fatalf("Snapshot fallback failed: %v", err)
	}

	status := state.Status()
	if !status.Offline {
		t.Error("Expected offline mode after fallback")
	}
	if status.Users != 1 {
		t.Errorf("Expected 1 user from snapshot, got %d", status.Users)
	}

	// 降级模式拒绝写入
	err := state.Mutate(context.Background(), func(doc *ledger.ProfitData) error {
		doc.EnsureUser("bob")
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "快照") {
		t.Errorf("Expected offline write rejection, got %v", err)
	}
}

func TestMutatePutsAndAdoptsEcho(t *testing.T) {
	var putCount int
	state := newState(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`{"record": {"users": [], "data": {}}}`))
			return
		}
		putCount++
		// 回显时远端附带了另一个并发写入的用户
		var doc ledger.ProfitData
		json.NewDecoder(r.Body).Decode(&doc)
		doc.EnsureUser("remote-user")
		resp, _ := json.Marshal(map[string]interface{}{"record": &doc})
		w.Write(resp)
	}, false)

	if err := state.Load(context.Background(), ""); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	err := state.Mutate(context.Background(), func(doc *ledger.ProfitData) error {
		user := doc.EnsureUser("alice")
		return user.Binance.SaveDayRecords("2025-01-10", []ledger.DateRecord{
			{Date: "2025-01-10", Fee: 1.5},
		})
	})
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}
	if putCount != 1 {
		t.Errorf("Expected 1 PUT, got %d", putCount)
	}

	// 镜像以回显为准
	state.Read(func(doc *ledger.ProfitData) {
		if !doc.UserExists("alice") || !doc.UserExists("remote-user") {
			t.Errorf("Echo not adopted: %v", doc.Users)
		}
	})
}

func TestMutateRollsNothingOnFnError(t *testing.T) {
	var putCount int
	state := newState(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`{"record": {"users": [], "data": {}}}`))
			return
		}
		putCount++
		w.Write([]byte(`{"record": {"users": [], "data": {}}}`))
	}, false)

	if err := state.Load(context.Background(), ""); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	err := state.Mutate(context.Background(), func(doc *ledger.ProfitData) error {
		return context.Canceled
	})
	if err == nil {
		t.Fatal("Expected fn error to propagate")
	}
	if putCount != 0 {
		t.Errorf("fn error must not trigger a PUT, got %d", putCount)
	}
}

func TestGenerateDailyTasksIdempotent(t *testing.T) {
	var putCount int
	doc := `{"record": {"users": ["alice"], "data": {"alice": {"tasks": {"tasks": [{"id": 1, "title": "签到", "category": "daily", "sort": 1}], "date": []}}}}}`
	state := newState(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(doc))
			return
		}
		putCount++
		var d ledger.ProfitData
		json.NewDecoder(r.Body).Decode(&d)
		resp, _ := json.Marshal(map[string]interface{}{"record": &d})
		w.Write(resp)
	}, false)

	if err := state.Load(context.Background(), ""); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	state.generateDailyTasks()
	if putCount != 1 {
		t.Fatalf("First check should generate and save, got %d PUTs", putCount)
	}

	// 同一天再次检查不应再写
	state.generateDailyTasks()
	if putCount != 1 {
		t.Errorf("Second check must be a no-op, got %d PUTs", putCount)
	}

	state.Read(func(d *ledger.ProfitData) {
		tasks := d.Data["alice"].Tasks
		if tasks == nil || len(tasks.Date) != 1 || len(tasks.Date[0].Tasks) != 1 {
			t.Errorf("Expected one snapshot with one task: %+v", tasks)
		}
	})
}
