package docstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"profitcal/ledger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(Options{
		BaseURL:      server.URL,
		MasterKey:    "test-key",
		Timeout:      2 * time.Second,
		WritesPerMin: 6000,
	})
	return client, server
}

func TestFetchDocument(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/b/bin123/latest" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-Master-Key") != "test-key" {
			t.Error("Missing master key header")
		}
		w.Write([]byte(`{"record": {"users": ["alice"], "data": {"alice": {"binance": {"date": [{"date": "2025-01-01", "coin": "ARB", "amount": 100}]}}}}}`))
	})

	doc, err := client.Fetch(context.Background(), "bin123")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !doc.UserExists("alice") {
		t.Fatal("Expected alice in document")
	}
	// 历史形态的 coin 字符串在读取时迁移为数组
	records := doc.Data["alice"].Binance.Date
	if len(records) != 1 || len(records[0].Coin) != 1 || records[0].Coin[0].Amount != 100 {
		t.Errorf("Legacy record not migrated: %+v", records)
	}
}

func TestFetchErrors(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "Invalid X-Master-Key"}`))
	})

	if _, err := client.Fetch(context.Background(), "bin123"); err == nil {
		t.Error("Expected error on HTTP 401")
	}
	if _, err := client.Fetch(context.Background(), ""); err == nil {
		t.Error("Expected error on empty bin ID")
	}
}

func TestPutOverwritesWithEcho(t *testing.T) {
	var received []byte
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/b/bin123" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		received = body

		// 回显时附带远端已有的另一个用户，模拟并发写入
		var doc ledger.ProfitData
		json.Unmarshal(body, &doc)
		doc.EnsureUser("bob")
		resp, _ := json.Marshal(map[string]interface{}{"record": &doc})
		w.Write(resp)
	})

	doc := ledger.NewProfitData()
	doc.EnsureUser("alice")

	echoed, err := client.Put(context.Background(), "bin123", doc)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if len(received) == 0 {
		t.Fatal("Server received no body")
	}
	// 本地以回显为准
	if !echoed.UserExists("alice") || !echoed.UserExists("bob") {
		t.Errorf("Echo document not adopted: %v", echoed.Users)
	}
}

func TestPutKeepsLocalOnBadEcho(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	doc := ledger.NewProfitData()
	doc.EnsureUser("alice")

	echoed, err := client.Put(context.Background(), "bin123", doc)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if echoed != doc {
		t.Error("Bad echo should fall back to the local document")
	}
}

func TestPutError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	if _, err := client.Put(context.Background(), "bin123", ledger.NewProfitData()); err == nil {
		t.Error("Expected error on HTTP 429")
	}
}
