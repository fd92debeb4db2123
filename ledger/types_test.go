package ledger

import (
	"encoding/json"
	"testing"
)

func TestDateRecordUnmarshalCanonical(t *testing.T) {
	payload := []byte(`{
		"date": "2025-01-10",
		"coin": [{"name": "ARB", "amount": 100}, {"name": "OP", "amount": 50}],
		"fee": 1.5,
		"todayScore": 20,
		"consumptionScore": 5,
		"remark": "测试"
	}`)

	var r DateRecord
	if err := json.Unmarshal(payload, &r); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(r.Coin) != 2 || r.Coin[0].Name != "ARB" || r.Coin[1].Amount != 50 {
		t.Errorf("Unexpected coins: %+v", r.Coin)
	}
	if r.Fee != 1.5 || r.TodayScore != 20 || r.ConsumptionScore != 5 {
		t.Errorf("Unexpected numeric fields: %+v", r)
	}
}

func TestDateRecordUnmarshalLegacyCoinString(t *testing.T) {
	// 历史形态：coin 是字符串，金额在顶层 amount
	payload := []byte(`{"date": "2024-06-01", "coin": "ZK", "amount": "30.5", "fee": "1.2"}`)

	var r DateRecord
	if err := json.Unmarshal(payload, &r); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(r.Coin) != 1 || r.Coin[0].Name != "ZK" || r.Coin[0].Amount != 30.5 {
		t.Errorf("Legacy coin string not migrated: %+v", r.Coin)
	}
	if r.Fee != 1.2 {
		t.Errorf("Legacy string fee not parsed: %f", r.Fee)
	}

	// 空字符串 coin 不产生条目
	var empty DateRecord
	if err := json.Unmarshal([]byte(`{"date": "2024-06-02", "coin": "  "}`), &empty); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(empty.Coin) != 0 {
		t.Errorf("Blank legacy coin must not create an entry: %+v", empty.Coin)
	}
}

func TestDateRecordUnmarshalLegacyConsumptionCase(t *testing.T) {
	// 历史版本消耗积分字段大写开头
	payload := []byte(`{"date": "2024-06-01", "ConsumptionScore": 8}`)

	var r DateRecord
	if err := json.Unmarshal(payload, &r); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if r.ConsumptionScore != 8 {
		t.Errorf("Expected consumptionScore 8 from legacy field, got %f", r.ConsumptionScore)
	}

	// 两种写法同时存在时小写优先
	both := []byte(`{"date": "2024-06-01", "consumptionScore": 3, "ConsumptionScore": 8}`)
	if err := json.Unmarshal(both, &r); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if r.ConsumptionScore != 3 {
		t.Errorf("Canonical field must win, got %f", r.ConsumptionScore)
	}
}

func TestRecordEmptiness(t *testing.T) {
	tests := []struct {
		name   string
		record DateRecord
		empty  bool
	}{
		{"blank", DateRecord{Date: "2025-01-01"}, true},
		{"blank coin name only", DateRecord{Date: "2025-01-01", Coin: []Coin{{Name: " "}}}, true},
		{"fee only", DateRecord{Date: "2025-01-01", Fee: 1}, false},
		{"remark only", DateRecord{Date: "2025-01-01", Remark: "x"}, false},
		{"coin", DateRecord{Date: "2025-01-01", Coin: []Coin{{Name: "ARB"}}}, false},
	}
	for _, tc := range tests {
		if got := tc.record.IsEmpty(); got != tc.empty {
			t.Errorf("%s: IsEmpty() = %v, expected %v", tc.name, got, tc.empty)
		}
	}
}

func TestSyncUsersDataMapAuthoritative(t *testing.T) {
	doc := &ProfitData{
		Users: []string{"ghost", "alice"},
		Data: map[string]*UserData{
			"alice": {},
			"bob":   {},
		},
	}

	doc.SyncUsers()
	if len(doc.Users) != 2 || doc.Users[0] != "alice" || doc.Users[1] != "bob" {
		t.Errorf("Expected users [alice bob], got %v", doc.Users)
	}
	if doc.UserExists("ghost") {
		t.Error("ghost only in users array must not exist")
	}
}

func TestEnsureUser(t *testing.T) {
	doc := NewProfitData()
	u := doc.EnsureUser("alice")
	if u == nil || u.Binance == nil {
		t.Fatal("EnsureUser must initialize the binance section")
	}
	if !doc.UserExists("alice") || len(doc.Users) != 1 {
		t.Error("EnsureUser must register the user and sync the array")
	}
	if doc.EnsureUser("alice") != u {
		t.Error("EnsureUser must be idempotent")
	}
}
