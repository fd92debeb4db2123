package ledger

import (
	"encoding/json"
	"testing"
)

func sampleDoc() *ProfitData {
	doc := NewProfitData()
	user := doc.EnsureUser("alice")
	user.Binance.Date = []DateRecord{
		{Date: "2025-01-01", Coin: []Coin{{Name: "ARB", Amount: 100}}, Fee: 1.5},
		{Date: "2025-01-02", TodayScore: 20, ConsumptionScore: 5, Remark: "刷分"},
	}
	return doc
}

func TestExportImportRoundTrip(t *testing.T) {
	doc := sampleDoc()

	payload, err := ExportDocument(doc)
	if err != nil {
		t.Fatalf("ExportDocument failed: %v", err)
	}

	restored := NewProfitData()
	result, err := ImportDocument(restored, payload, false)
	if err != nil {
		t.Fatalf("ImportDocument failed: %v", err)
	}
	if len(result.UsersAdded) != 1 || result.UsersAdded[0] != "alice" {
		t.Errorf("Expected alice added, got %v", result.UsersAdded)
	}
	if result.RecordsAdded != 2 {
		t.Errorf("Expected 2 records added, got %d", result.RecordsAdded)
	}

	// 往返后记录内容等价
	original := doc.Data["alice"].Binance.Date
	got := restored.Data["alice"].Binance.Date
	if len(got) != len(original) {
		t.Fatalf("Expected %d records, got %d", len(original), len(got))
	}
	for i := range original {
		a, _ := json.Marshal(original[i])
		b, _ := json.Marshal(got[i])
		if string(a) != string(b) {
			t.Errorf("Record %d mismatch:\n  exported: %s\n  restored: %s", i, a, b)
		}
	}
	// users 数组与 data 映射一致
	if len(restored.Users) != 1 || restored.Users[0] != "alice" {
		t.Errorf("Users array out of sync: %v", restored.Users)
	}
}

func TestImportMergeSkipsExistingDates(t *testing.T) {
	doc := sampleDoc()

	payload := []byte(`{
		"alice": {
			"date": [
				{"date": "2025-01-02", "fee": 99},
				{"date": "2025-01-03", "fee": 2}
			]
		}
	}`)

	result, err := ImportDocument(doc, payload, false)
	if err != nil {
		t.Fatalf("ImportDocument failed: %v", err)
	}
	if result.RecordsAdded != 1 || result.RecordsSkipped != 1 {
		t.Errorf("Expected 1 added / 1 skipped, got %d / %d", result.RecordsAdded, result.RecordsSkipped)
	}
	if len(result.NeedConfirm) != 1 || result.NeedConfirm[0] != "alice" {
		t.Errorf("Expected alice in NeedConfirm, got %v", result.NeedConfirm)
	}

	// 已有日期的记录未被覆盖
	day := RecordsForDate(doc.Data["alice"].Binance.Date, "2025-01-02")
	if len(day) != 1 || day[0].Fee == 99 {
		t.Errorf("Existing date must not be overwritten in merge mode: %+v", day)
	}
	if !HasRecordOn(doc.Data["alice"].Binance.Date, "2025-01-03") {
		t.Error("New date should be merged in")
	}
}

func TestImportOverwrite(t *testing.T) {
	doc := sampleDoc()

	payload := []byte(`{
		"alice": {
			"config": {"userName": "alice"},
			"date": [{"date": "2025-02-01", "fee": 7}]
		}
	}`)

	result, err := ImportDocument(doc, payload, true)
	if err != nil {
		t.Fatalf("ImportDocument failed: %v", err)
	}
	if len(result.NeedConfirm) != 0 {
		t.Errorf("Overwrite mode must not need confirmation, got %v", result.NeedConfirm)
	}

	dates := doc.Data["alice"].Binance.Date
	if len(dates) != 1 || dates[0].Date != "2025-02-01" {
		t.Errorf("Expected wholesale replacement, got %+v", dates)
	}
}

func TestImportRejectsMissingDateArray(t *testing.T) {
	doc := sampleDoc()

	payload := []byte(`{
		"bob": {"date": [{"date": "2025-01-01"}]},
		"carol": {"config": {"userName": "carol"}}
	}`)

	if _, err := ImportDocument(doc, payload, false); err == nil {
		t.Fatal("Expected rejection when a user lacks the date array")
	}
	// 整体拒绝，不做部分写入
	if doc.UserExists("bob") {
		t.Error("No partial writes on rejected import")
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	doc := NewProfitData()
	if _, err := ImportDocument(doc, []byte(`"not an object"`), false); err == nil {
		t.Error("Expected error for non-object payload")
	}
	if _, err := ImportDocument(doc, []byte(`{}`), false); err == nil {
		t.Error("Expected error for empty payload")
	}
}
