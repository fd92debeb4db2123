package ledger

import (
	"testing"
	"time"
)

func statsRecords() []DateRecord {
	return []DateRecord{
		{Date: "2025-01-01", Coin: []Coin{{Name: "ARB", Amount: 100}, {Name: "OP", Amount: 50}}, Fee: 2},
		{Date: "2025-01-15", Coin: []Coin{{Name: " ", Amount: 10}}, Fee: 1}, // 空名称不计入收入
		{Date: "2025-02-01", Coin: []Coin{{Name: "ZK", Amount: 30}}, Fee: 0.5},
	}
}

func TestCalcTotals(t *testing.T) {
	totals := CalcTotals(statsRecords())
	if totals.TotalIncome != 180 {
		t.Errorf("Expected income 180, got %f", totals.TotalIncome)
	}
	if totals.TotalProjects != 3 {
		t.Errorf("Expected 3 projects, got %d", totals.TotalProjects)
	}
	if totals.TotalFees != 3.5 {
		t.Errorf("Expected fees 3.5, got %f", totals.TotalFees)
	}
	if totals.TotalProfit != 176.5 {
		t.Errorf("Expected profit 176.5, got %f", totals.TotalProfit)
	}
}

func TestCalcMonthlySummary(t *testing.T) {
	s := CalcMonthlySummary(statsRecords(), 2025, time.January)
	if s.Month != "2025-01" {
		t.Errorf("Expected month 2025-01, got %s", s.Month)
	}
	if s.Income != 150 || s.Projects != 2 {
		t.Errorf("Expected income 150 / 2 projects, got %f / %d", s.Income, s.Projects)
	}
	if s.Fees != 3 || s.Profit != 147 {
		t.Errorf("Expected fees 3 profit 147, got %f / %f", s.Fees, s.Profit)
	}
}

func TestHasMonthData(t *testing.T) {
	records := statsRecords()
	if !HasMonthData(records, 2025, time.February) {
		t.Error("Expected data in 2025-02")
	}
	if HasMonthData(records, 2025, time.March) {
		t.Error("Expected no data in 2025-03")
	}
}
