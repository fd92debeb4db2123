package ledger

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSimulationScoreWindow(t *testing.T) {
	// 2025-01-01 有一条记录：刷分20，消耗5；其余14天无记录，按配置刷分3补齐
	records := []DateRecord{
		{Date: "2025-01-01", TodayScore: 20, ConsumptionScore: 5},
	}

	score, err := SimulationScore("2025-01-16", records, 3)
	if err != nil {
		t.Fatalf("SimulationScore returned error: %v", err)
	}
	// 收入 20 + 3*14 = 62，消耗 5，净 57
	if !almostEqual(score, 57) {
		t.Errorf("Expected score 57, got %f", score)
	}
}

func TestSimulationScoreExcludesTargetDay(t *testing.T) {
	// 目标日期当天的记录不参与计算
	records := []DateRecord{
		{Date: "2025-01-16", TodayScore: 999, ConsumptionScore: 999},
	}

	score, err := SimulationScore("2025-01-16", records, 2)
	if err != nil {
		t.Fatalf("SimulationScore returned error: %v", err)
	}
	if !almostEqual(score, 30) {
		t.Errorf("Expected score 30 (2*15), got %f", score)
	}
}

func TestSimulationScoreWindowBoundary(t *testing.T) {
	// 第15天（2025-01-01）在窗口内，第16天（2024-12-31）不在
	records := []DateRecord{
		{Date: "2025-01-01", TodayScore: 10},
		{Date: "2024-12-31", TodayScore: 1000},
	}

	score, err := SimulationScore("2025-01-16", records, 0)
	if err != nil {
		t.Fatalf("SimulationScore returned error: %v", err)
	}
	if !almostEqual(score, 10) {
		t.Errorf("Expected score 10, got %f", score)
	}
}

func TestSimulationScoreNonNegative(t *testing.T) {
	// 消耗远大于收入，结果不为负
	records := []DateRecord{
		{Date: "2025-01-10", TodayScore: 1, ConsumptionScore: 500},
	}

	score, err := SimulationScore("2025-01-16", records, 0)
	if err != nil {
		t.Fatalf("SimulationScore returned error: %v", err)
	}
	if score != 0 {
		t.Errorf("Expected score 0, got %f", score)
	}
}

func TestSimulationScoreAnomalyCap(t *testing.T) {
	// 脏数据导致超出上限，返回错误
	records := []DateRecord{
		{Date: "2025-01-10", TodayScore: 2_000_000},
	}

	if _, err := SimulationScore("2025-01-16", records, 0); err == nil {
		t.Error("Expected anomaly error for score above cap, got nil")
	}

	// 兼容包装吞掉错误返回0
	if got := SimulationScoreOrZero("2025-01-16", records, 0); got != 0 {
		t.Errorf("Expected OrZero to return 0 on anomaly, got %f", got)
	}
}

func TestSimulationScoreMultipleRecordsSameDay(t *testing.T) {
	// 同一天多条记录全部累加
	records := []DateRecord{
		{Date: "2025-01-05", TodayScore: 10, ConsumptionScore: 2},
		{Date: "2025-01-05", TodayScore: 5, ConsumptionScore: 1},
	}

	score, err := SimulationScore("2025-01-16", records, 0)
	if err != nil {
		t.Fatalf("SimulationScore returned error: %v", err)
	}
	if !almostEqual(score, 12) {
		t.Errorf("Expected score 12, got %f", score)
	}
}

func TestSimulationScoreInvalidDate(t *testing.T) {
	if _, err := SimulationScore("not-a-date", nil, 3); err == nil {
		t.Error("Expected error for invalid target date")
	}
}

func TestSimulationRangeText(t *testing.T) {
	tests := []struct {
		target   string
		expected string
	}{
		{"2025-01-16", "1/1-1/15"},
		{"2025-03-01", "2/14-2/28"},
		{"bad", "前15天"},
	}
	for _, tc := range tests {
		if got := SimulationRangeText(tc.target); got != tc.expected {
			t.Errorf("SimulationRangeText(%s) = %s, expected %s", tc.target, got, tc.expected)
		}
	}
}
