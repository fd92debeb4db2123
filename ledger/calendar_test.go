package ledger

import (
	"testing"
	"time"
)

func TestIsClaimableDateExactLag(t *testing.T) {
	// 2025-01-01 有空投，只有恰好15天后（2025-01-16）可领取
	records := []DateRecord{
		{Date: "2025-01-01", Coin: []Coin{{Name: "ARB", Amount: 100}}},
	}

	if !IsClaimableDate("2025-01-16", records) {
		t.Error("Expected 2025-01-16 to be claimable")
	}
	for _, date := range []string{"2025-01-15", "2025-01-17", "2025-01-01", "2025-01-31"} {
		if IsClaimableDate(date, records) {
			t.Errorf("Expected %s not to be claimable", date)
		}
	}
}

func TestClaimOriginRequiresCoin(t *testing.T) {
	// 来源记录只有手续费没有币种，不产生可领取标识
	records := []DateRecord{
		{Date: "2025-01-01", Fee: 2.5},
	}
	if IsClaimableDate("2025-01-16", records) {
		t.Error("Fee-only origin record should not produce claimable marker")
	}
}

func TestClaimOriginContent(t *testing.T) {
	records := []DateRecord{
		{Date: "2025-01-01", Coin: []Coin{{Name: "ARB", Amount: 100}}, Fee: 1.5},
		{Date: "2025-01-01", Coin: []Coin{{Name: "OP", Amount: 50}}},
	}

	cell := ClassifyDay(16, "2025-01-16", records, GridOptions{
		Year: 2025, Month: time.January, Mode: DisplayModeClaimable,
	})
	if !cell.IsClaimable || cell.ClaimOrigin == nil {
		t.Fatal("Expected claimable cell with origin")
	}
	origin := cell.ClaimOrigin
	if origin.Date != "2025-01-01" {
		t.Errorf("Expected origin date 2025-01-01, got %s", origin.Date)
	}
	if origin.Label != "1/1" {
		t.Errorf("Expected origin label 1/1, got %s", origin.Label)
	}
	if len(origin.Coins) != 2 {
		t.Fatalf("Expected 2 origin coins, got %d", len(origin.Coins))
	}
	// 手续费只取第一条
	if origin.Fee != 1.5 {
		t.Errorf("Expected origin fee 1.5, got %f", origin.Fee)
	}
}

func TestBuildMonthGridFill(t *testing.T) {
	// 2025年6月：6月1日是星期日，30天，5行即可，填充到35格
	cells := BuildMonthGrid(GridOptions{Year: 2025, Month: time.June, Mode: DisplayModeClaimable}, nil)
	if len(cells) != 35 {
		t.Errorf("Expected 35 cells for 2025-06, got %d", len(cells))
	}

	// 2025年3月：3月1日是星期六，31天，需要6行，填充到42格
	cells = BuildMonthGrid(GridOptions{Year: 2025, Month: time.March, Mode: DisplayModeClaimable}, nil)
	if len(cells) != 42 {
		t.Errorf("Expected 42 cells for 2025-03, got %d", len(cells))
	}
	// 前置6格是上个月
	for i := 0; i < 6; i++ {
		if !cells[i].OtherMonth {
			t.Errorf("Expected cell %d to be prev-month filler", i)
		}
	}
	if cells[6].Day != 1 || cells[6].Date != "2025-03-01" {
		t.Errorf("Expected cell 6 to be 2025-03-01, got day=%d date=%s", cells[6].Day, cells[6].Date)
	}
}

func TestClassifyDayEarningsAndToday(t *testing.T) {
	records := []DateRecord{
		{Date: "2025-01-10", Coin: []Coin{{Name: "ZK", Amount: 30}}, Fee: 0.8},
		{Date: "2025-01-10", Fee: 1.2},
	}

	cell := ClassifyDay(10, "2025-01-10", records, GridOptions{
		Year: 2025, Month: time.January, Today: "2025-01-10", Mode: DisplayModeClaimable,
	})
	if !cell.IsToday {
		t.Error("Expected IsToday")
	}
	if !cell.HasEarnings || len(cell.Earnings) != 1 {
		t.Errorf("Expected one earnings line, got %v", cell.Earnings)
	}
	// 手续费取第一条有手续费的记录
	if !cell.HasFee || cell.Fee != 0.8 {
		t.Errorf("Expected fee 0.8, got %f", cell.Fee)
	}
}

func TestClassifyDayQuickCreate(t *testing.T) {
	fc := &FastConfig{Fee: "1.5", TodayScore: "3", FastAddRecord: true}
	opts := GridOptions{Year: 2025, Month: time.January, Mode: DisplayModeClaimable, FastConfig: fc}

	records := []DateRecord{{Date: "2025-01-10", Fee: 1}}

	// 无记录的日期显示快捷新建
	cell := ClassifyDay(11, "2025-01-11", records, opts)
	if !cell.ShowQuickCreate {
		t.Error("Expected quick-create on empty day")
	}
	// 有记录的日期不显示
	cell = ClassifyDay(10, "2025-01-10", records, opts)
	if cell.ShowQuickCreate {
		t.Error("Quick-create must not show on a day with records")
	}
	// 开关关闭时不显示
	opts.FastConfig = &FastConfig{FastAddRecord: false}
	cell = ClassifyDay(11, "2025-01-11", records, opts)
	if cell.ShowQuickCreate {
		t.Error("Quick-create must not show when fastAddRecord is off")
	}
}

func TestClassifyDayScoreMode(t *testing.T) {
	records := []DateRecord{
		{Date: "2025-01-10", CurScore: 120, TodayScore: 20, ConsumptionScore: 5},
	}
	opts := GridOptions{Year: 2025, Month: time.January, Mode: DisplayModeScore}

	cell := ClassifyDay(10, "2025-01-10", records, opts)
	if cell.ScoreIndicator != 120 {
		t.Errorf("Expected score indicator 120, got %f", cell.ScoreIndicator)
	}
	if cell.ScoreTooltip == nil || cell.ScoreTooltip.CurScore != 120 ||
		cell.ScoreTooltip.TodayScore != 20 || cell.ScoreTooltip.ConsumptionScore != 5 {
		t.Errorf("Unexpected score tooltip: %+v", cell.ScoreTooltip)
	}
	if cell.Simulation != nil {
		t.Error("Simulation badge must not show when simulation is off")
	}
}

func TestClassifyDaySimulationBadge(t *testing.T) {
	records := []DateRecord{
		{Date: "2025-01-01", TodayScore: 20, ConsumptionScore: 5},
	}
	fc := &FastConfig{TodayScore: "3"}
	opts := GridOptions{
		Year: 2025, Month: time.January, Mode: DisplayModeScore,
		FastConfig: fc, SimulationOn: true,
	}

	cell := ClassifyDay(16, "2025-01-16", records, opts)
	if cell.Simulation == nil {
		t.Fatal("Expected simulation badge")
	}
	if !almostEqual(cell.Simulation.Score, 57) {
		t.Errorf("Expected simulation score 57, got %f", cell.Simulation.Score)
	}
	if cell.Simulation.RangeText != "1/1-1/15" {
		t.Errorf("Expected range text 1/1-1/15, got %s", cell.Simulation.RangeText)
	}

	// 该天已有积分记录时不展示模拟标识
	withScore := append(records, DateRecord{Date: "2025-01-16", CurScore: 10})
	cell = ClassifyDay(16, "2025-01-16", withScore, opts)
	if cell.Simulation != nil {
		t.Error("Simulation badge must not show on a day with a score record")
	}

	// claimable 模式下不展示模拟标识
	opts.Mode = DisplayModeClaimable
	cell = ClassifyDay(16, "2025-01-16", records, opts)
	if cell.Simulation != nil {
		t.Error("Simulation badge must not show in claimable mode")
	}
}
