package ledger

import (
	"fmt"
	"strings"
	"time"
)

// Totals 全量统计
type Totals struct {
	TotalIncome   float64 `json:"totalIncome"`
	TotalProjects int     `json:"totalProjects"`
	TotalFees     float64 `json:"totalFees"`
	TotalProfit   float64 `json:"totalProfit"` // 收入 - 手续费
}

// CalcTotals 汇总全部记录的收入、项目数、手续费与利润
func CalcTotals(records []DateRecord) Totals {
	var t Totals
	for _, r := range records {
		for _, c := range r.Coin {
			if strings.TrimSpace(c.Name) != "" && c.Amount > 0 {
				t.TotalIncome += c.Amount
				t.TotalProjects++
			}
		}
		t.TotalFees += r.Fee
	}
	t.TotalProfit = t.TotalIncome - t.TotalFees
	return t
}

// MonthlySummary 某个月份的汇总
type MonthlySummary struct {
	Month    string  `json:"month"` // YYYY-MM
	Income   float64 `json:"income"`
	Projects int     `json:"projects"`
	Fees     float64 `json:"fees"`
	Profit   float64 `json:"profit"`
}

// CalcMonthlySummary 汇总指定月份的记录
func CalcMonthlySummary(records []DateRecord, year int, month time.Month) MonthlySummary {
	monthStr := fmt.Sprintf("%04d-%02d", year, int(month))
	s := MonthlySummary{Month: monthStr}

	for _, r := range records {
		if !strings.HasPrefix(r.Date, monthStr) {
			continue
		}
		for _, c := range r.Coin {
			if strings.TrimSpace(c.Name) != "" && c.Amount > 0 {
				s.Income += c.Amount
				s.Projects++
			}
		}
		s.Fees += r.Fee
	}
	s.Profit = s.Income - s.Fees
	return s
}

// HasMonthData 某个月份是否有记录（日历导航用）
func HasMonthData(records []DateRecord, year int, month time.Month) bool {
	monthStr := fmt.Sprintf("%04d-%02d", year, int(month))
	for _, r := range records {
		if strings.HasPrefix(r.Date, monthStr) {
			return true
		}
	}
	return false
}
