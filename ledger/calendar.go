package ledger

import (
	"fmt"
	"strings"
	"time"

	"profitcal/utils"
)

// DisplayMode 日历右上角标识的显示模式
type DisplayMode string

const (
	DisplayModeClaimable DisplayMode = "claimable" // 显示15天前有空投的标识
	DisplayModeScore     DisplayMode = "score"     // 显示积分标识
)

// CoinLine 单元格/提示框里的一行币种收益
type CoinLine struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// ClaimOrigin 可领取标识的来源（15天前的记录）
type ClaimOrigin struct {
	Date  string     `json:"date"`  // 来源日期 YYYY-MM-DD
	Label string     `json:"label"` // 月/日 展示，如 "1/1"
	Coins []CoinLine `json:"coins"`
	Fee   float64    `json:"fee,omitempty"`
}

// ScoreTooltip 积分模式下的提示框内容
type ScoreTooltip struct {
	CurScore         float64 `json:"curScore"`
	TodayScore       float64 `json:"todayScore"`
	ConsumptionScore float64 `json:"consumptionScore"`
}

// SimulationBadge 模拟积分标识
type SimulationBadge struct {
	Score     float64 `json:"score"`
	RangeText string  `json:"rangeText"` // 计算窗口，如 "1/1-1/15"
}

// DayCell 日历单元格视图模型
type DayCell struct {
	Day        int    `json:"day"`
	Date       string `json:"date,omitempty"` // 本月日期才有
	OtherMonth bool   `json:"otherMonth,omitempty"`

	HasEarnings bool       `json:"hasEarnings,omitempty"`
	Earnings    []CoinLine `json:"earnings,omitempty"`
	HasFee      bool       `json:"hasFee,omitempty"`
	Fee         float64    `json:"fee,omitempty"` // 第一条有手续费记录的值
	IsToday     bool       `json:"isToday,omitempty"`

	IsClaimable bool         `json:"isClaimable,omitempty"`
	ClaimOrigin *ClaimOrigin `json:"claimOrigin,omitempty"`

	ScoreIndicator float64          `json:"scoreIndicator,omitempty"` // curScore > 0 时展示
	ScoreTooltip   *ScoreTooltip    `json:"scoreTooltip,omitempty"`
	Simulation     *SimulationBadge `json:"simulation,omitempty"`

	ShowQuickCreate bool `json:"showQuickCreate,omitempty"`
}

// GridOptions 日历网格的构建参数
type GridOptions struct {
	Year         int
	Month        time.Month
	Today        string // 墙钟今天 YYYY-MM-DD
	Mode         DisplayMode
	FastConfig   *FastConfig // 快捷配置（可为 nil）
	SimulationOn bool        // 模拟积分开关（仅 score 模式生效）
}

// BuildMonthGrid 构建一个月的日历网格。
// 网格按周对齐：前面补上月末尾的日期，后面智能填充到35或42格。
func BuildMonthGrid(opts GridOptions, records []DateRecord) []DayCell {
	firstDay := time.Date(opts.Year, opts.Month, 1, 0, 0, 0, 0, utils.GlobalLocation)
	lastDay := firstDay.AddDate(0, 1, -1)

	// 当月第一天是星期几（0是星期日）
	prevMonthDays := int(firstDay.Weekday())
	prevMonthLastDay := firstDay.AddDate(0, 0, -1)

	cells := make([]DayCell, 0, 42)

	// 上个月的日期
	for i := prevMonthDays - 1; i >= 0; i-- {
		cells = append(cells, DayCell{
			Day:        prevMonthLastDay.Day() - i,
			OtherMonth: true,
		})
	}

	// 当月的日期
	for day := 1; day <= lastDay.Day(); day++ {
		dateStr := fmt.Sprintf("%04d-%02d-%02d", opts.Year, int(opts.Month), day)
		cells = append(cells, ClassifyDay(day, dateStr, records, opts))
	}

	// 智能填充：5行够用时填到35格，否则42格，避免多余的整行
	totalDays := prevMonthDays + lastDay.Day()
	targetCells := 42
	if (totalDays+6)/7 <= 5 {
		targetCells = 35
	}
	for day := 1; len(cells) < targetCells; day++ {
		cells = append(cells, DayCell{Day: day, OtherMonth: true})
	}

	return cells
}

// ClassifyDay 对单个日期单元格做分类（纯函数，不涉及渲染）
func ClassifyDay(day int, dateStr string, records []DateRecord, opts GridOptions) DayCell {
	cell := DayCell{
		Day:     day,
		Date:    dateStr,
		IsToday: dateStr == opts.Today,
	}

	dayRecords := RecordsForDate(records, dateStr)

	// 收益与手续费
	for _, r := range dayRecords {
		for _, c := range r.Coin {
			if strings.TrimSpace(c.Name) != "" {
				cell.HasEarnings = true
				cell.Earnings = append(cell.Earnings, CoinLine{Name: c.Name, Amount: c.Amount})
			}
		}
	}
	// 手续费只展示一次，取第一条有手续费的记录
	for _, r := range dayRecords {
		if r.Fee != 0 {
			cell.HasFee = true
			cell.Fee = r.Fee
			break
		}
	}

	// 快捷新建：开启快捷配置且该日期完全没有记录
	if opts.FastConfig != nil && opts.FastConfig.FastAddRecord && len(dayRecords) == 0 {
		cell.ShowQuickCreate = true
	}

	// 模拟积分：仅 score 模式、开关打开、该日期没有积分记录时展示
	showSimulation := false
	if opts.SimulationOn && opts.Mode == DisplayModeScore && !hasScoreRecord(dayRecords) {
		fallback := 0.0
		if opts.FastConfig != nil {
			fallback = opts.FastConfig.TodayScoreValue()
		}
		if score := SimulationScoreOrZero(dateStr, records, fallback); score > 0 {
			cell.Simulation = &SimulationBadge{
				Score:     score,
				RangeText: SimulationRangeText(dateStr),
			}
		}
		showSimulation = true
	}

	switch opts.Mode {
	case DisplayModeClaimable:
		if origin := claimOrigin(dateStr, records); origin != nil {
			cell.IsClaimable = true
			cell.ClaimOrigin = origin
		}
	case DisplayModeScore:
		// 模拟积分弹窗优先，存在时不再显示普通积分弹窗
		if !showSimulation {
			cell.ScoreTooltip = scoreTooltip(dayRecords)
		}
		for _, r := range dayRecords {
			if r.CurScore > 0 {
				cell.ScoreIndicator = r.CurScore
				break
			}
		}
	}

	return cell
}

// RecordsForDate 取出某天的全部记录
func RecordsForDate(records []DateRecord, dateStr string) []DateRecord {
	var out []DateRecord
	for _, r := range records {
		if r.Date == dateStr {
			out = append(out, r)
		}
	}
	return out
}

// HasRecordOn 某天是否已有记录
func HasRecordOn(records []DateRecord, dateStr string) bool {
	for _, r := range records {
		if r.Date == dateStr {
			return true
		}
	}
	return false
}

// IsClaimableDate 当且仅当恰好15天前存在非空币种的记录时，该日期可领取
func IsClaimableDate(dateStr string, records []DateRecord) bool {
	return claimOrigin(dateStr, records) != nil
}

// claimOrigin 查找15天前的来源记录，构建标识与提示内容
func claimOrigin(dateStr string, records []DateRecord) *ClaimOrigin {
	originDate, err := utils.AddDays(dateStr, -ClaimLagDays)
	if err != nil {
		return nil
	}

	originRecords := RecordsForDate(records, originDate)
	origin := &ClaimOrigin{Date: originDate}
	for _, r := range originRecords {
		for _, c := range r.Coin {
			if strings.TrimSpace(c.Name) != "" {
				origin.Coins = append(origin.Coins, CoinLine{Name: c.Name, Amount: c.Amount})
			}
		}
	}
	if len(origin.Coins) == 0 {
		return nil
	}

	// 手续费只显示一次
	for _, r := range originRecords {
		if r.Fee != 0 {
			origin.Fee = r.Fee
			break
		}
	}

	t, err := utils.ParseDate(originDate)
	if err == nil {
		origin.Label = fmt.Sprintf("%d/%d", int(t.Month()), t.Day())
	}
	return origin
}

// hasScoreRecord 该天是否已有积分记录
func hasScoreRecord(dayRecords []DateRecord) bool {
	for _, r := range dayRecords {
		if r.CurScore > 0 || r.TodayScore > 0 {
			return true
		}
	}
	return false
}

// scoreTooltip 积分提示框：三个字段分别取第一条正值记录
func scoreTooltip(dayRecords []DateRecord) *ScoreTooltip {
	tooltip := &ScoreTooltip{}
	for _, r := range dayRecords {
		if tooltip.CurScore == 0 && r.CurScore > 0 {
			tooltip.CurScore = r.CurScore
		}
		if tooltip.TodayScore == 0 && r.TodayScore > 0 {
			tooltip.TodayScore = r.TodayScore
		}
		if tooltip.ConsumptionScore == 0 && r.ConsumptionScore > 0 {
			tooltip.ConsumptionScore = r.ConsumptionScore
		}
	}
	return tooltip
}
