package ledger

import (
	"fmt"

	"profitcal/utils"
)

const (
	// ClaimLagDays 空投领取的固定延迟天数（领域常量，不可配置）
	ClaimLagDays = 15

	// anomalyScoreCap 异常过滤：净积分超过该值视为脏数据导致的计算错误
	anomalyScoreCap = 1_000_000
)

// SimulationScore 计算目标日期前15天的净积分（刷的积分 - 消耗积分）。
//
// 窗口为目标日期前第1天到第15天，不含目标日期本身。有记录的天累加
// todayScore 和 consumptionScore；没有记录的天按配置的刷分补齐收入侧。
// 结果不为负；超出异常上限返回错误。
func SimulationScore(targetDate string, records []DateRecord, fallbackScore float64) (float64, error) {
	target, err := utils.ParseDate(targetDate)
	if err != nil {
		return 0, err
	}

	byDate := make(map[string][]*DateRecord, len(records))
	for i := range records {
		r := &records[i]
		byDate[r.Date] = append(byDate[r.Date], r)
	}

	var totalEarned, totalConsumed float64
	for i := 1; i <= ClaimLagDays; i++ {
		checkDate := utils.FormatDate(target.AddDate(0, 0, -i))

		dayRecords := byDate[checkDate]
		if len(dayRecords) > 0 {
			// 有记录，累加刷的积分和扣的积分
			for _, record := range dayRecords {
				totalEarned += record.TodayScore
				totalConsumed += record.ConsumptionScore
			}
		} else {
			// 没有记录，使用配置的刷的积分
			totalEarned += fallbackScore
		}
	}

	netScore := totalEarned - totalConsumed

	// 检查积分是否合理
	if netScore > anomalyScoreCap {
		return 0, fmt.Errorf("净积分 %.0f 超出合理范围，疑似脏数据", netScore)
	}

	// 积分不能为负数
	if netScore < 0 {
		return 0, nil
	}
	return netScore, nil
}

// SimulationScoreOrZero 兼容包装：任何错误都吞掉并返回 0。
// 与历史前端行为一致，仅供展示路径使用；需要区分错误的调用方
// 应直接使用 SimulationScore。
func SimulationScoreOrZero(targetDate string, records []DateRecord, fallbackScore float64) float64 {
	score, err := SimulationScore(targetDate, records, fallbackScore)
	if err != nil {
		return 0
	}
	return score
}

// SimulationRangeText 前15天窗口的展示文字，如 "1/1-1/15"
func SimulationRangeText(targetDate string) string {
	target, err := utils.ParseDate(targetDate)
	if err != nil {
		return "前15天"
	}
	end := target.AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(ClaimLagDays - 1))
	return fmt.Sprintf("%d/%d-%d/%d", int(start.Month()), start.Day(), int(end.Month()), end.Day())
}
