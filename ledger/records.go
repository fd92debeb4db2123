package ledger

import (
	"fmt"
	"sort"
	"time"

	"profitcal/utils"
)

// SaveDayRecords 整体替换某一天的记录：先删除该日期的全部行，
// 再插入非空行。全部为空视为清空该天。
func (pd *PlatformData) SaveDayRecords(dateStr string, rows []DateRecord) error {
	if _, err := utils.ParseDate(dateStr); err != nil {
		return err
	}

	kept := pd.Date[:0]
	for _, r := range pd.Date {
		if r.Date != dateStr {
			kept = append(kept, r)
		}
	}
	pd.Date = kept

	for _, row := range rows {
		if row.Date != dateStr {
			return fmt.Errorf("记录日期 %s 与目标日期 %s 不一致", row.Date, dateStr)
		}
		if row.IsEmpty() {
			continue
		}
		pd.Date = append(pd.Date, row)
	}

	sortByDate(pd.Date)
	return nil
}

// ClearDay 删除某一天的全部记录，返回删除的行数
func (pd *PlatformData) ClearDay(dateStr string) int {
	removed := 0
	kept := pd.Date[:0]
	for _, r := range pd.Date {
		if r.Date == dateStr {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	pd.Date = kept
	return removed
}

// QuickCreate 根据快捷配置创建一条记录。
// 该日期已有记录、或快捷配置没有有效数据时拒绝。
func (pd *PlatformData) QuickCreate(dateStr string, fc *FastConfig) (*DateRecord, error) {
	if fc == nil {
		return nil, fmt.Errorf("未找到快捷配置")
	}
	if _, err := utils.ParseDate(dateStr); err != nil {
		return nil, err
	}
	if HasRecordOn(pd.Date, dateStr) {
		return nil, fmt.Errorf("日期 %s 已有记录，不能快捷新建", dateStr)
	}

	fee := fc.FeeValue()
	todayScore := fc.TodayScoreValue()
	if fee <= 0 && todayScore <= 0 {
		return nil, fmt.Errorf("快捷配置中没有有效数据")
	}

	record := DateRecord{
		Date:       dateStr,
		Coin:       nil, // 空投名称留空，收入为0
		Fee:        fee,
		TodayScore: todayScore,
		Remark:     "通过快捷配置自动创建",
	}
	pd.Date = append(pd.Date, record)
	sortByDate(pd.Date)
	return &record, nil
}

// AppendLog 追加一条操作日志，ID 在该平台段内单调递增
func (pd *PlatformData) AppendLog(action string, logType LogType, details, ip string) LogEntry {
	var maxID int64
	for _, e := range pd.Log {
		if e.ID > maxID {
			maxID = e.ID
		}
	}

	entry := LogEntry{
		ID:        maxID + 1,
		Timestamp: time.Now().UnixMilli(),
		Action:    action,
		Details:   details,
		IP:        ip,
		Type:      logType,
	}
	pd.Log = append(pd.Log, entry)
	return entry
}

// ClearLogs 清空操作日志（仅显式用户操作调用）
func (pd *PlatformData) ClearLogs() int {
	n := len(pd.Log)
	pd.Log = nil
	return n
}

func sortByDate(records []DateRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date < records[j].Date
	})
}
