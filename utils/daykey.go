package utils

import (
	"fmt"
	"time"
)

// DateLayout 日历记录使用的日期格式
const DateLayout = "2006-01-02"

// millisPerDay 一天的毫秒数
const millisPerDay = 24 * 60 * 60 * 1000

// DayKey 以天为单位归一化时间戳（毫秒），避免时区/小时差导致的同日不等
func DayKey(unixMillis int64) int64 {
	return unixMillis / millisPerDay
}

// TodayStartMillis 获取今天0点的时间戳（毫秒，配置时区）
func TodayStartMillis() int64 {
	return DayStartMillis(NowConfiguredTimezone())
}

// DayStartMillis 获取指定时间所在日0点的时间戳（毫秒）
func DayStartMillis(t time.Time) int64 {
	t = t.In(GlobalLocation)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, GlobalLocation)
	return start.UnixMilli()
}

// FormatDate 将时间格式化为 YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.In(GlobalLocation).Format(DateLayout)
}

// ParseDate 解析 YYYY-MM-DD 日期串（按配置时区的0点）
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, GlobalLocation)
	if err != nil {
		return time.Time{}, fmt.Errorf("解析日期失败: %w", err)
	}
	return t, nil
}

// AddDays 对日期串做天数偏移，返回新的 YYYY-MM-DD
func AddDays(dateStr string, days int) (string, error) {
	t, err := ParseDate(dateStr)
	if err != nil {
		return "", err
	}
	return FormatDate(t.AddDate(0, 0, days)), nil
}

// TodayStr 获取今天的 YYYY-MM-DD
func TodayStr() string {
	return FormatDate(NowConfiguredTimezone())
}
