package task

import (
	"fmt"
	"sort"
	"strings"

	"profitcal/utils"
)

// Category 任务分类
type Category string

const (
	CategoryDaily    Category = "daily"    // 每日任务
	CategoryDuration Category = "duration" // 连续完成（起止窗口内有效）
	CategoryDeadline Category = "deadline" // 到期完成（仅到期当天有效）
)

// Template 循环任务模板（可编辑的定义）
type Template struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Category    Category `json:"category"`
	Sort        int      `json:"sort"`
	BgColor     string   `json:"bgColor,omitempty"`
	// 时间配置（仅限 duration 和 deadline 类型），时间戳为当天0点毫秒
	StartDate    int64 `json:"startDate,omitempty"`
	EndDate      int64 `json:"endDate,omitempty"`      // 仅限 duration
	DeadlineDate int64 `json:"deadlineDate,omitempty"` // 仅限 deadline
}

// DailyItem 某天任务快照中的一项。Detail 是生成时刻的模板冻结副本，
// 保证历史日不受后续模板编辑影响。
type DailyItem struct {
	TaskID      int64    `json:"taskId"`
	CompletedAt int64    `json:"completedAt,omitempty"`
	Remark      string   `json:"remark,omitempty"`
	Detail      Template `json:"detail"`
}

// DateRecord 一个日历日的任务快照
type DateRecord struct {
	ID    int64       `json:"id"`
	Date  int64       `json:"date"` // 当天0点时间戳（毫秒）
	Tasks []DailyItem `json:"tasks"`
}

// Config 任务模块配置
type Config struct {
	ShowDeleteTask bool `json:"showDeleteTask,omitempty"`
}

// TaskData 任务模块的全部数据
type TaskData struct {
	Config *Config      `json:"config,omitempty"`
	Tasks  []Template   `json:"tasks"`
	Date   []DateRecord `json:"date"`
}

// Init 确保各切片已初始化
func (td *TaskData) Init() {
	if td.Tasks == nil {
		td.Tasks = []Template{}
	}
	if td.Date == nil {
		td.Date = []DateRecord{}
	}
}

// FindTemplate 按 ID 查找当前模板
func (td *TaskData) FindTemplate(id int64) *Template {
	for i := range td.Tasks {
		if td.Tasks[i].ID == id {
			return &td.Tasks[i]
		}
	}
	return nil
}

// resolveTemplate 优先使用当前模板，找不到时回退到冻结快照。
// 这样编辑循环规则会影响尚未结束的窗口，而历史展示仍然保真。
func (td *TaskData) resolveTemplate(item *DailyItem) *Template {
	if tpl := td.FindTemplate(item.TaskID); tpl != nil {
		return tpl
	}
	return &item.Detail
}

// isActiveOn 模板在指定 day key 上是否处于活动窗口
func isActiveOn(tpl *Template, dayKey int64) bool {
	switch tpl.Category {
	case CategoryDaily:
		return true
	case CategoryDuration:
		if tpl.StartDate == 0 {
			return true
		}
		start := utils.DayKey(tpl.StartDate)
		end := start
		if tpl.EndDate != 0 {
			end = utils.DayKey(tpl.EndDate)
		}
		return dayKey >= start && dayKey <= end
	case CategoryDeadline:
		// 仅到期当天有效，前后都不行
		if tpl.DeadlineDate == 0 {
			return false
		}
		return dayKey == utils.DayKey(tpl.DeadlineDate)
	default:
		return true
	}
}

// IsTaskDue 任务今天是否可完成（控制 UI 是否允许打勾）
func (td *TaskData) IsTaskDue(item *DailyItem) bool {
	return isActiveOn(td.resolveTemplate(item), utils.DayKey(utils.TodayStartMillis()))
}

// IsTaskCountable 任务在参考日是否计入完成统计。
// 与 IsTaskDue 使用同一窗口逻辑，但参考日可以是任意一天，
// 用于回溯计算历史日的统计。
func (td *TaskData) IsTaskCountable(item *DailyItem, refMillis int64) bool {
	return isActiveOn(td.resolveTemplate(item), utils.DayKey(refMillis))
}

// RecordForDay 按 day key 查找某天的任务快照
func (td *TaskData) RecordForDay(dayMillis int64) *DateRecord {
	key := utils.DayKey(dayMillis)
	for i := range td.Date {
		if utils.DayKey(td.Date[i].Date) == key {
			return &td.Date[i]
		}
	}
	return nil
}

// GenerateTodayTasks 生成今天的任务快照。按日幂等：当天已有快照时
// 不再生成也不追加。返回是否发生了生成。
func (td *TaskData) GenerateTodayTasks(nowMillis int64) bool {
	td.Init()

	if td.RecordForDay(nowMillis) != nil {
		return false
	}

	var maxID int64
	for _, d := range td.Date {
		if d.ID > maxID {
			maxID = d.ID
		}
	}

	record := DateRecord{
		ID:    maxID + 1,
		Date:  utils.DayKey(nowMillis) * 24 * 60 * 60 * 1000,
		Tasks: []DailyItem{},
	}

	templates := make([]Template, len(td.Tasks))
	copy(templates, td.Tasks)
	sort.SliceStable(templates, func(i, j int) bool {
		return templates[i].Sort < templates[j].Sort
	})

	for _, tpl := range templates {
		record.Tasks = append(record.Tasks, DailyItem{
			TaskID: tpl.ID,
			Detail: tpl, // 冻结副本
		})
	}

	td.Date = append(td.Date, record)
	return true
}

// CreateTemplate 新建任务模板
func (td *TaskData) CreateTemplate(tpl Template) (*Template, error) {
	td.Init()
	if strings.TrimSpace(tpl.Title) == "" {
		return nil, fmt.Errorf("任务标题不能为空")
	}
	switch tpl.Category {
	case CategoryDaily, CategoryDuration, CategoryDeadline:
	default:
		return nil, fmt.Errorf("未知任务分类: %s", tpl.Category)
	}

	var maxID int64
	for _, t := range td.Tasks {
		if t.ID > maxID {
			maxID = t.ID
		}
	}
	tpl.ID = maxID + 1
	if tpl.Sort == 0 {
		tpl.Sort = len(td.Tasks) + 1
	}
	td.Tasks = append(td.Tasks, tpl)
	return &td.Tasks[len(td.Tasks)-1], nil
}

// UpdateTemplate 更新任务模板（按 ID）
func (td *TaskData) UpdateTemplate(tpl Template) error {
	existing := td.FindTemplate(tpl.ID)
	if existing == nil {
		return fmt.Errorf("任务 %d 不存在", tpl.ID)
	}
	if strings.TrimSpace(tpl.Title) == "" {
		return fmt.Errorf("任务标题不能为空")
	}
	*existing = tpl
	return nil
}

// DeleteTemplate 删除任务模板。只从今天及以后的快照中移除，
// 历史快照保留用于审计展示。
func (td *TaskData) DeleteTemplate(id int64, nowMillis int64) error {
	idx := -1
	for i := range td.Tasks {
		if td.Tasks[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("任务 %d 不存在", id)
	}
	td.Tasks = append(td.Tasks[:idx], td.Tasks[idx+1:]...)

	todayKey := utils.DayKey(nowMillis)
	for i := range td.Date {
		if utils.DayKey(td.Date[i].Date) < todayKey {
			continue
		}
		items := td.Date[i].Tasks[:0]
		for _, item := range td.Date[i].Tasks {
			if item.TaskID != id {
				items = append(items, item)
			}
		}
		td.Date[i].Tasks = items
	}
	return nil
}

// CompleteTask 标记某天快照里的任务为已完成。dayMillis 定位快照，
// 必须和生成时的口径一致（本地0点毫秒）；nowMillis 只做完成时间戳。
// 直接用挂钟毫秒定位会在本地时间跨过 UTC 零点后落到错误的天上。
func (td *TaskData) CompleteTask(taskID int64, dayMillis int64, nowMillis int64) error {
	record := td.RecordForDay(dayMillis)
	if record == nil {
		return fmt.Errorf("今天的任务尚未生成")
	}
	for i := range record.Tasks {
		item := &record.Tasks[i]
		if item.TaskID != taskID {
			continue
		}
		if !td.IsTaskCountable(item, dayMillis) {
			return fmt.Errorf("任务未到可完成时间")
		}
		item.CompletedAt = nowMillis
		return nil
	}
	return fmt.Errorf("今天的快照中没有任务 %d", taskID)
}

// UncompleteTask 取消完成标记，dayMillis 口径同 CompleteTask
func (td *TaskData) UncompleteTask(taskID int64, dayMillis int64) error {
	record := td.RecordForDay(dayMillis)
	if record == nil {
		return fmt.Errorf("今天的任务尚未生成")
	}
	for i := range record.Tasks {
		if record.Tasks[i].TaskID == taskID {
			record.Tasks[i].CompletedAt = 0
			return nil
		}
	}
	return fmt.Errorf("今天的快照中没有任务 %d", taskID)
}

// SetRemark 给某天的任务写备注
func (td *TaskData) SetRemark(taskID int64, dayMillis int64, remark string) error {
	record := td.RecordForDay(dayMillis)
	if record == nil {
		return fmt.Errorf("该日期没有任务快照")
	}
	for i := range record.Tasks {
		if record.Tasks[i].TaskID == taskID {
			record.Tasks[i].Remark = remark
			return nil
		}
	}
	return fmt.Errorf("快照中没有任务 %d", taskID)
}

// DeleteDayRecord 显式删除某天的任务快照（快照从不自动删除）
func (td *TaskData) DeleteDayRecord(dayMillis int64) error {
	key := utils.DayKey(dayMillis)
	for i := range td.Date {
		if utils.DayKey(td.Date[i].Date) == key {
			td.Date = append(td.Date[:i], td.Date[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("该日期没有任务快照")
}

// DayStatistics 某天的完成统计（只统计计入的任务）
type DayStatistics struct {
	Countable int `json:"countable"`
	Completed int `json:"completed"`
}

// StatisticsForDay 回溯计算某天的完成统计
func (td *TaskData) StatisticsForDay(dayMillis int64) DayStatistics {
	var stats DayStatistics
	record := td.RecordForDay(dayMillis)
	if record == nil {
		return stats
	}
	for i := range record.Tasks {
		item := &record.Tasks[i]
		if !td.IsTaskCountable(item, dayMillis) {
			continue
		}
		stats.Countable++
		if item.CompletedAt > 0 {
			stats.Completed++
		}
	}
	return stats
}
