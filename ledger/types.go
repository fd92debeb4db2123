package ledger

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"profitcal/task"
)

// Platform 平台标识
type Platform string

const (
	PlatformBinance Platform = "binance"
	PlatformOKX     Platform = "okx"
	PlatformGate    Platform = "gate"
)

// LogType 操作日志类型
type LogType string

const (
	LogTypeAddRecord      LogType = "addRecord"
	LogTypeEditRecord     LogType = "editRecord"
	LogTypeClearRecord    LogType = "clearRecord"
	LogTypeEditConfigs    LogType = "editConfigs"
	LogTypeEditConfig     LogType = "editConfig"
	LogTypeEditAccounts   LogType = "editAccounts"
	LogTypeAddAccounts    LogType = "addAccounts"
	LogTypeDelAccounts    LogType = "delAccounts"
	LogTypeOrderAccounts  LogType = "orderAccounts"
	LogTypeRenameAccounts LogType = "renameAccounts"
)

// ProfitData 根文档，整体从文档存储读写
type ProfitData struct {
	Users []string             `json:"users"`
	Data  map[string]*UserData `json:"data"`
}

// UserData 单个用户的数据容器
type UserData struct {
	Config  *UserConfig    `json:"config,omitempty"`
	Binance *PlatformData  `json:"binance,omitempty"`
	OKX     *OKXData       `json:"okx,omitempty"`
	Gate    *PlatformData  `json:"gate,omitempty"`
	Tasks   *task.TaskData `json:"tasks,omitempty"`
}

// UserConfig 用户级配置
type UserConfig struct {
	UserName    string `json:"userName"`
	ShowOKXLink bool   `json:"showOKXLink,omitempty"`
}

// FastConfig 快捷配置：一键新建记录的默认字段模板
type FastConfig struct {
	Fee              string `json:"fee"`
	TodayScore       string `json:"todayScore"`
	AutoCalcCurScore bool   `json:"autoCalcCurScore,omitempty"`
	FastAddRecord    bool   `json:"fastAddRecord,omitempty"`
}

// FeeValue 解析快捷配置中的手续费
func (fc *FastConfig) FeeValue() float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(fc.Fee), 64)
	return v
}

// TodayScoreValue 解析快捷配置中的刷的积分
func (fc *FastConfig) TodayScoreValue() float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(fc.TodayScore), 64)
	return v
}

// PlatformConfig 平台级配置（主题、功能开关、快捷配置）
type PlatformConfig struct {
	Theme                string      `json:"theme,omitempty"` // light / dark
	CalendarDisplayMode  DisplayMode `json:"calendarDisplayMode,omitempty"`
	ShowMockScoreIcon    bool        `json:"showMockScoreIcon,omitempty"`
	ShowThemeIcon        bool        `json:"showThemeIcon,omitempty"`
	ShowImportExportIcon bool        `json:"showImportExportIcon,omitempty"`
	ShowSimulationScore  bool        `json:"showSimulationScore,omitempty"`
	ShowFastConfig       bool        `json:"showFastConfig,omitempty"`
	ShowClearLogs        bool        `json:"showClearLogs,omitempty"`
	FastConfig           *FastConfig `json:"fastConfig,omitempty"`
}

// PlatformData 单个平台的数据（日期记录 + 操作日志）
type PlatformData struct {
	Config *PlatformConfig `json:"config,omitempty"`
	Date   []DateRecord    `json:"date"`
	Log    []LogEntry      `json:"log,omitempty"`
}

// OKXAccount OKX 按账号分组的数据
type OKXAccount struct {
	Date  []DateRecord `json:"date"`
	Order int          `json:"order"` // 账号排序序号
}

// OKXData OKX 平台数据
type OKXData struct {
	Config   *PlatformConfig        `json:"config,omitempty"`
	Accounts map[string]*OKXAccount `json:"accounts,omitempty"`
	Log      []LogEntry             `json:"log,omitempty"`
}

// Coin 单条币种收益
type Coin struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Score  float64 `json:"score,omitempty"` // OKX 不需要
}

// DateRecord 一条日期记录。同一天可以有多条（每个空投一条），
// 展示聚合之外从不合并。
type DateRecord struct {
	Date             string  `json:"date"` // YYYY-MM-DD
	Coin             []Coin  `json:"coin,omitempty"`
	Fee              float64 `json:"fee,omitempty"`
	CurScore         float64 `json:"curScore,omitempty"`
	TodayScore       float64 `json:"todayScore,omitempty"`
	ConsumptionScore float64 `json:"consumptionScore,omitempty"`
	Remark           string  `json:"remark,omitempty"`
}

// legacyDateRecord 兼容历史版本的记录形态：
// coin 为字符串 + 顶层 amount、fee 为字符串、消耗积分字段大写开头。
type legacyDateRecord struct {
	Date                   string          `json:"date"`
	Coin                   json.RawMessage `json:"coin"`
	Amount                 json.RawMessage `json:"amount"`
	Fee                    json.RawMessage `json:"fee"`
	CurScore               json.RawMessage `json:"curScore"`
	TodayScore             json.RawMessage `json:"todayScore"`
	ConsumptionScore       json.RawMessage `json:"consumptionScore"`
	LegacyConsumptionScore json.RawMessage `json:"ConsumptionScore"`
	Remark                 string          `json:"remark"`
}

// asNumber 宽容地把 JSON 数字/数字字符串解析为 float64
func asNumber(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return v
	}
	return 0
}

// UnmarshalJSON 统一解析当前与历史形态的记录，落到规范结构上
func (r *DateRecord) UnmarshalJSON(data []byte) error {
	var legacy legacyDateRecord
	if err := json.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("解析日期记录失败: %w", err)
	}

	r.Date = legacy.Date
	r.Remark = legacy.Remark
	r.Fee = asNumber(legacy.Fee)
	r.CurScore = asNumber(legacy.CurScore)
	r.TodayScore = asNumber(legacy.TodayScore)
	r.ConsumptionScore = asNumber(legacy.ConsumptionScore)
	if r.ConsumptionScore == 0 {
		// 历史版本使用大写开头的字段名
		r.ConsumptionScore = asNumber(legacy.LegacyConsumptionScore)
	}

	r.Coin = nil
	if len(legacy.Coin) > 0 {
		var coins []Coin
		if err := json.Unmarshal(legacy.Coin, &coins); err == nil {
			r.Coin = coins
		} else {
			// 历史形态：coin 是单个字符串，金额在顶层 amount 字段
			var name string
			if err := json.Unmarshal(legacy.Coin, &name); err == nil && strings.TrimSpace(name) != "" {
				r.Coin = []Coin{{Name: name, Amount: asNumber(legacy.Amount)}}
			}
		}
	}

	return nil
}

// LogEntry 追加式操作日志
type LogEntry struct {
	ID        int64   `json:"id"` // 按用户+平台单调递增
	Timestamp int64   `json:"timestamp"`
	Action    string  `json:"action"`
	Details   string  `json:"details,omitempty"`
	IP        string  `json:"ip"`
	Type      LogType `json:"type"`
}

// HasEarnings 该记录是否有非空币种
func (r *DateRecord) HasEarnings() bool {
	for _, c := range r.Coin {
		if strings.TrimSpace(c.Name) != "" {
			return true
		}
	}
	return false
}

// IsEmpty 记录的所有字段是否都为空（保存时此类行会被丢弃）
func (r *DateRecord) IsEmpty() bool {
	return !r.HasEarnings() && r.Fee == 0 && r.CurScore == 0 &&
		r.TodayScore == 0 && r.ConsumptionScore == 0 && strings.TrimSpace(r.Remark) == ""
}

// NewProfitData 创建空文档
func NewProfitData() *ProfitData {
	return &ProfitData{
		Users: []string{},
		Data:  map[string]*UserData{},
	}
}

// SyncUsers 以 data 映射的键为准重建 users 数组。
// 历史版本允许两者漂移，这里统一以 data 为权威。
func (p *ProfitData) SyncUsers() {
	users := make([]string, 0, len(p.Data))
	for name := range p.Data {
		users = append(users, name)
	}
	sort.Strings(users)
	p.Users = users
}

// UserExists 判断用户是否存在（以 data 映射为准）
func (p *ProfitData) UserExists(name string) bool {
	_, ok := p.Data[name]
	return ok
}

// EnsureUser 获取用户数据，不存在时创建空容器
func (p *ProfitData) EnsureUser(name string) *UserData {
	if p.Data == nil {
		p.Data = map[string]*UserData{}
	}
	u, ok := p.Data[name]
	if !ok {
		u = &UserData{
			Config:  &UserConfig{UserName: name},
			Binance: &PlatformData{Date: []DateRecord{}},
		}
		p.Data[name] = u
		p.SyncUsers()
	}
	return u
}

// PlatformSection 获取用户在某平台下的数据段（OKX 需要账号名）
func (u *UserData) PlatformSection(platform Platform, account string) (*PlatformData, error) {
	switch platform {
	case PlatformBinance:
		if u.Binance == nil {
			u.Binance = &PlatformData{Date: []DateRecord{}}
		}
		return u.Binance, nil
	case PlatformGate:
		if u.Gate == nil {
			u.Gate = &PlatformData{Date: []DateRecord{}}
		}
		return u.Gate, nil
	case PlatformOKX:
		return nil, fmt.Errorf("OKX 数据按账号分组，请使用 OKXAccountSection")
	default:
		return nil, fmt.Errorf("未知平台: %s", platform)
	}
}

// OKXAccountSection 获取 OKX 某账号的数据段
func (u *UserData) OKXAccountSection(account string) *OKXAccount {
	if u.OKX == nil {
		u.OKX = &OKXData{Accounts: map[string]*OKXAccount{}}
	}
	if u.OKX.Accounts == nil {
		u.OKX.Accounts = map[string]*OKXAccount{}
	}
	acc, ok := u.OKX.Accounts[account]
	if !ok {
		acc = &OKXAccount{Date: []DateRecord{}, Order: len(u.OKX.Accounts) + 1}
		u.OKX.Accounts[account] = acc
	}
	return acc
}
