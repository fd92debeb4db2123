package ledger

import (
	"encoding/json"
	"fmt"
)

// ExportedUser 导入/导出文件中单个用户的形态
type ExportedUser struct {
	Config *UserConfig  `json:"config"`
	Date   []DateRecord `json:"date"`
}

// ExportDocument 导出为 {用户名: {config, date[]}} 的 JSON。
// 导出的是主平台（binance）的日期记录。
func ExportDocument(doc *ProfitData) ([]byte, error) {
	out := make(map[string]*ExportedUser, len(doc.Data))
	for name, user := range doc.Data {
		exported := &ExportedUser{
			Config: user.Config,
			Date:   []DateRecord{},
		}
		if user.Binance != nil {
			exported.Date = user.Binance.Date
		}
		out[name] = exported
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("序列化导出数据失败: %w", err)
	}
	return data, nil
}

// ImportResult 导入结果摘要
type ImportResult struct {
	UsersAdded     []string `json:"usersAdded"`
	UsersMerged    []string `json:"usersMerged"`
	RecordsAdded   int      `json:"recordsAdded"`
	RecordsSkipped int      `json:"recordsSkipped"` // 已存在同日期的记录被跳过
	NeedConfirm    []string `json:"needConfirm,omitempty"`
}

// ImportDocument 导入 {用户名: {config, date[]}} 的 JSON 并合并进文档。
//
// 每个用户必须带有 date 数组，否则整体拒绝（不做部分写入）。
// 已存在的用户默认只合并新日期的记录；overwrite 为 true 时用导入数据
// 整体覆盖该用户（对应前端的覆盖确认），否则把该用户记入 NeedConfirm。
func ImportDocument(doc *ProfitData, payload []byte, overwrite bool) (*ImportResult, error) {
	var incoming map[string]*ExportedUser
	if err := json.Unmarshal(payload, &incoming); err != nil {
		return nil, fmt.Errorf("导入数据格式不正确: %w", err)
	}
	if len(incoming) == 0 {
		return nil, fmt.Errorf("导入数据为空")
	}

	// 校验先行：任何用户缺少 date 数组都拒绝，不做部分写入
	for name, u := range incoming {
		if u == nil || u.Date == nil {
			return nil, fmt.Errorf("用户 %s 缺少 date 数组", name)
		}
	}

	result := &ImportResult{}
	for name, u := range incoming {
		existing, exists := doc.Data[name]
		if !exists {
			user := doc.EnsureUser(name)
			if u.Config != nil {
				user.Config = u.Config
			}
			user.Binance.Date = append(user.Binance.Date[:0], u.Date...)
			sortByDate(user.Binance.Date)
			result.UsersAdded = append(result.UsersAdded, name)
			result.RecordsAdded += len(u.Date)
			continue
		}

		if existing.Binance == nil {
			existing.Binance = &PlatformData{Date: []DateRecord{}}
		}

		if overwrite {
			if u.Config != nil {
				existing.Config = u.Config
			}
			result.RecordsAdded += len(u.Date)
			existing.Binance.Date = append(existing.Binance.Date[:0], u.Date...)
			sortByDate(existing.Binance.Date)
			result.UsersMerged = append(result.UsersMerged, name)
			continue
		}

		// 默认合并：只追加尚无记录的日期
		merged := false
		skipped := 0
		for _, rec := range u.Date {
			if HasRecordOn(existing.Binance.Date, rec.Date) {
				skipped++
				continue
			}
			existing.Binance.Date = append(existing.Binance.Date, rec)
			result.RecordsAdded++
			merged = true
		}
		sortByDate(existing.Binance.Date)
		if merged {
			result.UsersMerged = append(result.UsersMerged, name)
		}
		if skipped > 0 {
			result.RecordsSkipped += skipped
			result.NeedConfirm = append(result.NeedConfirm, name)
		}
	}

	doc.SyncUsers()
	return result, nil
}
