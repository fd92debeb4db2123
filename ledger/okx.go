package ledger

import "sort"

// OKX 的记录按账号分组，但单账号的操作语义与普通平台完全一致。
// 这里通过临时的 PlatformData 视图复用同一套记录操作。

// SaveDayRecords 整体替换某账号某天的记录
func (a *OKXAccount) SaveDayRecords(dateStr string, rows []DateRecord) error {
	pd := &PlatformData{Date: a.Date}
	if err := pd.SaveDayRecords(dateStr, rows); err != nil {
		return err
	}
	a.Date = pd.Date
	return nil
}

// ClearDay 清空某账号某天的全部记录
func (a *OKXAccount) ClearDay(dateStr string) int {
	pd := &PlatformData{Date: a.Date}
	removed := pd.ClearDay(dateStr)
	a.Date = pd.Date
	return removed
}

// QuickCreate 按快捷配置为某账号一键新建记录
func (a *OKXAccount) QuickCreate(dateStr string, fc *FastConfig) (*DateRecord, error) {
	pd := &PlatformData{Date: a.Date}
	rec, err := pd.QuickCreate(dateStr, fc)
	if err != nil {
		return nil, err
	}
	a.Date = pd.Date
	return rec, nil
}

// AppendLog OKX 的操作日志挂在平台层，所有账号共用一条日志流
func (d *OKXData) AppendLog(action string, logType LogType, details, ip string) LogEntry {
	pd := &PlatformData{Log: d.Log}
	entry := pd.AppendLog(action, logType, details, ip)
	d.Log = pd.Log
	return entry
}

// ClearLogs 清空 OKX 的操作日志
func (d *OKXData) ClearLogs() int {
	pd := &PlatformData{Log: d.Log}
	removed := pd.ClearLogs()
	d.Log = pd.Log
	return removed
}

// AccountNames 按 order 排序的账号名列表
func (d *OKXData) AccountNames() []string {
	names := make([]string, 0, len(d.Accounts))
	for name := range d.Accounts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		oi, oj := d.Accounts[names[i]].Order, d.Accounts[names[j]].Order
		if oi != oj {
			return oi < oj
		}
		return names[i] < names[j]
	})
	return names
}

// RenameAccount 重命名账号，保留排序序号
func (d *OKXData) RenameAccount(oldName, newName string) bool {
	acc, ok := d.Accounts[oldName]
	if !ok {
		return false
	}
	if _, exists := d.Accounts[newName]; exists {
		return false
	}
	delete(d.Accounts, oldName)
	d.Accounts[newName] = acc
	return true
}
