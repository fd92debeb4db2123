package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"profitcal/docstore"
	"profitcal/ledger"
	"profitcal/logger"
	"profitcal/metrics"
	"profitcal/utils"
)

// mutate 带超时的读改写，统一给各个写入类处理器用
func (s *Server) mutate(fn func(doc *ledger.ProfitData) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.state.Mutate(ctx, fn)
}

// parsePlatform 校验平台参数
func parsePlatform(raw string) (ledger.Platform, error) {
	switch ledger.Platform(raw) {
	case ledger.PlatformBinance, ledger.PlatformOKX, ledger.PlatformGate:
		return ledger.Platform(raw), nil
	default:
		return "", fmt.Errorf("未知平台: %s", raw)
	}
}

// sectionRecords 取出某用户某平台（OKX 按账号）的记录快照
func sectionRecords(u *ledger.UserData, platform ledger.Platform, account string) ([]ledger.DateRecord, error) {
	if platform == ledger.PlatformOKX {
		if account == "" {
			return nil, fmt.Errorf("OKX 平台需要 account 参数")
		}
		if u.OKX == nil || u.OKX.Accounts == nil || u.OKX.Accounts[account] == nil {
			return nil, fmt.Errorf("账号不存在: %s", account)
		}
		out := make([]ledger.DateRecord, len(u.OKX.Accounts[account].Date))
		copy(out, u.OKX.Accounts[account].Date)
		return out, nil
	}

	pd, err := u.PlatformSection(platform, "")
	if err != nil {
		return nil, err
	}
	out := make([]ledger.DateRecord, len(pd.Date))
	copy(out, pd.Date)
	return out, nil
}

// platformConfig 平台级配置（OKX 所有账号共用一份）
func platformConfig(u *ledger.UserData, platform ledger.Platform) *ledger.PlatformConfig {
	switch platform {
	case ledger.PlatformOKX:
		if u.OKX == nil {
			return nil
		}
		return u.OKX.Config
	case ledger.PlatformGate:
		if u.Gate == nil {
			return nil
		}
		return u.Gate.Config
	default:
		if u.Binance == nil {
			return nil
		}
		return u.Binance.Config
	}
}

// getStatus 应用状态摘要
func (s *Server) getStatus(c *gin.Context) {
	respondOK(c, s.state.Status())
}

// getSystemMetrics 进程资源占用
func (s *Server) getSystemMetrics(c *gin.Context) {
	m, err := metrics.CollectSystemMetrics()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "system_metrics_failed", err)
		return
	}
	respondOK(c, m)
}

// refreshData 手动重新拉取远端文档
func (s *Server) refreshData(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.state.Refresh(ctx); err != nil {
		logger.Error("❌ 手动刷新失败: %v", err)
		respondError(c, http.StatusBadGateway, "fetch_data_failed", err)
		return
	}
	respondOK(c, s.state.Status())
}

// switchBin 切换到另一个文档（别名或裸 ID）
func (s *Server) switchBin(c *gin.Context) {
	var req struct {
		Bin string `json:"bin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.state.Load(ctx, req.Bin); err != nil {
		respondError(c, http.StatusBadGateway, "fetch_data_failed", err)
		return
	}
	s.hub.Broadcast("status", s.state.Status())
	respondOK(c, s.state.Status())
}

// listUsers 用户列表
func (s *Server) listUsers(c *gin.Context) {
	var users []string
	err := s.state.Read(func(doc *ledger.ProfitData) {
		users = append(users, doc.Users...)
	})
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, "fetch_data_failed", err)
		return
	}
	respondOK(c, users)
}

// createUser 新建用户
func (s *Server) createUser(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(c, http.StatusBadRequest, "invalid_request")
		return
	}

	err := s.mutate(func(doc *ledger.ProfitData) error {
		if doc.UserExists(name) {
			return fmt.Errorf("用户已存在: %s", name)
		}
		doc.EnsureUser(name)
		return nil
	})
	if err != nil {
		respondError(c, http.StatusConflict, "user_exists", err)
		return
	}
	respondMessage(c, "config_updated")
}

// deleteUser 删除用户及其全部数据
func (s *Server) deleteUser(c *gin.Context) {
	name := c.Param("user")
	err := s.mutate(func(doc *ledger.ProfitData) error {
		if !doc.UserExists(name) {
			return fmt.Errorf("用户不存在: %s", name)
		}
		delete(doc.Data, name)
		return nil
	})
	if err != nil {
		respondError(c, http.StatusNotFound, "user_not_found", err)
		return
	}
	respondMessage(c, "config_updated")
}

// updateUserConfig 更新用户级配置
func (s *Server) updateUserConfig(c *gin.Context) {
	name := c.Param("user")
	var req ledger.UserConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	err := s.mutate(func(doc *ledger.ProfitData) error {
		if !doc.UserExists(name) {
			return fmt.Errorf("用户不存在: %s", name)
		}
		cfg := req
		doc.Data[name].Config = &cfg
		return nil
	})
	if err != nil {
		respondError(c, http.StatusNotFound, "user_not_found", err)
		return
	}
	respondMessage(c, "config_updated")
}

// getPlatformConfig 平台配置
func (s *Server) getPlatformConfig(c *gin.Context) {
	platform, err := parsePlatform(c.Param("platform"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	var cfg *ledger.PlatformConfig
	var found bool
	readErr := s.state.Read(func(doc *ledger.ProfitData) {
		u, ok := doc.Data[c.Param("user")]
		if !ok {
			return
		}
		found = true
		cfg = platformConfig(u, platform)
	})
	if readErr != nil {
		respondError(c, http.StatusServiceUnavailable, "fetch_data_failed", readErr)
		return
	}
	if !found {
		respondError(c, http.StatusNotFound, "user_not_found")
		return
	}
	if cfg == nil {
		cfg = &ledger.PlatformConfig{}
	}
	respondOK(c, cfg)
}

// updatePlatformConfig 更新平台配置（主题、显示模式、快捷配置等）
func (s *Server) updatePlatformConfig(c *gin.Context) {
	platform, err := parsePlatform(c.Param("platform"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	var req ledger.PlatformConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	name := c.Param("user")
	err = s.mutate(func(doc *ledger.ProfitData) error {
		u, ok := doc.Data[name]
		if !ok {
			return fmt.Errorf("用户不存在: %s", name)
		}
		cfg := req
		switch platform {
		case ledger.PlatformOKX:
			if u.OKX == nil {
				u.OKX = &ledger.OKXData{Accounts: map[string]*ledger.OKXAccount{}}
			}
			u.OKX.Config = &cfg
			u.OKX.AppendLog("修改平台配置", ledger.LogTypeEditConfigs, "", clientIP(c))
		default:
			pd, perr := u.PlatformSection(platform, "")
			if perr != nil {
				return perr
			}
			pd.Config = &cfg
			pd.AppendLog("修改平台配置", ledger.LogTypeEditConfigs, "", clientIP(c))
		}
		return nil
	})
	if err != nil {
		respondError(c, http.StatusNotFound, "user_not_found", err)
		return
	}
	respondMessage(c, "config_updated")
}

// getCalendar 构建某个月的日历网格
func (s *Server) getCalendar(c *gin.Context) {
	platform, err := parsePlatform(c.Param("platform"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	now := utils.NowConfiguredTimezone()
	year, _ := strconv.Atoi(c.DefaultQuery("year", strconv.Itoa(now.Year())))
	month, _ := strconv.Atoi(c.DefaultQuery("month", strconv.Itoa(int(now.Month()))))
	if month < 1 || month > 12 {
		respondError(c, http.StatusBadRequest, "invalid_request")
		return
	}

	var cells []ledger.DayCell
	var hasPrev, hasNext bool
	var resolveErr error
	readErr := s.state.Read(func(doc *ledger.ProfitData) {
		u, ok := doc.Data[c.Param("user")]
		if !ok {
			resolveErr = fmt.Errorf("用户不存在")
			return
		}
		records, err := sectionRecords(u, platform, c.Query("account"))
		if err != nil {
			resolveErr = err
			return
		}

		opts := ledger.GridOptions{
			Year:  year,
			Month: time.Month(month),
			Today: utils.TodayStr(),
			Mode:  ledger.DisplayModeClaimable,
		}
		if cfg := platformConfig(u, platform); cfg != nil {
			if cfg.CalendarDisplayMode != "" {
				opts.Mode = cfg.CalendarDisplayMode
			}
			opts.FastConfig = cfg.FastConfig
			opts.SimulationOn = cfg.ShowSimulationScore
		}
		cells = ledger.BuildMonthGrid(opts, records)

		first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, utils.GlobalLocation)
		prev := first.AddDate(0, -1, 0)
		next := first.AddDate(0, 1, 0)
		hasPrev = ledger.HasMonthData(records, prev.Year(), prev.Month())
		hasNext = ledger.HasMonthData(records, next.Year(), next.Month())
	})
	if readErr != nil {
		respondError(c, http.StatusServiceUnavailable, "fetch_data_failed", readErr)
		return
	}
	if resolveErr != nil {
		respondError(c, http.StatusNotFound, "user_not_found", resolveErr)
		return
	}

	respondOK(c, gin.H{
		"year":         year,
		"month":        month,
		"cells":        cells,
		"hasPrevMonth": hasPrev,
		"hasNextMonth": hasNext,
	})
}

// getDayRecords 某天的全部记录
func (s *Server) getDayRecords(c *gin.Context) {
	platform, err := parsePlatform(c.Param("platform"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	dateStr := c.Query("date")
	if _, err := utils.ParseDate(dateStr); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	var rows []ledger.DateRecord
	var resolveErr error
	readErr := s.state.Read(func(doc *ledger.ProfitData) {
		u, ok := doc.Data[c.Param("user")]
		if !ok {
			resolveErr = fmt.Errorf("用户不存在")
			return
		}
		records, err := sectionRecords(u, platform, c.Query("account"))
		if err != nil {
			resolveErr = err
			return
		}
		rows = ledger.RecordsForDate(records, dateStr)
	})
	if readErr != nil {
		respondError(c, http.StatusServiceUnavailable, "fetch_data_failed", readErr)
		return
	}
	if resolveErr != nil {
		respondError(c, http.StatusNotFound, "user_not_found", resolveErr)
		return
	}
	respondOK(c, rows)
}

// saveDayRecords 整体替换某天的记录
func (s *Server) saveDayRecords(c *gin.Context) {
	platform, err := parsePlatform(c.Param("platform"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	var req struct {
		Date    string              `json:"date" binding:"required"`
		Records []ledger.DateRecord `json:"records"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	name := c.Param("user")
	account := c.Query("account")
	ip := clientIP(c)
	err = s.mutate(func(doc *ledger.ProfitData) error {
		u, ok := doc.Data[name]
		if !ok {
			return fmt.Errorf("用户不存在: %s", name)
		}
		if platform == ledger.PlatformOKX {
			if account == "" {
				return fmt.Errorf("OKX 平台需要 account 参数")
			}
			acc := u.OKXAccountSection(account)
			if err := acc.SaveDayRecords(req.Date, req.Records); err != nil {
				return err
			}
			u.OKX.AppendLog("保存日期记录 "+req.Date, ledger.LogTypeEditRecord, account, ip)
			return nil
		}
		pd, perr := u.PlatformSection(platform, "")
		if perr != nil {
			return perr
		}
		if err := pd.SaveDayRecords(req.Date, req.Records); err != nil {
			return err
		}
		pd.AppendLog("保存日期记录 "+req.Date, ledger.LogTypeEditRecord, "", ip)
		return nil
	})
	if err != nil {
		respondError(c, http.StatusBadRequest, "update_data_failed", err)
		return
	}
	respondMessage(c, "record_saved")
}

// clearDayRecords 清空某天的记录
func (s *Server) clearDayRecords(c *gin.Context) {
	platform, err := parsePlatform(c.Param("platform"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	dateStr := c.Query("date")
	if _, err := utils.ParseDate(dateStr); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	name := c.Param("user")
	account := c.Query("account")
	ip := clientIP(c)
	err = s.mutate(func(doc *ledger.ProfitData) error {
		u, ok := doc.Data[name]
		if !ok {
			return fmt.Errorf("用户不存在: %s", name)
		}
		if platform == ledger.PlatformOKX {
			if account == "" {
				return fmt.Errorf("OKX 平台需要 account 参数")
			}
			u.OKXAccountSection(account).ClearDay(dateStr)
			u.OKX.AppendLog("清空日期记录 "+dateStr, ledger.LogTypeClearRecord, account, ip)
			return nil
		}
		pd, perr := u.PlatformSection(platform, "")
		if perr != nil {
			return perr
		}
		pd.ClearDay(dateStr)
		pd.AppendLog("清空日期记录 "+dateStr, ledger.LogTypeClearRecord, "", ip)
		return nil
	})
	if err != nil {
		respondError(c, http.StatusBadRequest, "update_data_failed", err)
		return
	}
	respondMessage(c, "record_cleared")
}

// quickCreateRecord 按快捷配置一键新建记录
func (s *Server) quickCreateRecord(c *gin.Context) {
	platform, err := parsePlatform(c.Param("platform"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	var req struct {
		Date string `json:"date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	name := c.Param("user")
	account := c.Query("account")
	ip := clientIP(c)
	var created *ledger.DateRecord
	err = s.mutate(func(doc *ledger.ProfitData) error {
		u, ok := doc.Data[name]
		if !ok {
			return fmt.Errorf("用户不存在: %s", name)
		}
		cfg := platformConfig(u, platform)
		var fc *ledger.FastConfig
		if cfg != nil {
			fc = cfg.FastConfig
		}
		if platform == ledger.PlatformOKX {
			if account == "" {
				return fmt.Errorf("OKX 平台需要 account 参数")
			}
			rec, qerr := u.OKXAccountSection(account).QuickCreate(req.Date, fc)
			if qerr != nil {
				return qerr
			}
			created = rec
			u.OKX.AppendLog("快捷新建记录 "+req.Date, ledger.LogTypeAddRecord, account, ip)
			return nil
		}
		pd, perr := u.PlatformSection(platform, "")
		if perr != nil {
			return perr
		}
		rec, qerr := pd.QuickCreate(req.Date, fc)
		if qerr != nil {
			return qerr
		}
		created = rec
		pd.AppendLog("快捷新建记录 "+req.Date, ledger.LogTypeAddRecord, "", ip)
		return nil
	})
	if err != nil {
		respondError(c, http.StatusBadRequest, "fast_config_empty", err)
		return
	}
	respondOK(c, created)
}

// getStats 汇总统计（全量 + 指定月份）
func (s *Server) getStats(c *gin.Context) {
	platform, err := parsePlatform(c.Param("platform"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	now := utils.NowConfiguredTimezone()
	year, _ := strconv.Atoi(c.DefaultQuery("year", strconv.Itoa(now.Year())))
	month, _ := strconv.Atoi(c.DefaultQuery("month", strconv.Itoa(int(now.Month()))))

	var totals ledger.Totals
	var monthly ledger.MonthlySummary
	var resolveErr error
	readErr := s.state.Read(func(doc *ledger.ProfitData) {
		u, ok := doc.Data[c.Param("user")]
		if !ok {
			resolveErr = fmt.Errorf("用户不存在")
			return
		}
		records, err := sectionRecords(u, platform, c.Query("account"))
		if err != nil {
			resolveErr = err
			return
		}
		totals = ledger.CalcTotals(records)
		monthly = ledger.CalcMonthlySummary(records, year, time.Month(month))
	})
	if readErr != nil {
		respondError(c, http.StatusServiceUnavailable, "fetch_data_failed", readErr)
		return
	}
	if resolveErr != nil {
		respondError(c, http.StatusNotFound, "user_not_found", resolveErr)
		return
	}
	respondOK(c, gin.H{"totals": totals, "monthly": monthly})
}

// simulateScore 计算某天的模拟积分
func (s *Server) simulateScore(c *gin.Context) {
	platform, err := parsePlatform(c.Param("platform"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	dateStr := c.Query("date")
	if dateStr == "" {
		dateStr = utils.TodayStr()
	}

	var score float64
	var scoreErr, resolveErr error
	readErr := s.state.Read(func(doc *ledger.ProfitData) {
		u, ok := doc.Data[c.Param("user")]
		if !ok {
			resolveErr = fmt.Errorf("用户不存在")
			return
		}
		records, err := sectionRecords(u, platform, c.Query("account"))
		if err != nil {
			resolveErr = err
			return
		}
		fallback := 0.0
		if cfg := platformConfig(u, platform); cfg != nil && cfg.FastConfig != nil {
			fallback = cfg.FastConfig.TodayScoreValue()
		}
		score, scoreErr = ledger.SimulationScore(dateStr, records, fallback)
	})
	if readErr != nil {
		respondError(c, http.StatusServiceUnavailable, "fetch_data_failed", readErr)
		return
	}
	if resolveErr != nil {
		respondError(c, http.StatusNotFound, "user_not_found", resolveErr)
		return
	}
	if scoreErr != nil {
		metrics.RecordScoreCalculation("error")
		respondError(c, http.StatusUnprocessableEntity, "update_data_failed", scoreErr)
		return
	}
	metrics.RecordScoreCalculation("ok")
	respondOK(c, gin.H{
		"date":      dateStr,
		"score":     score,
		"rangeText": ledger.SimulationRangeText(dateStr),
	})
}

// listOKXAccounts OKX 账号列表（按 order 排序）
func (s *Server) listOKXAccounts(c *gin.Context) {
	var names []string
	var resolveErr error
	readErr := s.state.Read(func(doc *ledger.ProfitData) {
		u, ok := doc.Data[c.Param("user")]
		if !ok {
			resolveErr = fmt.Errorf("用户不存在")
			return
		}
		if u.OKX != nil {
			names = u.OKX.AccountNames()
		}
	})
	if readErr != nil {
		respondError(c, http.StatusServiceUnavailable, "fetch_data_failed", readErr)
		return
	}
	if resolveErr != nil {
		respondError(c, http.StatusNotFound, "user_not_found", resolveErr)
		return
	}
	respondOK(c, names)
}

// createOKXAccount 新建 OKX 账号
func (s *Server) createOKXAccount(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	name := c.Param("user")
	accName := strings.TrimSpace(req.Name)
	ip := clientIP(c)
	err := s.mutate(func(doc *ledger.ProfitData) error {
		u, ok := doc.Data[name]
		if !ok {
			return fmt.Errorf("用户不存在: %s", name)
		}
		if u.OKX != nil && u.OKX.Accounts != nil && u.OKX.Accounts[accName] != nil {
			return fmt.Errorf("账号已存在: %s", accName)
		}
		u.OKXAccountSection(accName)
		u.OKX.AppendLog("新建账号 "+accName, ledger.LogTypeAddAccounts, "", ip)
		return nil
	})
	if err != nil {
		respondError(c, http.StatusConflict, "update_data_failed", err)
		return
	}
	respondMessage(c, "config_updated")
}

// deleteOKXAccount 删除 OKX 账号及其记录
func (s *Server) deleteOKXAccount(c *gin.Context) {
	name := c.Param("user")
	accName := c.Param("account")
	ip := clientIP(c)
	err := s.mutate(func(doc *ledger.ProfitData) error {
		u, ok := doc.Data[name]
		if !ok {
			return fmt.Errorf("用户不存在: %s", name)
		}
		if u.OKX == nil || u.OKX.Accounts == nil || u.OKX.Accounts[accName] == nil {
			return fmt.Errorf("账号不存在: %s", accName)
		}
		delete(u.OKX.Accounts, accName)
		u.OKX.AppendLog("删除账号 "+accName, ledger.LogTypeDelAccounts, "", ip)
		return nil
	})
	if err != nil {
		respondError(c, http.StatusNotFound, "update_data_failed", err)
		return
	}
	respondMessage(c, "config_updated")
}

// renameOKXAccount 重命名 OKX 账号
func (s *Server) renameOKXAccount(c *gin.Context) {
	var req struct {
		NewName string `json:"newName" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	name := c.Param("user")
	oldName := c.Param("account")
	newName := strings.TrimSpace(req.NewName)
	ip := clientIP(c)
	err := s.mutate(func(doc *ledger.ProfitData) error {
		u, ok := doc.Data[name]
		if !ok {
			return fmt.Errorf("用户不存在: %s", name)
		}
		if u.OKX == nil || !u.OKX.RenameAccount(oldName, newName) {
			return fmt.Errorf("重命名失败: %s -> %s", oldName, newName)
		}
		u.OKX.AppendLog(fmt.Sprintf("重命名账号 %s -> %s", oldName, newName),
			ledger.LogTypeRenameAccounts, "", ip)
		return nil
	})
	if err != nil {
		respondError(c, http.StatusBadRequest, "update_data_failed", err)
		return
	}
	respondMessage(c, "config_updated")
}

// clientIP 操作日志里记录的来源 IP。本机访问时换成出口公网 IP，
// 多台设备共用文档时日志才有区分度。
func clientIP(c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "127.0.0.1" || ip == "::1" {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return docstore.PublicIP(ctx)
	}
	return ip
}
