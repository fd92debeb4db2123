package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"profitcal/database"
	"profitcal/ledger"
	"profitcal/storage"
)

// getOperationLogs 某用户某平台的操作日志（OKX 所有账号共用一条日志流）
func (s *Server) getOperationLogs(c *gin.Context) {
	platform, err := parsePlatform(c.Param("platform"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	var entries []ledger.LogEntry
	var resolveErr error
	readErr := s.state.Read(func(doc *ledger.ProfitData) {
		u, ok := doc.Data[c.Param("user")]
		if !ok {
			resolveErr = fmt.Errorf("用户不存在")
			return
		}
		switch platform {
		case ledger.PlatformOKX:
			if u.OKX != nil {
				entries = append(entries, u.OKX.Log...)
			}
		default:
			pd, perr := u.PlatformSection(platform, "")
			if perr != nil {
				resolveErr = perr
				return
			}
			entries = append(entries, pd.Log...)
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
	respondOK(c, entries)
}

// clearOperationLogs 清空操作日志
func (s *Server) clearOperationLogs(c *gin.Context) {
	platform, err := parsePlatform(c.Param("platform"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	name := c.Param("user")
	removed := 0
	err = s.mutate(func(doc *ledger.ProfitData) error {
		u, ok := doc.Data[name]
		if !ok {
			return fmt.Errorf("用户不存在: %s", name)
		}
		switch platform {
		case ledger.PlatformOKX:
			if u.OKX != nil {
				removed = u.OKX.ClearLogs()
			}
		default:
			pd, perr := u.PlatformSection(platform, "")
			if perr != nil {
				return perr
			}
			removed = pd.ClearLogs()
		}
		return nil
	})
	if err != nil {
		respondError(c, http.StatusBadRequest, "update_data_failed", err)
		return
	}
	respondOK(c, gin.H{"removed": removed})
}

// getAppLogs 应用日志（本地 SQLite，支持级别/关键词/时间段过滤）
func (s *Server) getAppLogs(c *gin.Context) {
	if s.logStorage == nil {
		respondError(c, http.StatusServiceUnavailable, "fetch_data_failed")
		return
	}

	params := storage.LogQueryParams{
		Level:   c.Query("level"),
		Keyword: c.Query("keyword"),
	}
	params.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	params.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if raw := c.Query("start_time"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			params.StartTime = t
		}
	}
	if raw := c.Query("end_time"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			params.EndTime = t
		}
	}

	records, total, err := s.logStorage.GetLogs(params)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "fetch_data_failed", err)
		return
	}
	respondOK(c, gin.H{"logs": records, "total": total})
}

// getEvents 事件中心查询
func (s *Server) getEvents(c *gin.Context) {
	if s.eventDB == nil {
		respondError(c, http.StatusServiceUnavailable, "fetch_data_failed")
		return
	}

	filter := &database.EventFilter{
		Type:     c.Query("type"),
		Severity: c.Query("severity"),
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if raw := c.Query("start_time"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.StartTime = &t
		}
	}
	if raw := c.Query("end_time"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.EndTime = &t
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	events, err := s.eventDB.GetEvents(ctx, filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "fetch_data_failed", err)
		return
	}
	total, _ := s.eventDB.CountEvents(ctx, filter)
	respondOK(c, gin.H{"events": events, "total": total})
}
