package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"profitcal/ledger"
	"profitcal/task"
	"profitcal/utils"
)

// taskData 取出某用户的任务数据段，不存在时创建空容器
func taskData(u *ledger.UserData) *task.TaskData {
	if u.Tasks == nil {
		u.Tasks = &task.TaskData{}
	}
	u.Tasks.Init()
	return u.Tasks
}

// getTasks 任务模板与日期快照
func (s *Server) getTasks(c *gin.Context) {
	var td *task.TaskData
	var resolveErr error
	readErr := s.state.Read(func(doc *ledger.ProfitData) {
		u, ok := doc.Data[c.Param("user")]
		if !ok {
			resolveErr = fmt.Errorf("用户不存在")
			return
		}
		if u.Tasks == nil {
			td = &task.TaskData{Tasks: []task.Template{}, Date: []task.DateRecord{}}
			return
		}
		// 拷贝后返回，避免把镜像内部结构交给序列化
		clone := *u.Tasks
		td = &clone
	})
	if readErr != nil {
		respondError(c, http.StatusServiceUnavailable, "fetch_data_failed", readErr)
		return
	}
	if resolveErr != nil {
		respondError(c, http.StatusNotFound, "user_not_found", resolveErr)
		return
	}
	respondOK(c, td)
}

// createTaskTemplate 新建任务模板
func (s *Server) createTaskTemplate(c *gin.Context) {
	var req task.Template
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	name := c.Param("user")
	var created task.Template
	err := s.mutate(func(doc *ledger.ProfitData) error {
		u, ok := doc.Data[name]
		if !ok {
			return fmt.Errorf("用户不存在: %s", name)
		}
		tpl, terr := taskData(u).CreateTemplate(req)
		if terr != nil {
			return terr
		}
		created = *tpl
		return nil
	})
	if err != nil {
		respondError(c, http.StatusBadRequest, "update_data_failed", err)
		return
	}
	respondOK(c, created)
}

// updateTaskTemplate 更新任务模板
func (s *Server) updateTaskTemplate(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	var req task.Template
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	req.ID = id

	name := c.Param("user")
	err = s.mutate(func(doc *ledger.ProfitData) error {
		u, ok := doc.Data[name]
		if !ok {
			return fmt.Errorf("用户不存在: %s", name)
		}
		return taskData(u).UpdateTemplate(req)
	})
	if err != nil {
		respondError(c, http.StatusBadRequest, "update_data_failed", err)
		return
	}
	respondMessage(c, "config_updated")
}

// deleteTaskTemplate 删除任务模板（历史快照保留）
func (s *Server) deleteTaskTemplate(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	name := c.Param("user")
	err = s.mutate(func(doc *ledger.ProfitData) error {
		u, ok := doc.Data[name]
		if !ok {
			return fmt.Errorf("用户不存在: %s", name)
		}
		return taskData(u).DeleteTemplate(id, utils.TodayStartMillis()+1)
	})
	if err != nil {
		respondError(c, http.StatusBadRequest, "update_data_failed", err)
		return
	}
	respondMessage(c, "config_updated")
}

// generateTasks 手动生成今天的任务快照（后台循环之外的入口）
func (s *Server) generateTasks(c *gin.Context) {
	name := c.Param("user")
	generated := false
	err := s.mutate(func(doc *ledger.ProfitData) error {
		u, ok := doc.Data[name]
		if !ok {
			return fmt.Errorf("用户不存在: %s", name)
		}
		generated = taskData(u).GenerateTodayTasks(utils.TodayStartMillis() + 1)
		return nil
	})
	if err != nil {
		respondError(c, http.StatusBadRequest, "update_data_failed", err)
		return
	}
	respondOK(c, gin.H{"generated": generated})
}

// completeTask 标记今天的任务为已完成
func (s *Server) completeTask(c *gin.Context) {
	var req struct {
		TaskID int64 `json:"taskId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	name := c.Param("user")
	err := s.mutate(func(doc *ledger.ProfitData) error {
		u, ok := doc.Data[name]
		if !ok {
			return fmt.Errorf("用户不存在: %s", name)
		}
		// 快照按本地0点口径定位，完成时间戳用挂钟时间
		return taskData(u).CompleteTask(req.TaskID, utils.TodayStartMillis()+1,
			utils.NowConfiguredTimezone().UnixMilli())
	})
	if err != nil {
		respondError(c, http.StatusBadRequest, "task_not_due", err)
		return
	}
	respondMessage(c, "config_updated")
}

// uncompleteTask 取消完成标记
func (s *Server) uncompleteTask(c *gin.Context) {
	var req struct {
		TaskID int64 `json:"taskId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	name := c.Param("user")
	err := s.mutate(func(doc *ledger.ProfitData) error {
		u, ok := doc.Data[name]
		if !ok {
			return fmt.Errorf("用户不存在: %s", name)
		}
		return taskData(u).UncompleteTask(req.TaskID, utils.TodayStartMillis()+1)
	})
	if err != nil {
		respondError(c, http.StatusBadRequest, "update_data_failed", err)
		return
	}
	respondMessage(c, "config_updated")
}

// setTaskRemark 给某天的任务写备注
func (s *Server) setTaskRemark(c *gin.Context) {
	var req struct {
		TaskID int64  `json:"taskId" binding:"required"`
		Date   int64  `json:"date"` // 当天0点毫秒，缺省为今天
		Remark string `json:"remark"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.Date == 0 {
		req.Date = utils.TodayStartMillis() + 1
	}

	name := c.Param("user")
	err := s.mutate(func(doc *ledger.ProfitData) error {
		u, ok := doc.Data[name]
		if !ok {
			return fmt.Errorf("用户不存在: %s", name)
		}
		return taskData(u).SetRemark(req.TaskID, req.Date, req.Remark)
	})
	if err != nil {
		respondError(c, http.StatusBadRequest, "update_data_failed", err)
		return
	}
	respondMessage(c, "config_updated")
}

// deleteTaskDay 显式删除某天的任务快照
func (s *Server) deleteTaskDay(c *gin.Context) {
	dayMillis, err := strconv.ParseInt(c.Query("date"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	name := c.Param("user")
	err = s.mutate(func(doc *ledger.ProfitData) error {
		u, ok := doc.Data[name]
		if !ok {
			return fmt.Errorf("用户不存在: %s", name)
		}
		return taskData(u).DeleteDayRecord(dayMillis)
	})
	if err != nil {
		respondError(c, http.StatusBadRequest, "update_data_failed", err)
		return
	}
	respondMessage(c, "record_cleared")
}

// getTaskStatistics 某天的任务完成统计
func (s *Server) getTaskStatistics(c *gin.Context) {
	dayMillis := utils.TodayStartMillis() + 1
	if raw := c.Query("date"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		dayMillis = v
	}

	var stats task.DayStatistics
	var resolveErr error
	readErr := s.state.Read(func(doc *ledger.ProfitData) {
		u, ok := doc.Data[c.Param("user")]
		if !ok {
			resolveErr = fmt.Errorf("用户不存在")
			return
		}
		if u.Tasks != nil {
			stats = u.Tasks.StatisticsForDay(dayMillis)
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
	respondOK(c, stats)
}
