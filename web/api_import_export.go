package web

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"profitcal/event"
	"profitcal/ledger"
	"profitcal/logger"
)

// exportData 导出全部用户为 JSON 附件
func (s *Server) exportData(c *gin.Context) {
	var payload []byte
	var exportErr error
	readErr := s.state.Read(func(doc *ledger.ProfitData) {
		payload, exportErr = ledger.ExportDocument(doc)
	})
	if readErr != nil {
		respondError(c, http.StatusServiceUnavailable, "fetch_data_failed", readErr)
		return
	}
	if exportErr != nil {
		respondError(c, http.StatusInternalServerError, "update_data_failed", exportErr)
		return
	}

	filename := fmt.Sprintf("profit-export-%s.json", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/json", payload)
}

// importData 导入 JSON。默认只合并新日期；?overwrite=true 时整体覆盖已存在的用户。
// 任何用户缺少 date 数组都会整体拒绝，不做部分写入。
func (s *Server) importData(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 10<<20))
	if err != nil || len(payload) == 0 {
		respondError(c, http.StatusBadRequest, "import_invalid", err)
		return
	}
	overwrite := c.Query("overwrite") == "true"

	var result *ledger.ImportResult
	err = s.mutate(func(doc *ledger.ProfitData) error {
		r, ierr := ledger.ImportDocument(doc, payload, overwrite)
		if ierr != nil {
			return ierr
		}
		result = r
		return nil
	})
	if err != nil {
		respondError(c, http.StatusBadRequest, "import_invalid", err)
		return
	}

	logger.Info("📋 数据导入完成: 新增 %d 条，跳过 %d 条", result.RecordsAdded, result.RecordsSkipped)
	s.state.PublishEvent(&event.Event{
		Type:   event.EventTypeImportCompleted,
		Source: "web",
		Title:  "数据导入完成",
		Message: fmt.Sprintf("新增用户 %d，合并用户 %d，记录 %d 条",
			len(result.UsersAdded), len(result.UsersMerged), result.RecordsAdded),
	})
	respondOK(c, result)
}
