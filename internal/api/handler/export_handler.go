package handler

import (
	"github.com/gin-gonic/gin"

	"bzwops/internal/service"
	"bzwops/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportTimeAccount 导出成员工时对账单
// GET /api/v1/export/time-account/:member_id
func (h *ExportHandler) ExportTimeAccount(c *gin.Context) {
	memberID := c.Param("member_id")
	if !canAccessMember(c, memberID) {
		return
	}

	buf, filename, err := h.exportSvc.ExportTimeAccount(c.Request.Context(), memberID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Attachment(c, buf.Bytes(), filename, xlsxContentType)
}

// ExportUnderwriting 导出赞助协议播出记录
// GET /api/v1/export/underwriting/:id
func (h *ExportHandler) ExportUnderwriting(c *gin.Context) {
	buf, filename, err := h.exportSvc.ExportUnderwriting(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Attachment(c, buf.Bytes(), filename, xlsxContentType)
}
