package handler

import (
	"github.com/gin-gonic/gin"

	"bzwops/internal/service"
	"bzwops/pkg/response"
)

// CalendarHandler 任务日历订阅 HTTP 处理器
type CalendarHandler struct {
	calendarSvc service.CalendarService
}

// NewCalendarHandler 创建 CalendarHandler
func NewCalendarHandler(calendarSvc service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendarSvc: calendarSvc}
}

// MyCalendar 本人已认领任务的 iCalendar 文件
// GET /api/v1/calendar/me.ics
func (h *CalendarHandler) MyCalendar(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	h.serve(c, callerID)
}

// MemberCalendar 指定成员的 iCalendar 文件
// GET /api/v1/calendar/members/:id
func (h *CalendarHandler) MemberCalendar(c *gin.Context) {
	id := c.Param("id")
	if !canAccessMember(c, id) {
		return
	}
	h.serve(c, id)
}

func (h *CalendarHandler) serve(c *gin.Context, memberID string) {
	text, err := h.calendarSvc.MemberCalendar(c.Request.Context(), memberID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Inline(c, []byte(text), "tasks.ics", "text/calendar; charset=utf-8")
}
