package handler

import (
	"github.com/gin-gonic/gin"

	"bzwops/internal/dto"
	"bzwops/internal/service"
	"bzwops/pkg/response"
)

// TaskHandler 周期模板、任务、认领、工作记录与提醒链接 HTTP 处理器
type TaskHandler struct {
	templateSvc service.TemplateService
	taskSvc     service.TaskService
	claimSvc    service.ClaimService
	workSvc     service.WorkService
	nagSvc      service.NagService
}

// NewTaskHandler 创建 TaskHandler
func NewTaskHandler(
	templateSvc service.TemplateService,
	taskSvc service.TaskService,
	claimSvc service.ClaimService,
	workSvc service.WorkService,
	nagSvc service.NagService,
) *TaskHandler {
	return &TaskHandler{
		templateSvc: templateSvc,
		taskSvc:     taskSvc,
		claimSvc:    claimSvc,
		workSvc:     workSvc,
		nagSvc:      nagSvc,
	}
}

// ════════════════════════════════════════════════════════
// 周期任务模板
// ════════════════════════════════════════════════════════

// ListTemplates 模板列表
// GET /api/v1/templates?include_suspended=true
func (h *TaskHandler) ListTemplates(c *gin.Context) {
	includeSuspended := c.Query("include_suspended") == "true"

	list, err := h.templateSvc.List(c.Request.Context(), includeSuspended)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// GetTemplate 模板详情
// GET /api/v1/templates/:id
func (h *TaskHandler) GetTemplate(c *gin.Context) {
	tpl, err := h.templateSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, tpl)
}

// CreateTemplate 创建模板
// POST /api/v1/templates
func (h *TaskHandler) CreateTemplate(c *gin.Context) {
	var req dto.TemplateRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	tpl, err := h.templateSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, tpl)
}

// UpdateTemplate 更新模板
// PUT /api/v1/templates/:id
func (h *TaskHandler) UpdateTemplate(c *gin.Context) {
	var req dto.TemplateRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	tpl, err := h.templateSvc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, tpl)
}

// DeleteTemplate 删除模板（已生成的任务保留）
// DELETE /api/v1/templates/:id
func (h *TaskHandler) DeleteTemplate(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.templateSvc.Delete(c.Request.Context(), c.Param("id"), callerID); err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, nil)
}

// GenerateTasks 手动为单个模板补齐任务
// POST /api/v1/templates/:id/generate
func (h *TaskHandler) GenerateTasks(c *gin.Context) {
	var req dto.GenerateTasksRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	id := c.Param("id")
	tasks, err := h.templateSvc.GenerateTasks(c.Request.Context(), id, req.HorizonDays)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	dates := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if t.ScheduledDate != nil {
			dates = append(dates, t.ScheduledDate.Format("2006-01-02"))
		}
	}
	response.OK(c, dto.GenerateTasksResponse{TemplateID: id, Created: len(tasks), Dates: dates})
}

// GenerateAll 为全部未暂停模板补齐任务
// POST /api/v1/templates/generate
func (h *TaskHandler) GenerateAll(c *gin.Context) {
	var req dto.GenerateTasksRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	created, err := h.templateSvc.GenerateAll(c.Request.Context(), req.HorizonDays)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, dto.GenerateTasksResponse{Created: created, Dates: []string{}})
}

// ════════════════════════════════════════════════════════
// 任务
// ════════════════════════════════════════════════════════

// ListTasks 任务列表（分页，可按状态/模板/日期过滤）
// GET /api/v1/tasks
func (h *TaskHandler) ListTasks(c *gin.Context) {
	var req dto.TaskListRequest
	if !bindQuery(c, &req) {
		return
	}

	list, total, err := h.taskSvc.List(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// GetTask 任务详情
// GET /api/v1/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, err := h.taskSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, task)
}

// CreateTask 创建一次性任务
// POST /api/v1/tasks
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req dto.TaskRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	task, err := h.taskSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, task)
}

// UpdateTask 更新任务（乐观锁）
// PUT /api/v1/tasks/:id
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	var req dto.UpdateTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	task, err := h.taskSvc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, task)
}

// DeleteTask 删除任务
// DELETE /api/v1/tasks/:id
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.taskSvc.Delete(c.Request.Context(), c.Param("id"), callerID); err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, nil)
}

// MarkTaskDone 标记任务完成
// POST /api/v1/tasks/:id/done
func (h *TaskHandler) MarkTaskDone(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	task, err := h.taskSvc.MarkDone(c.Request.Context(), c.Param("id"), callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, task)
}

// ListNotes 任务备注
// GET /api/v1/tasks/:id/notes
func (h *TaskHandler) ListNotes(c *gin.Context) {
	notes, err := h.taskSvc.ListNotes(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": notes})
}

// AddNote 添加任务备注
// POST /api/v1/tasks/:id/notes
func (h *TaskHandler) AddNote(c *gin.Context) {
	var req dto.TaskNoteRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	note, err := h.taskSvc.AddNote(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, note)
}

// ════════════════════════════════════════════════════════
// 认领与工作记录
// ════════════════════════════════════════════════════════

// ListTaskClaims 任务的全部认领
// GET /api/v1/tasks/:id/claims
func (h *TaskHandler) ListTaskClaims(c *gin.Context) {
	claims, err := h.claimSvc.ListByTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": claims})
}

// ListMemberClaims 成员的全部认领
// GET /api/v1/members/:id/claims
func (h *TaskHandler) ListMemberClaims(c *gin.Context) {
	id := c.Param("id")
	if !canAccessMember(c, id) {
		return
	}

	claims, err := h.claimSvc.ListByMember(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": claims})
}

// GetClaim 认领详情
// GET /api/v1/claims/:id
func (h *TaskHandler) GetClaim(c *gin.Context) {
	claim, err := h.claimSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, claim)
}

// CreateClaim 认领任务
// POST /api/v1/claims
func (h *TaskHandler) CreateClaim(c *gin.Context) {
	var req dto.ClaimRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	// 替他人认领需要 staff 权限
	if req.MemberID != "" && req.MemberID != callerID && !canAccessMember(c, req.MemberID) {
		return
	}

	claim, err := h.claimSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, claim)
}

// UpdateClaim 更新认领状态
// PUT /api/v1/claims/:id
func (h *TaskHandler) UpdateClaim(c *gin.Context) {
	var req dto.UpdateClaimRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	claim, err := h.claimSvc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, claim)
}

// ListWorks 认领下的工作记录
// GET /api/v1/claims/:id/works
func (h *TaskHandler) ListWorks(c *gin.Context) {
	works, err := h.workSvc.ListByClaim(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": works})
}

// CreateWork 登记工作记录
// POST /api/v1/works
func (h *TaskHandler) CreateWork(c *gin.Context) {
	var req dto.WorkRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	work, err := h.workSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, work)
}

// UpdateWork 更新工作记录
// PUT /api/v1/works/:id
func (h *TaskHandler) UpdateWork(c *gin.Context) {
	var req dto.UpdateWorkRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	work, err := h.workSvc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, work)
}

// ════════════════════════════════════════════════════════
// 提醒链接（无需登录，凭令牌）
// ════════════════════════════════════════════════════════

// CompleteNagTask 点击提醒邮件中的链接标记任务完成
// GET /api/v1/nags/:token/tasks/:task_id/done
func (h *TaskHandler) CompleteNagTask(c *gin.Context) {
	task, err := h.nagSvc.CompleteTask(c.Request.Context(), c.Param("token"), c.Param("task_id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{
		"task_id":    task.TaskID,
		"short_desc": task.ShortDesc,
		"status":     task.Status,
		"message":    "Thanks! The task has been marked as done.",
	})
}
