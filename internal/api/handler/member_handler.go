package handler

import (
	"github.com/gin-gonic/gin"

	"bzwops/internal/dto"
	"bzwops/internal/service"
	"bzwops/pkg/response"
)

// MemberHandler 成员、会员资格、到访与工时账户 HTTP 处理器
type MemberHandler struct {
	memberSvc       service.MemberService
	membershipSvc   service.MembershipService
	visitSvc        service.VisitService
	timeAccountSvc  service.TimeAccountService
	notificationSvc service.NotificationService
}

// NewMemberHandler 创建 MemberHandler
func NewMemberHandler(
	memberSvc service.MemberService,
	membershipSvc service.MembershipService,
	visitSvc service.VisitService,
	timeAccountSvc service.TimeAccountService,
	notificationSvc service.NotificationService,
) *MemberHandler {
	return &MemberHandler{
		memberSvc:       memberSvc,
		membershipSvc:   membershipSvc,
		visitSvc:        visitSvc,
		timeAccountSvc:  timeAccountSvc,
		notificationSvc: notificationSvc,
	}
}

// ════════════════════════════════════════════════════════
// 成员
// ════════════════════════════════════════════════════════

// GetMe 当前成员信息
// GET /api/v1/members/me
func (h *MemberHandler) GetMe(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	member, err := h.memberSvc.GetByID(c.Request.Context(), callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, member)
}

// ListMembers 成员列表（分页）
// GET /api/v1/members
func (h *MemberHandler) ListMembers(c *gin.Context) {
	var req dto.PaginationRequest
	if !bindQuery(c, &req) {
		return
	}

	list, total, err := h.memberSvc.List(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// GetMember 成员详情
// GET /api/v1/members/:id
func (h *MemberHandler) GetMember(c *gin.Context) {
	id := c.Param("id")
	if !canAccessMember(c, id) {
		return
	}

	member, err := h.memberSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, member)
}

// CreateMember 创建成员（同时创建志愿者档案）
// POST /api/v1/members
func (h *MemberHandler) CreateMember(c *gin.Context) {
	var req dto.CreateMemberRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	member, err := h.memberSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, member)
}

// UpdateMember 更新成员
// PUT /api/v1/members/:id
func (h *MemberHandler) UpdateMember(c *gin.Context) {
	id := c.Param("id")

	var req dto.UpdateMemberRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	member, err := h.memberSvc.Update(c.Request.Context(), id, &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, member)
}

// DeleteMember 删除成员
// DELETE /api/v1/members/:id
func (h *MemberHandler) DeleteMember(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.memberSvc.Delete(c.Request.Context(), c.Param("id"), callerID); err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, nil)
}

// ── 标签 ──

// ListTags 标签列表
// GET /api/v1/tags
func (h *MemberHandler) ListTags(c *gin.Context) {
	tags, err := h.memberSvc.ListTags(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": tags})
}

// CreateTag 创建标签
// POST /api/v1/tags
func (h *MemberHandler) CreateTag(c *gin.Context) {
	var req dto.CreateTagRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	tag, err := h.memberSvc.CreateTag(c.Request.Context(), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, tag)
}

// ── 志愿者档案 ──

// GetWorker 志愿者档案
// GET /api/v1/members/:id/worker
func (h *MemberHandler) GetWorker(c *gin.Context) {
	id := c.Param("id")
	if !canAccessMember(c, id) {
		return
	}

	worker, err := h.memberSvc.GetWorker(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, worker)
}

// UpdateWorker 更新志愿者设置（本人或 staff）
// PUT /api/v1/members/:id/worker
func (h *MemberHandler) UpdateWorker(c *gin.Context) {
	id := c.Param("id")
	if !canAccessMember(c, id) {
		return
	}

	var req dto.UpdateWorkerRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, _ := MustGetUserID(c)
	worker, err := h.memberSvc.UpdateWorker(c.Request.Context(), id, &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, worker)
}

// GetTimeAccount 工时余额与流水
// GET /api/v1/members/:id/time-account
func (h *MemberHandler) GetTimeAccount(c *gin.Context) {
	id := c.Param("id")
	if !canAccessMember(c, id) {
		return
	}

	account, err := h.timeAccountSvc.GetByMember(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, account)
}

// ════════════════════════════════════════════════════════
// 会员资格
// ════════════════════════════════════════════════════════

// ListMemberships 成员的会员资格
// GET /api/v1/members/:id/memberships
func (h *MemberHandler) ListMemberships(c *gin.Context) {
	id := c.Param("id")
	if !canAccessMember(c, id) {
		return
	}

	list, err := h.membershipSvc.ListByMember(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// CreateMembership 新增会员资格（以工换会籍会扣减工时）
// POST /api/v1/memberships
func (h *MemberHandler) CreateMembership(c *gin.Context) {
	var req dto.MembershipRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	ms, err := h.membershipSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, ms)
}

// UpdateMembership 更新会员资格
// PUT /api/v1/memberships/:id
func (h *MemberHandler) UpdateMembership(c *gin.Context) {
	var req dto.MembershipRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	ms, err := h.membershipSvc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, ms)
}

// DeleteMembership 删除会员资格
// DELETE /api/v1/memberships/:id
func (h *MemberHandler) DeleteMembership(c *gin.Context) {
	if err := h.membershipSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, nil)
}

// ════════════════════════════════════════════════════════
// 到访
// ════════════════════════════════════════════════════════

// RecordVisit 登记到访事件
// POST /api/v1/visits
func (h *MemberHandler) RecordVisit(c *gin.Context) {
	var req dto.VisitRequest
	if !bindJSON(c, &req) {
		return
	}

	visit, err := h.visitSvc.Record(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, visit)
}

// ListVisits 到访记录（分页）
// GET /api/v1/visits
func (h *MemberHandler) ListVisits(c *gin.Context) {
	var req dto.VisitListRequest
	if !bindQuery(c, &req) {
		return
	}

	list, total, err := h.visitSvc.List(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// ════════════════════════════════════════════════════════
// 站内通知
// ════════════════════════════════════════════════════════

// ListNotifications 本人通知（分页）
// GET /api/v1/notifications
func (h *MemberHandler) ListNotifications(c *gin.Context) {
	var req dto.NotificationListRequest
	if !bindQuery(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, total, err := h.notificationSvc.List(c.Request.Context(), callerID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// MarkNotificationRead 标记单条已读
// PUT /api/v1/notifications/:id/read
func (h *MemberHandler) MarkNotificationRead(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.notificationSvc.MarkRead(c.Request.Context(), c.Param("id"), callerID); err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, nil)
}

// MarkAllNotificationsRead 全部标记已读
// PUT /api/v1/notifications/read-all
func (h *MemberHandler) MarkAllNotificationsRead(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.notificationSvc.MarkAllRead(c.Request.Context(), callerID); err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, nil)
}
