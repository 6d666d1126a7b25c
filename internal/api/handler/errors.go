package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"bzwops/internal/service"
	pkgerrors "bzwops/pkg/errors"
	"bzwops/pkg/response"
)

// 业务错误码：1xxxx 通用 / 11 认证 / 12 成员 / 13 任务 / 14 电台 / 16 导出
const (
	codeBadRequest   = 10001
	codeUnauthorized = 10002
	codeForbidden    = 10003
	codeBodyTooLarge = 10005
	codeConflict     = 10009
)

// errorMapping 业务错误到 HTTP 响应的映射
type errorMapping struct {
	err    error
	status int
	code   int
}

// serviceErrors 所有模块的已知业务错误
var serviceErrors = []errorMapping{
	// 认证
	{service.ErrInvalidCredentials, http.StatusUnauthorized, 11001},
	{service.ErrInvalidRefreshToken, http.StatusUnauthorized, 11002},
	{service.ErrWrongPassword, http.StatusBadRequest, 11003},

	// 成员
	{service.ErrMemberNotFound, http.StatusNotFound, 12001},
	{service.ErrUsernameTaken, http.StatusConflict, 12002},
	{service.ErrTagNotFound, http.StatusNotFound, 12003},
	{service.ErrWorkerNotFound, http.StatusNotFound, 12004},
	{service.ErrFamilyAnchorChained, http.StatusBadRequest, 12005},
	{service.ErrMembershipNotFound, http.StatusNotFound, 12101},
	{service.ErrNotificationMissing, http.StatusNotFound, 12201},

	// 任务
	{service.ErrTemplateNotFound, http.StatusNotFound, 13001},
	{service.ErrTaskNotFound, http.StatusNotFound, 13101},
	{service.ErrTaskClosed, http.StatusConflict, 13102},
	{service.ErrClaimNotFound, http.StatusNotFound, 13201},
	{service.ErrNotEligible, http.StatusForbidden, 13202},
	{service.ErrReclaimAfterAbandon, http.StatusConflict, 13203},
	{service.ErrWorkNotFound, http.StatusNotFound, 13301},
	{service.ErrNagNotFound, http.StatusNotFound, 13401},
	{service.ErrNagTaskMismatch, http.StatusForbidden, 13402},

	// 电台
	{service.ErrShowNotFound, http.StatusNotFound, 14001},
	{service.ErrTrackNotFound, http.StatusNotFound, 14101},
	{service.ErrEpisodeTrackNotFound, http.StatusNotFound, 14102},
	{service.ErrPlayLogNotFound, http.StatusNotFound, 14103},
	{service.ErrAgreementNotFound, http.StatusNotFound, 14201},
}

// handleServiceError 把 Service 层错误写成统一响应
func handleServiceError(c *gin.Context, err error) {
	if ve, ok := pkgerrors.AsValidation(err); ok {
		response.ErrorWithDetails(c, http.StatusBadRequest, codeBadRequest, ve.Message, ve.Field)
		return
	}
	if errors.Is(err, pkgerrors.ErrOptimisticLock) {
		response.Conflict(c, codeConflict, pkgerrors.ErrOptimisticLock.Error())
		return
	}
	// 唯一约束冲突（并发下绕过了 Service 层的预检查）
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		response.Conflict(c, codeConflict, "记录已存在")
		return
	}
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			response.Error(c, m.status, m.code, m.err.Error())
			return
		}
	}
	_ = c.Error(err)
	response.InternalError(c)
}

// bindJSON 绑定请求体，失败时写入 400
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, codeBodyTooLarge, "请求体过大")
			return false
		}
		response.ErrorWithDetails(c, http.StatusBadRequest, codeBadRequest, "参数校验失败", err.Error())
		return false
	}
	return true
}

// bindQuery 绑定查询参数，失败时写入 400
func bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, codeBadRequest, "参数校验失败", err.Error())
		return false
	}
	return true
}
