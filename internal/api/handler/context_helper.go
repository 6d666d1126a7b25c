package handler

import (
	"github.com/gin-gonic/gin"

	"bzwops/internal/model"
	"bzwops/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id（即成员 ID）。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	return mustGetString(c, "user_id")
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (string, bool) {
	return mustGetString(c, "role")
}

func mustGetString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		response.Unauthorized(c, codeUnauthorized, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, codeUnauthorized, "未认证")
		return "", false
	}
	return s, true
}

// canAccessMember 普通成员只能访问自己的数据，staff 与 admin 不受限。
// 无权限时写入 403 并返回 false。
func canAccessMember(c *gin.Context, memberID string) bool {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return false
	}
	role, ok := MustGetRole(c)
	if !ok {
		return false
	}
	if role == model.RoleAdmin || role == model.RoleStaff || callerID == memberID {
		return true
	}
	response.Forbidden(c, codeForbidden, "无权限访问")
	return false
}
