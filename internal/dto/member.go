package dto

// ── 成员模块 DTO ──

// CreateMemberRequest 创建成员请求
type CreateMemberRequest struct {
	Username       string   `json:"username"         binding:"required,min=2,max=40"`
	FirstName      string   `json:"first_name"       binding:"omitempty,max=40"`
	LastName       string   `json:"last_name"        binding:"omitempty,max=40"`
	Email          string   `json:"email"            binding:"omitempty,email"`
	Password       string   `json:"password"         binding:"omitempty,min=8,max=64"`
	Role           string   `json:"role"             binding:"omitempty,oneof=admin staff member"`
	FamilyAnchorID *string  `json:"family_anchor_id" binding:"omitempty,uuid"`
	TagIDs         []string `json:"tag_ids"          binding:"omitempty,dive,uuid"`
}

// UpdateMemberRequest 更新成员请求
type UpdateMemberRequest struct {
	FirstName      *string  `json:"first_name"       binding:"omitempty,max=40"`
	LastName       *string  `json:"last_name"        binding:"omitempty,max=40"`
	Email          *string  `json:"email"            binding:"omitempty,email"`
	Role           *string  `json:"role"             binding:"omitempty,oneof=admin staff member"`
	FamilyAnchorID *string  `json:"family_anchor_id" binding:"omitempty,uuid"`
	TagIDs         []string `json:"tag_ids"          binding:"omitempty,dive,uuid"`
}

// CreateTagRequest 创建标签请求
type CreateTagRequest struct {
	Name    string `json:"name"    binding:"required,max=40"`
	Meaning string `json:"meaning" binding:"omitempty,max=500"`
}

// UpdateWorkerRequest 更新志愿者设置
type UpdateWorkerRequest struct {
	ShouldIncludeAlarms *bool `json:"should_include_alarms"`
	ShouldNag           *bool `json:"should_nag"`
}

// MembershipRequest 创建/更新会员资格请求
type MembershipRequest struct {
	MemberID       string `json:"member_id"       binding:"required,uuid"`
	MembershipType string `json:"membership_type" binding:"required,oneof=regular family work_trade complimentary group"`
	StartDate      string `json:"start_date"      binding:"required,datetime=2006-01-02"`
	EndDate        string `json:"end_date"        binding:"required,datetime=2006-01-02"`
	SalePrice      string `json:"sale_price"      binding:"omitempty,numeric"`
}

// VisitRequest 登记到访请求
type VisitRequest struct {
	MemberID  string `json:"member_id"  binding:"required,uuid"`
	EventType string `json:"event_type" binding:"required,oneof=arrival present departure"`
	Method    string `json:"method"     binding:"omitempty,oneof=rfid frontdesk mobile unknown"`
	When      string `json:"when"       binding:"omitempty"` // RFC3339，缺省为当前时间
}

// VisitListRequest 到访列表查询
type VisitListRequest struct {
	PaginationRequest
	MemberID string `form:"member_id" binding:"omitempty,uuid"`
}

// NotificationListRequest 通知列表查询
type NotificationListRequest struct {
	PaginationRequest
	UnreadOnly bool `form:"unread_only"`
}
