package dto

// ── 志愿任务模块 DTO ──

// TaskFieldsRequest 模板与任务共享字段
type TaskFieldsRequest struct {
	OwnerID             *string  `json:"owner_id"               binding:"omitempty,uuid"`
	Instructions        string   `json:"instructions"           binding:"omitempty,max=2048"`
	ShortDesc           string   `json:"short_desc"             binding:"required,max=40"`
	ReviewerID          *string  `json:"reviewer_id"            binding:"omitempty,uuid"`
	WorkEstimate        string   `json:"work_estimate"          binding:"omitempty,numeric"`
	Priority            string   `json:"priority"               binding:"omitempty,oneof=low med high"`
	ShouldNag           bool     `json:"should_nag"`
	StartTime           *string  `json:"start_time"             binding:"omitempty"`
	DurationMinutes     *int     `json:"duration_minutes"       binding:"omitempty,min=0"`
	EligibleClaimantIDs []string `json:"eligible_claimant_ids"  binding:"omitempty,dive,uuid"`
	EligibleTagIDs      []string `json:"eligible_tag_ids"       binding:"omitempty,dive,uuid"`
}

// TemplateRequest 创建/更新周期任务模板
type TemplateRequest struct {
	TaskFieldsRequest
	StartDate        string `json:"start_date"         binding:"required,datetime=2006-01-02"`
	Suspended        bool   `json:"suspended"`
	First            bool   `json:"first"`
	Second           bool   `json:"second"`
	Third            bool   `json:"third"`
	Fourth           bool   `json:"fourth"`
	Last             bool   `json:"last"`
	Every            bool   `json:"every"`
	Monday           bool   `json:"monday"`
	Tuesday          bool   `json:"tuesday"`
	Wednesday        bool   `json:"wednesday"`
	Thursday         bool   `json:"thursday"`
	Friday           bool   `json:"friday"`
	Saturday         bool   `json:"saturday"`
	Sunday           bool   `json:"sunday"`
	RepeatInterval   *int   `json:"repeat_interval"    binding:"omitempty"`
	MissedDateAction string `json:"missed_date_action" binding:"omitempty,oneof=leave slide"`
}

// GenerateTasksRequest 手动触发生成
type GenerateTasksRequest struct {
	HorizonDays int `json:"horizon_days" binding:"omitempty,min=1,max=366"`
}

// TaskRequest 创建一次性任务
type TaskRequest struct {
	TaskFieldsRequest
	ScheduledDate *string `json:"scheduled_date" binding:"omitempty,datetime=2006-01-02"`
	Deadline      *string `json:"deadline"       binding:"omitempty,datetime=2006-01-02"`
}

// UpdateTaskRequest 更新任务（带版本号）
type UpdateTaskRequest struct {
	Version       int     `json:"version"        binding:"required,min=1"`
	Status        *string `json:"status"         binding:"omitempty,oneof=active done canceled reviewable"`
	WorkDone      *bool   `json:"work_done"`
	WorkAccepted  *bool   `json:"work_accepted"`
	ScheduledDate *string `json:"scheduled_date" binding:"omitempty,datetime=2006-01-02"`
	Deadline      *string `json:"deadline"       binding:"omitempty,datetime=2006-01-02"`
	Instructions  *string `json:"instructions"   binding:"omitempty,max=2048"`
	Priority      *string `json:"priority"       binding:"omitempty,oneof=low med high"`
	ShouldNag     *bool   `json:"should_nag"`
}

// TaskListRequest 任务列表查询
type TaskListRequest struct {
	PaginationRequest
	Status     string `form:"status"      binding:"omitempty,oneof=active done canceled reviewable"`
	TemplateID string `form:"template_id" binding:"omitempty,uuid"`
	From       string `form:"from"        binding:"omitempty,datetime=2006-01-02"`
	To         string `form:"to"          binding:"omitempty,datetime=2006-01-02"`
}

// TaskNoteRequest 添加任务备注
type TaskNoteRequest struct {
	Content string `json:"content" binding:"required,max=2048"`
}

// ClaimRequest 认领任务
type ClaimRequest struct {
	TaskID                 string  `json:"task_id"                  binding:"required,uuid"`
	MemberID               string  `json:"member_id"                binding:"omitempty,uuid"` // 缺省为当前成员
	ClaimedStartTime       *string `json:"claimed_start_time"`
	ClaimedDurationMinutes int     `json:"claimed_duration_minutes" binding:"omitempty,min=0"`
	Status                 string  `json:"status"                   binding:"omitempty,oneof=current queued"`
}

// UpdateClaimRequest 更新认领状态
type UpdateClaimRequest struct {
	Status       string  `json:"status"        binding:"required,oneof=current expired queued abandoned working done uninterested"`
	DateVerified *string `json:"date_verified" binding:"omitempty,datetime=2006-01-02"`
}

// WorkRequest 登记工作记录
type WorkRequest struct {
	ClaimID         string  `json:"claim_id"         binding:"required,uuid"`
	WitnessID       *string `json:"witness_id"       binding:"omitempty,uuid"`
	WorkDate        string  `json:"work_date"        binding:"required,datetime=2006-01-02"`
	WorkStartTime   *string `json:"work_start_time"`
	DurationMinutes int     `json:"duration_minutes" binding:"required,min=1"`
}

// UpdateWorkRequest 更新工作记录（例如补充见证人）
type UpdateWorkRequest struct {
	WitnessID       *string `json:"witness_id"       binding:"omitempty,uuid"`
	DurationMinutes *int    `json:"duration_minutes" binding:"omitempty,min=1"`
}
