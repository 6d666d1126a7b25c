package dto

// ── 认证模块响应 ──

// TokenResponse Token 对响应
type TokenResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	ExpiresIn    int            `json:"expires_in"` // Access Token 有效期（秒）
	Member       MemberResponse `json:"member"`
}

// ── 成员模块响应 ──

// MemberResponse 成员信息响应（脱敏）
type MemberResponse struct {
	ID              string        `json:"id"`
	Username        string        `json:"username"`
	FirstName       string        `json:"first_name"`
	LastName        string        `json:"last_name"`
	FriendlyName    string        `json:"friendly_name"`
	Email           string        `json:"email"`
	Role            string        `json:"role"`
	FamilyAnchorID  *string       `json:"family_anchor_id,omitempty"`
	Tags            []TagResponse `json:"tags"`
	IsCurrentlyPaid *bool         `json:"is_currently_paid,omitempty"`
}

// TagResponse 标签简要信息
type TagResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TimeAccountResponse 工时账户
type TimeAccountResponse struct {
	WorkerID string             `json:"worker_id"`
	MemberID string             `json:"member_id"`
	Balance  string             `json:"balance"` // 小时，两位小数
	Entries  []TimeAccountEntry `json:"entries"`
}

// TimeAccountEntry 工时账户流水
type TimeAccountEntry struct {
	ID          string `json:"id"`
	When        string `json:"when"`
	Change      string `json:"change"`
	Explanation string `json:"explanation"`
}

// GenerateTasksResponse 任务生成结果
type GenerateTasksResponse struct {
	TemplateID string   `json:"template_id,omitempty"`
	Created    int      `json:"created"`
	Dates      []string `json:"dates"`
}

// NowPlayingInfo 正在播放信息
type NowPlayingInfo struct {
	Show  *NowPlayingShow  `json:"show"`
	Track *NowPlayingTrack `json:"track"`
}

// NowPlayingShow 当前节目
type NowPlayingShow struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Hosts            []string `json:"hosts"`
	StartTime        string   `json:"start_time"`
	DurationMinutes  int      `json:"duration_minutes"`
	ProductionMethod string   `json:"production_method"`
}

// NowPlayingTrack 当前曲目
type NowPlayingTrack struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Start    string `json:"start"`
	Duration int    `json:"duration"` // 秒
}

// ── 分页请求 ──

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页数量（含默认值）
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 20
	}
	return p.PageSize
}

// GetOffset 计算偏移量
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}
