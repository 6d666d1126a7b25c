package dto

// ── KMKR 电台模块 DTO ──

// PersonalityRequest 创建主持人
type PersonalityRequest struct {
	MemberID string `json:"member_id" binding:"required,uuid"`
	Moniker  string `json:"moniker"   binding:"required,max=40"`
	Bio      string `json:"bio"       binding:"omitempty,max=2048"`
}

// ShowRequest 创建/更新节目
type ShowRequest struct {
	Title           string   `json:"title"            binding:"required,max=80"`
	Description     string   `json:"description"      binding:"required,max=2048"`
	DurationMinutes int      `json:"duration_minutes" binding:"required,min=1"`
	Active          *bool    `json:"active"`
	HostIDs         []string `json:"host_ids"         binding:"omitempty,dive,uuid"`
}

// ShowTimeRequest 创建节目时段
type ShowTimeRequest struct {
	StartTime        string `json:"start_time"        binding:"required"`
	First            bool   `json:"first"`
	Second           bool   `json:"second"`
	Third            bool   `json:"third"`
	Fourth           bool   `json:"fourth"`
	Every            *bool  `json:"every"`
	Sundays          bool   `json:"sundays"`
	Mondays          bool   `json:"mondays"`
	Tuesdays         bool   `json:"tuesdays"`
	Wednesdays       bool   `json:"wednesdays"`
	Thursdays        bool   `json:"thursdays"`
	Fridays          bool   `json:"fridays"`
	Saturdays        bool   `json:"saturdays"`
	ProductionMethod string `json:"production_method" binding:"required,oneof=LIV PRE"`
}

// TrackRequest 新增曲库条目
type TrackRequest struct {
	Title           string `json:"title"            binding:"required,max=255"`
	Artist          string `json:"artist"           binding:"required,max=255"`
	DurationSeconds int    `json:"duration_seconds" binding:"min=0"`
	RadioDJID       int    `json:"radiodj_id"       binding:"required"`
	TrackType       int    `json:"track_type"       binding:"min=0,max=12"`
}

// EpisodeRequest 新增单集
type EpisodeRequest struct {
	ShowID         *string `json:"show_id"         binding:"omitempty,uuid"`
	FirstBroadcast *string `json:"first_broadcast" binding:"omitempty,datetime=2006-01-02"`
	Title          string  `json:"title"           binding:"omitempty,max=255"`
}

// EpisodeTrackRequest 新增单集曲目
type EpisodeTrackRequest struct {
	Sequence int    `json:"sequence" binding:"min=0"`
	Artist   string `json:"artist"   binding:"omitempty,max=255"`
	Title    string `json:"title"    binding:"omitempty,max=255"`
	Duration string `json:"duration" binding:"omitempty,max=5"`
}

// BroadcastRequest 登记单集播出
type BroadcastRequest struct {
	Date          string  `json:"date"            binding:"required,datetime=2006-01-02"`
	HostCheckedIn *string `json:"host_checked_in"`
	Type          string  `json:"type"            binding:"required,oneof=1ST RPT"`
}

// PlayLogRequest 登记播出日志
type PlayLogRequest struct {
	Start             string  `json:"start"                binding:"required"` // RFC3339
	TrackID           *string `json:"track_id"             binding:"omitempty,uuid"`
	NonLibraryTrackID *string `json:"non_library_track_id" binding:"omitempty,uuid"`
}

// PlayLogListRequest 播出日志查询
type PlayLogListRequest struct {
	From string `form:"from" binding:"required"`
	To   string `form:"to"   binding:"required"`
}

// RatingRequest 听众评分
type RatingRequest struct {
	Rating int `json:"rating" binding:"min=-2,max=2"`
}

// AgreementRequest 创建/更新赞助协议
type AgreementRequest struct {
	Sponsor       string `json:"sponsor"        binding:"required,max=100"`
	QtySold       int    `json:"qty_sold"       binding:"min=0"`
	SalePrice     string `json:"sale_price"     binding:"omitempty,numeric"`
	StartDate     string `json:"start_date"     binding:"required,datetime=2006-01-02"`
	EndDate       string `json:"end_date"       binding:"required,datetime=2006-01-02"`
	SpotsIncluded int    `json:"spots_included" binding:"min=0"`
	SpotSeconds   int    `json:"spot_seconds"   binding:"min=0"`
	TrackID       *int   `json:"track_id"`
	Script        string `json:"script"         binding:"required,max=2048"`
}

// UnderwritingScheduleRequest 新增赞助播出时刻
type UnderwritingScheduleRequest struct {
	Time     string `json:"time"     binding:"required"`
	Weekdays bool   `json:"weekdays"`
	Weekend  bool   `json:"weekend"`
}
