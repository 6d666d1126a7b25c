package model

import (
	"time"

	"github.com/shopspring/decimal"

	"bzwops/internal/recurrence"
	pkgerrors "bzwops/pkg/errors"
)

// 优先级
const (
	PriorityLow  = "low"
	PriorityMed  = "med"
	PriorityHigh = "high"
)

// 任务状态
const (
	TaskActive     = "active"
	TaskDone       = "done"
	TaskCanceled   = "canceled"
	TaskReviewable = "reviewable"
)

// 错过日期后的处理方式（仅间隔模板）
const (
	MissedLeave = "leave"
	MissedSlide = "slide"
)

// TaskFields 模板与任务共享的字段
type TaskFields struct {
	OwnerID         *string         `gorm:"type:uuid"                                json:"owner_id,omitempty"`
	Instructions    string          `gorm:"type:text"                                json:"instructions"`
	ShortDesc       string          `gorm:"type:varchar(40);not null"                json:"short_desc"`
	ReviewerID      *string         `gorm:"type:uuid"                                json:"reviewer_id,omitempty"`
	WorkEstimate    decimal.Decimal `gorm:"type:numeric(6,2);not null;default:0"     json:"work_estimate"` // 小时
	Priority        string          `gorm:"type:varchar(4);not null;default:'med'"   json:"priority"`
	ShouldNag       bool            `gorm:"not null;default:false"                   json:"should_nag"`
	StartTime       *string         `gorm:"type:time"                                json:"start_time,omitempty"`
	DurationMinutes *int            `gorm:""                                         json:"duration_minutes,omitempty"`
}

// StartClock 返回开始时刻的当日偏移
func (f *TaskFields) StartClock() (time.Duration, bool) {
	if f.StartTime == nil {
		return 0, false
	}
	c, err := recurrence.ParseClock(*f.StartTime)
	if err != nil {
		return 0, false
	}
	return c, true
}

// Duration 返回时长
func (f *TaskFields) Duration() time.Duration {
	if f.DurationMinutes == nil {
		return 0
	}
	return time.Duration(*f.DurationMinutes) * time.Minute
}

func (f *TaskFields) validate() error {
	if f.ShortDesc == "" {
		return pkgerrors.Invalid("short_desc", "简要描述不能为空")
	}
	if f.WorkEstimate.IsNegative() {
		return pkgerrors.Invalid("work_estimate", "工作量估计不能为负")
	}
	switch f.Priority {
	case PriorityLow, PriorityMed, PriorityHigh:
	default:
		return pkgerrors.Invalid("priority", "未知的优先级")
	}
	if f.StartTime != nil {
		if _, err := recurrence.ParseClock(*f.StartTime); err != nil {
			return pkgerrors.Invalid("start_time", "开始时间格式错误")
		}
	}
	if f.DurationMinutes != nil && *f.DurationMinutes < 0 {
		return pkgerrors.Invalid("duration_minutes", "时长不能为负")
	}
	return nil
}

// RecurringTaskTemplate 周期任务模板 — 对应 recurring_task_templates
type RecurringTaskTemplate struct {
	TemplateID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"template_id"`
	StartDate  time.Time `gorm:"type:date;not null"                             json:"start_date"`
	Suspended  bool      `gorm:"not null;default:false"                         json:"suspended"`
	TaskFields

	// 月内序数 × 星期
	First     bool `gorm:"not null;default:false" json:"first"`
	Second    bool `gorm:"not null;default:false" json:"second"`
	Third     bool `gorm:"not null;default:false" json:"third"`
	Fourth    bool `gorm:"not null;default:false" json:"fourth"`
	Last      bool `gorm:"not null;default:false" json:"last"`
	Every     bool `gorm:"not null;default:false" json:"every"`
	Monday    bool `gorm:"not null;default:false" json:"monday"`
	Tuesday   bool `gorm:"not null;default:false" json:"tuesday"`
	Wednesday bool `gorm:"not null;default:false" json:"wednesday"`
	Thursday  bool `gorm:"not null;default:false" json:"thursday"`
	Friday    bool `gorm:"not null;default:false" json:"friday"`
	Saturday  bool `gorm:"not null;default:false" json:"saturday"`
	Sunday    bool `gorm:"not null;default:false" json:"sunday"`

	// 固定间隔
	RepeatInterval   *int   `gorm:""                                         json:"repeat_interval,omitempty"`
	MissedDateAction string `gorm:"type:varchar(5);not null;default:'leave'" json:"missed_date_action"`

	SoftDeleteModel

	// 关联
	EligibleClaimants []Member `gorm:"many2many:template_eligible_claimants;foreignKey:TemplateID;joinForeignKey:TemplateID;references:MemberID;joinReferences:MemberID" json:"eligible_claimants,omitempty"`
	EligibleTags      []Tag    `gorm:"many2many:template_eligible_tags;foreignKey:TemplateID;joinForeignKey:TemplateID;references:TagID;joinReferences:TagID"           json:"eligible_tags,omitempty"`
}

// TableName 指定表名
func (RecurringTaskTemplate) TableName() string { return "recurring_task_templates" }

// Pattern 转换为星期 × 序数规则
func (t *RecurringTaskTemplate) Pattern() recurrence.Pattern {
	p := recurrence.Pattern{
		Every: t.Every, First: t.First, Second: t.Second,
		Third: t.Third, Fourth: t.Fourth, Last: t.Last,
	}
	p.Days[time.Monday] = t.Monday
	p.Days[time.Tuesday] = t.Tuesday
	p.Days[time.Wednesday] = t.Wednesday
	p.Days[time.Thursday] = t.Thursday
	p.Days[time.Friday] = t.Friday
	p.Days[time.Saturday] = t.Saturday
	p.Days[time.Sunday] = t.Sunday
	return p
}

// UsesInterval 是否为固定间隔模板
func (t *RecurringTaskTemplate) UsesInterval() bool {
	return t.RepeatInterval != nil
}

// Matches 判断某日是否应生成任务
func (t *RecurringTaskTemplate) Matches(d time.Time) bool {
	if t.UsesInterval() {
		return recurrence.MatchesInterval(t.StartDate, *t.RepeatInterval, d)
	}
	return t.Pattern().Matches(d)
}

// Validate 记录级校验
func (t *RecurringTaskTemplate) Validate() error {
	if err := t.TaskFields.validate(); err != nil {
		return err
	}
	p := t.Pattern()
	if t.Fourth && t.Last {
		return pkgerrors.Invalid("last", "不能同时选择第四个与最后一个")
	}
	if t.Every && p.AnyOrdinal() {
		return pkgerrors.Invalid("every", "选择每周时不能再选择月内序数")
	}
	usesDays := p.AnyDay() || t.Every || p.AnyOrdinal()
	if t.UsesInterval() {
		if usesDays {
			return pkgerrors.Invalid("repeat_interval", "星期规则与固定间隔只能二选一")
		}
		if *t.RepeatInterval <= 0 {
			return pkgerrors.Invalid("repeat_interval", "间隔天数必须大于 0")
		}
	} else if t.MissedDateAction == MissedSlide {
		return pkgerrors.Invalid("missed_date_action", "顺延仅适用于固定间隔模板")
	}
	switch t.MissedDateAction {
	case "", MissedLeave, MissedSlide:
	default:
		return pkgerrors.Invalid("missed_date_action", "未知的错过处理方式")
	}
	if len(t.EligibleClaimants) == 0 && len(t.EligibleTags) == 0 {
		return pkgerrors.Invalid("eligible_claimants", "至少需要一个可认领成员或标签")
	}
	return nil
}

// Task 任务表 — 对应 tasks
type Task struct {
	TaskID        string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"task_id"`
	ScheduledDate *time.Time `gorm:"type:date;index"                                json:"scheduled_date,omitempty"`
	Deadline      *time.Time `gorm:"type:date"                                      json:"deadline,omitempty"`
	Status        string     `gorm:"type:varchar(10);not null;default:'active'"     json:"status"`
	WorkDone      bool       `gorm:"not null;default:false"                         json:"work_done"`
	WorkAccepted  *bool      `gorm:""                                               json:"work_accepted,omitempty"`
	TemplateID    *string    `gorm:"type:uuid;index"                                json:"template_id,omitempty"`
	TaskFields
	VersionedModel

	// 关联
	Template          *RecurringTaskTemplate `gorm:"foreignKey:TemplateID;references:TemplateID" json:"template,omitempty"`
	EligibleClaimants []Member               `gorm:"many2many:task_eligible_claimants;foreignKey:TaskID;joinForeignKey:TaskID;references:MemberID;joinReferences:MemberID" json:"eligible_claimants,omitempty"`
	EligibleTags      []Tag                  `gorm:"many2many:task_eligible_tags;foreignKey:TaskID;joinForeignKey:TaskID;references:TagID;joinReferences:TagID"           json:"eligible_tags,omitempty"`
	Claims            []Claim                `gorm:"foreignKey:TaskID;references:TaskID" json:"claims,omitempty"`
}

// TableName 指定表名
func (Task) TableName() string { return "tasks" }

// IsClosed 已完成；存在审核人时还需审核通过
func (t *Task) IsClosed() bool {
	if t.ReviewerID == nil {
		return t.WorkDone
	}
	return t.WorkDone && t.WorkAccepted != nil && *t.WorkAccepted
}

// IsOpen 尚未完成，或仍待审核人确认
func (t *Task) IsOpen() bool {
	return !t.IsClosed()
}

// IsEligible 判断成员是否可认领此任务（直接指定或标签匹配）
func (t *Task) IsEligible(m *Member) bool {
	for _, c := range t.EligibleClaimants {
		if c.MemberID == m.MemberID {
			return true
		}
	}
	for _, tag := range t.EligibleTags {
		if m.HasTag(tag.TagID) {
			return true
		}
	}
	return false
}

// Validate 记录级校验
func (t *Task) Validate() error {
	if err := t.TaskFields.validate(); err != nil {
		return err
	}
	if t.WorkAccepted != nil && *t.WorkAccepted && !t.WorkDone {
		return pkgerrors.Invalid("work_accepted", "工作未完成时不能审核通过")
	}
	if t.TemplateID != nil && t.ScheduledDate == nil {
		return pkgerrors.Invalid("scheduled_date", "由模板生成的任务必须有计划日期")
	}
	switch t.Status {
	case TaskActive, TaskDone, TaskCanceled, TaskReviewable:
	default:
		return pkgerrors.Invalid("status", "未知的任务状态")
	}
	return nil
}

// TaskNote 任务备注 — 对应 task_notes
type TaskNote struct {
	TaskNoteID string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"task_note_id"`
	TaskID     string  `gorm:"type:uuid;not null;index"                       json:"task_id"`
	AuthorID   *string `gorm:"type:uuid"                                      json:"author_id,omitempty"`
	Content    string  `gorm:"type:text;not null"                             json:"content"`
	BaseModel
}

// TableName 指定表名
func (TaskNote) TableName() string { return "task_notes" }

// 认领状态
const (
	ClaimCurrent      = "current"
	ClaimExpired      = "expired"
	ClaimQueued       = "queued"
	ClaimAbandoned    = "abandoned"
	ClaimWorking      = "working"
	ClaimDone         = "done"
	ClaimUninterested = "uninterested"
)

// Claim 任务认领 — 对应 claims
type Claim struct {
	ClaimID                string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"claim_id"`
	TaskID                 string     `gorm:"type:uuid;not null;index"                       json:"task_id"`
	MemberID               string     `gorm:"type:uuid;not null;index"                       json:"member_id"`
	ClaimedStartTime       *string    `gorm:"type:time"                                      json:"claimed_start_time,omitempty"`
	ClaimedDurationMinutes int        `gorm:"not null;default:0"                             json:"claimed_duration_minutes"`
	Status                 string     `gorm:"type:varchar(12);not null"                      json:"status"`
	DateVerified           *time.Time `gorm:"type:date"                                      json:"date_verified,omitempty"`
	BaseModel

	// 关联
	Task   *Task   `gorm:"foreignKey:TaskID;references:TaskID"     json:"task,omitempty"`
	Member *Member `gorm:"foreignKey:MemberID;references:MemberID" json:"member,omitempty"`
}

// TableName 指定表名
func (Claim) TableName() string { return "claims" }

// Validate 记录级校验
func (c *Claim) Validate() error {
	switch c.Status {
	case ClaimCurrent, ClaimExpired, ClaimQueued, ClaimAbandoned, ClaimWorking, ClaimDone, ClaimUninterested:
	default:
		return pkgerrors.Invalid("status", "未知的认领状态")
	}
	if c.ClaimedDurationMinutes < 0 {
		return pkgerrors.Invalid("claimed_duration_minutes", "认领时长不能为负")
	}
	if c.ClaimedStartTime != nil {
		if _, err := recurrence.ParseClock(*c.ClaimedStartTime); err != nil {
			return pkgerrors.Invalid("claimed_start_time", "开始时间格式错误")
		}
	}
	return nil
}

// Work 工作记录 — 对应 works
type Work struct {
	WorkID          string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"work_id"`
	ClaimID         string    `gorm:"type:uuid;not null;index"                       json:"claim_id"`
	WitnessID       *string   `gorm:"type:uuid"                                      json:"witness_id,omitempty"`
	WorkDate        time.Time `gorm:"type:date;not null"                             json:"work_date"`
	WorkStartTime   *string   `gorm:"type:time"                                      json:"work_start_time,omitempty"`
	DurationMinutes int       `gorm:"not null;default:0"                             json:"duration_minutes"`
	BaseModel

	// 关联
	Claim *Claim `gorm:"foreignKey:ClaimID;references:ClaimID" json:"claim,omitempty"`
}

// TableName 指定表名
func (Work) TableName() string { return "works" }

// Validate 记录级校验
func (w *Work) Validate() error {
	if w.DurationMinutes < 0 {
		return pkgerrors.Invalid("duration_minutes", "工作时长不能为负")
	}
	if w.WorkStartTime != nil {
		if _, err := recurrence.ParseClock(*w.WorkStartTime); err != nil {
			return pkgerrors.Invalid("work_start_time", "开始时间格式错误")
		}
	}
	return nil
}

// Hours 工作时长（小时）
func (w *Work) Hours() decimal.Decimal {
	return decimal.NewFromInt(int64(w.DurationMinutes)).Div(decimal.NewFromInt(60)).Round(2)
}

// Nag 维护提醒 — 对应 nags
type Nag struct {
	NagID        string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"nag_id"`
	MemberID     string     `gorm:"type:uuid;not null;index"                       json:"member_id"`
	AuthTokenMD5 string     `gorm:"column:auth_token_md5;type:char(32);not null;uniqueIndex" json:"-"`
	ActedAt      *time.Time `gorm:""                                               json:"acted_at,omitempty"`
	CreatedAt    time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`

	// 关联
	Tasks []Task `gorm:"many2many:nag_tasks;foreignKey:NagID;joinForeignKey:NagID;references:TaskID;joinReferences:TaskID" json:"tasks,omitempty"`
}

// TableName 指定表名
func (Nag) TableName() string { return "nags" }
