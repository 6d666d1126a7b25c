package model

import (
	"time"

	"bzwops/internal/recurrence"
	pkgerrors "bzwops/pkg/errors"
)

// OnAirPersonality 主持人 — 对应 on_air_personalities
type OnAirPersonality struct {
	PersonalityID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"personality_id"`
	MemberID      string `gorm:"type:uuid;not null;index"                       json:"member_id"`
	Moniker       string `gorm:"type:varchar(40);not null"                      json:"moniker"`
	Bio           string `gorm:"type:text"                                      json:"bio"`
	Active        bool   `gorm:"not null;default:true"                          json:"active"`
	BaseModel
}

// TableName 指定表名
func (OnAirPersonality) TableName() string { return "on_air_personalities" }

// Show 节目 — 对应 shows
type Show struct {
	ShowID          string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"show_id"`
	Title           string `gorm:"type:varchar(80);not null"                      json:"title"`
	Description     string `gorm:"type:text;not null"                             json:"description"`
	DurationMinutes int    `gorm:"not null"                                       json:"duration_minutes"`
	Active          bool   `gorm:"not null;default:true"                          json:"active"`
	BaseModel

	// 关联
	Hosts     []OnAirPersonality `gorm:"many2many:show_hosts;foreignKey:ShowID;joinForeignKey:ShowID;references:PersonalityID;joinReferences:PersonalityID" json:"hosts,omitempty"`
	ShowTimes []ShowTime         `gorm:"foreignKey:ShowID;references:ShowID" json:"show_times,omitempty"`
}

// TableName 指定表名
func (Show) TableName() string { return "shows" }

// Duration 节目时长
func (s *Show) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// CurrentShowTime 返回覆盖 t 的播出时段，需预加载 ShowTimes
func (s *Show) CurrentShowTime(t time.Time) *ShowTime {
	for i := range s.ShowTimes {
		if s.ShowTimes[i].Covers(t, s.Duration()) {
			return &s.ShowTimes[i]
		}
	}
	return nil
}

// IsInProgress 节目是否正在播出
func (s *Show) IsInProgress(t time.Time) bool {
	return s.CurrentShowTime(t) != nil
}

// Validate 记录级校验
func (s *Show) Validate() error {
	if s.Title == "" {
		return pkgerrors.Invalid("title", "节目名称不能为空")
	}
	if s.DurationMinutes <= 0 {
		return pkgerrors.Invalid("duration_minutes", "节目时长必须大于 0")
	}
	return nil
}

// 制作方式
const (
	ProductionLive        = "LIV"
	ProductionPrerecorded = "PRE"
)

// ShowTime 节目播出时段 — 对应 show_times
type ShowTime struct {
	ShowTimeID       string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"show_time_id"`
	ShowID           string `gorm:"type:uuid;not null;index"                       json:"show_id"`
	StartTime        string `gorm:"type:time;not null"                             json:"start_time"`
	First            bool   `gorm:"not null;default:false"                         json:"first"`
	Second           bool   `gorm:"not null;default:false"                         json:"second"`
	Third            bool   `gorm:"not null;default:false"                         json:"third"`
	Fourth           bool   `gorm:"not null;default:false"                         json:"fourth"`
	Every            bool   `gorm:"not null;default:true"                          json:"every"`
	Sundays          bool   `gorm:"not null;default:false"                         json:"sundays"`
	Mondays          bool   `gorm:"not null;default:false"                         json:"mondays"`
	Tuesdays         bool   `gorm:"not null;default:false"                         json:"tuesdays"`
	Wednesdays       bool   `gorm:"not null;default:false"                         json:"wednesdays"`
	Thursdays        bool   `gorm:"not null;default:false"                         json:"thursdays"`
	Fridays          bool   `gorm:"not null;default:false"                         json:"fridays"`
	Saturdays        bool   `gorm:"not null;default:false"                         json:"saturdays"`
	ProductionMethod string `gorm:"type:varchar(3);not null"                       json:"production_method"`
	BaseModel
}

// TableName 指定表名
func (ShowTime) TableName() string { return "show_times" }

// Pattern 转换为星期 × 序数规则
func (st *ShowTime) Pattern() recurrence.Pattern {
	p := recurrence.Pattern{
		Every: st.Every, First: st.First, Second: st.Second,
		Third: st.Third, Fourth: st.Fourth,
	}
	p.Days[time.Sunday] = st.Sundays
	p.Days[time.Monday] = st.Mondays
	p.Days[time.Tuesday] = st.Tuesdays
	p.Days[time.Wednesday] = st.Wednesdays
	p.Days[time.Thursday] = st.Thursdays
	p.Days[time.Friday] = st.Fridays
	p.Days[time.Saturday] = st.Saturdays
	return p
}

// Covers 判断 t（本地时间）是否落在该时段内
func (st *ShowTime) Covers(t time.Time, dur time.Duration) bool {
	start, err := recurrence.ParseClock(st.StartTime)
	if err != nil {
		return false
	}
	return st.Pattern().Matches(t) && recurrence.TimeInSpan(recurrence.ClockOf(t), start, dur)
}

// Validate 记录级校验
func (st *ShowTime) Validate() error {
	if _, err := recurrence.ParseClock(st.StartTime); err != nil {
		return pkgerrors.Invalid("start_time", "开始时间格式错误")
	}
	switch st.ProductionMethod {
	case ProductionLive, ProductionPrerecorded:
	default:
		return pkgerrors.Invalid("production_method", "未知的制作方式")
	}
	return nil
}
