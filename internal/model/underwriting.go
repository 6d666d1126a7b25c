package model

import (
	"time"

	"github.com/shopspring/decimal"

	"bzwops/internal/recurrence"
	pkgerrors "bzwops/pkg/errors"
)

// UnderwritingAgreement 电台赞助协议 — 对应 underwriting_agreements
type UnderwritingAgreement struct {
	AgreementID   string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"agreement_id"`
	Sponsor       string          `gorm:"type:varchar(100);not null"                     json:"sponsor"`
	QtySold       int             `gorm:"not null;default:1"                             json:"qty_sold"`
	SalePrice     decimal.Decimal `gorm:"type:numeric(8,2);not null;default:0"           json:"sale_price"`
	StartDate     time.Time       `gorm:"type:date;not null"                             json:"start_date"`
	EndDate       time.Time       `gorm:"type:date;not null"                             json:"end_date"`
	SpotsIncluded int             `gorm:"not null;default:0"                             json:"spots_included"`
	SpotSeconds   int             `gorm:"not null;default:0"                             json:"spot_seconds"`
	TrackID       *int            `gorm:"index"                                          json:"track_id,omitempty"` // RadioDJ 曲目 ID
	Script        string          `gorm:"type:text;not null"                             json:"script"`
	BaseModel

	// 关联
	Schedules []UnderwritingSchedule `gorm:"foreignKey:AgreementID;references:AgreementID" json:"schedules,omitempty"`

	// 统计（非持久化）
	QtyAired int64 `gorm:"-" json:"qty_aired"`
}

// TableName 指定表名
func (UnderwritingAgreement) TableName() string { return "underwriting_agreements" }

// IsFullyDelivered 已播出次数达到售出数量
func (a *UnderwritingAgreement) IsFullyDelivered() bool {
	return a.QtyAired >= int64(a.QtySold)
}

// Active 判断某日是否在协议有效期内（含首尾）
func (a *UnderwritingAgreement) Active(d time.Time) bool {
	return recurrence.DaysBetween(a.StartDate, d) >= 0 && recurrence.DaysBetween(d, a.EndDate) >= 0
}

// Validate 结束日期必须晚于开始日期
func (a *UnderwritingAgreement) Validate() error {
	if recurrence.DaysBetween(a.StartDate, a.EndDate) <= 0 {
		return pkgerrors.Invalid("end_date", "结束日期必须晚于开始日期")
	}
	if a.QtySold < 0 || a.SpotsIncluded < 0 || a.SpotSeconds < 0 {
		return pkgerrors.Invalid("qty_sold", "数量不能为负")
	}
	return nil
}

// UnderwritingSchedule 协议约定的播出时刻 — 对应 underwriting_schedules
type UnderwritingSchedule struct {
	ScheduleID  string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"schedule_id"`
	AgreementID string `gorm:"type:uuid;not null;index"                       json:"agreement_id"`
	Time        string `gorm:"column:air_time;type:time;not null"             json:"time"`
	Weekdays    bool   `gorm:"not null;default:false"                         json:"weekdays"`
	Weekend     bool   `gorm:"not null;default:false"                         json:"weekend"`
	BaseModel
}

// TableName 指定表名
func (UnderwritingSchedule) TableName() string { return "underwriting_schedules" }

// Pattern 工作日映射到周一至周五，周末映射到周六周日，每周生效
func (s *UnderwritingSchedule) Pattern() recurrence.Pattern {
	p := recurrence.Pattern{Every: true}
	for _, wd := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday} {
		p.Days[wd] = s.Weekdays
	}
	p.Days[time.Saturday] = s.Weekend
	p.Days[time.Sunday] = s.Weekend
	return p
}

// UnderwritingBroadcast 赞助播出记录 — 对应 underwriting_broadcasts
type UnderwritingBroadcast struct {
	UnderwritingBroadcastID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"underwriting_broadcast_id"`
	AgreementID             string    `gorm:"type:uuid;not null;uniqueIndex:uk_uw_broadcast" json:"agreement_id"`
	ScheduleID              *string   `gorm:"type:uuid"                                      json:"schedule_id,omitempty"`
	WhenRead                time.Time `gorm:"not null;uniqueIndex:uk_uw_broadcast"           json:"when_read"`
	CreatedAt               time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (UnderwritingBroadcast) TableName() string { return "underwriting_broadcasts" }
