package model

import (
	"time"

	"github.com/shopspring/decimal"

	"bzwops/internal/recurrence"
	pkgerrors "bzwops/pkg/errors"
)

// 会员类型
const (
	MembershipRegular       = "regular"
	MembershipFamily        = "family"
	MembershipWorkTrade     = "work_trade"
	MembershipComplimentary = "complimentary"
	MembershipGroup         = "group"
)

// Membership 会员资格表 — 对应 memberships
type Membership struct {
	MembershipID   string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"membership_id"`
	MemberID       string          `gorm:"type:uuid;not null;index"                       json:"member_id"`
	MembershipType string          `gorm:"type:varchar(20);not null"                      json:"membership_type"`
	StartDate      time.Time       `gorm:"type:date;not null"                             json:"start_date"`
	EndDate        time.Time       `gorm:"type:date;not null"                             json:"end_date"`
	SalePrice      decimal.Decimal `gorm:"type:numeric(8,2);not null;default:0"           json:"sale_price"`
	BaseModel

	// 关联
	Member *Member `gorm:"foreignKey:MemberID;references:MemberID" json:"member,omitempty"`
}

// TableName 指定表名
func (Membership) TableName() string { return "memberships" }

// Covers 判断会员资格是否覆盖某日（含首尾）
func (m *Membership) Covers(d time.Time) bool {
	return recurrence.DaysBetween(m.StartDate, d) >= 0 && recurrence.DaysBetween(d, m.EndDate) >= 0
}

// Validate 记录级校验
func (m *Membership) Validate() error {
	switch m.MembershipType {
	case MembershipRegular, MembershipFamily, MembershipWorkTrade, MembershipComplimentary, MembershipGroup:
	default:
		return pkgerrors.Invalid("membership_type", "未知的会员类型")
	}
	if recurrence.DaysBetween(m.StartDate, m.EndDate) < 0 {
		return pkgerrors.Invalid("end_date", "结束日期不能早于开始日期")
	}
	if m.SalePrice.IsNegative() {
		return pkgerrors.Invalid("sale_price", "售价不能为负")
	}
	return nil
}

// 到访事件类型
const (
	VisitArrival   = "arrival"
	VisitPresent   = "present"
	VisitDeparture = "departure"
)

// VisitEvent 到访记录表 — 对应 visit_events
type VisitEvent struct {
	VisitEventID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"visit_event_id"`
	MemberID     string    `gorm:"type:uuid;not null;index"                       json:"member_id"`
	When         time.Time `gorm:"column:occurred_at;not null"                    json:"when"`
	EventType    string    `gorm:"type:varchar(10);not null"                      json:"event_type"` // arrival | present | departure
	Method       string    `gorm:"type:varchar(10);not null;default:'unknown'"    json:"method"`     // rfid | frontdesk | mobile | unknown
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`

	// 关联
	Member *Member `gorm:"foreignKey:MemberID;references:MemberID" json:"member,omitempty"`
}

// TableName 指定表名
func (VisitEvent) TableName() string { return "visit_events" }

// Validate 记录级校验
func (v *VisitEvent) Validate() error {
	switch v.EventType {
	case VisitArrival, VisitPresent, VisitDeparture:
		return nil
	}
	return pkgerrors.Invalid("event_type", "未知的到访事件类型")
}
