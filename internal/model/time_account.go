package model

import (
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "bzwops/pkg/errors"
)

// TimeAccountEntry 志愿工时账户流水 — 对应 time_account_entries
// 一条流水要么来自工作记录（贷记），要么来自以工换会籍（借记）
type TimeAccountEntry struct {
	EntryID      string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"entry_id"`
	WorkerID     string          `gorm:"type:uuid;not null;index"                       json:"worker_id"`
	When         time.Time       `gorm:"column:occurred_at;not null"                    json:"when"`
	Change       decimal.Decimal `gorm:"type:numeric(6,2);not null"                     json:"change"` // 小时，正为贷记
	Explanation  string          `gorm:"type:varchar(128);not null"                     json:"explanation"`
	WorkID       *string         `gorm:"type:uuid;uniqueIndex"                          json:"work_id,omitempty"`
	MembershipID *string         `gorm:"type:uuid;uniqueIndex"                          json:"membership_id,omitempty"`
	BaseModel
}

// TableName 指定表名
func (TimeAccountEntry) TableName() string { return "time_account_entries" }

// Validate 记录级校验
func (e *TimeAccountEntry) Validate() error {
	if e.WorkID != nil && e.MembershipID != nil {
		return pkgerrors.Invalid("work_id", "流水不能同时关联工作记录与会籍")
	}
	if e.Explanation == "" {
		return pkgerrors.Invalid("explanation", "说明不能为空")
	}
	return nil
}
