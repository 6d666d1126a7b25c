package model

// 通知类型
const (
	NotifyStaffingUpdate = "staffing_update"
	NotifyCheckIn        = "check_in"
	NotifyNag            = "nag"
	NotifyStaffArrival   = "staff_arrival"
	NotifyNagSent        = "nag_sent"
)

// Notification 通知消息表 — 对应 notifications
type Notification struct {
	NotificationID string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"notification_id"`
	MemberID       string  `gorm:"type:uuid;not null;index"                       json:"member_id"`
	Type           string  `gorm:"type:varchar(50);not null"                      json:"type"`
	Title          string  `gorm:"type:varchar(200);not null"                     json:"title"`
	Content        string  `gorm:"type:text;not null"                             json:"content"`
	URL            string  `gorm:"type:varchar(500)"                              json:"url,omitempty"`
	URLTitle       string  `gorm:"type:varchar(100)"                              json:"url_title,omitempty"`
	IsRead         bool    `gorm:"not null;default:false"                         json:"is_read"`
	RelatedType    *string `gorm:"type:varchar(20)"                               json:"related_type,omitempty"` // task | claim | nag | visit
	RelatedID      *string `gorm:"type:uuid"                                      json:"related_id,omitempty"`
	SoftDeleteModel
}

// TableName 指定表名
func (Notification) TableName() string { return "notifications" }
