package model

import (
	"strings"

	pkgerrors "bzwops/pkg/errors"
)

// Tag 成员标签表 — 对应 tags（用于任务认领资格）
type Tag struct {
	TagID   string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"tag_id"`
	Name    string `gorm:"type:varchar(40);not null"                      json:"name"`
	Meaning string `gorm:"type:varchar(500)"                              json:"meaning,omitempty"`
	BaseModel
}

// TableName 指定表名
func (Tag) TableName() string { return "tags" }

// Member 成员表 — 对应 members
type Member struct {
	MemberID       string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"member_id"`
	FirstName      string  `gorm:"type:varchar(40);not null"                      json:"first_name"`
	LastName       string  `gorm:"type:varchar(40);not null"                      json:"last_name"`
	Username       string  `gorm:"type:varchar(40);not null;uniqueIndex"          json:"username"`
	Email          string  `gorm:"type:varchar(255)"                              json:"email"`
	PasswordHash   string  `gorm:"type:varchar(255)"                              json:"-"`
	Role           string  `gorm:"type:varchar(20);not null;default:'member'"     json:"role"` // admin | staff | member
	FamilyAnchorID *string `gorm:"type:uuid"                                      json:"family_anchor_id,omitempty"`
	SoftDeleteModel

	// 关联
	FamilyAnchor *Member `gorm:"foreignKey:FamilyAnchorID;references:MemberID" json:"family_anchor,omitempty"`
	Tags         []Tag   `gorm:"many2many:member_tags;foreignKey:MemberID;joinForeignKey:MemberID;references:TagID;joinReferences:TagID" json:"tags,omitempty"`
}

// TableName 指定表名
func (Member) TableName() string { return "members" }

// FriendlyName 通知中使用的称呼
func (m *Member) FriendlyName() string {
	name := strings.TrimSpace(m.FirstName + " " + m.LastName)
	if name == "" {
		return m.Username
	}
	return name
}

// HasTag 判断成员是否带有指定标签
func (m *Member) HasTag(tagID string) bool {
	for _, t := range m.Tags {
		if t.TagID == tagID {
			return true
		}
	}
	return false
}

// Validate 家庭账户校验：指向锚点的成员自身不能再作为锚点
func (m *Member) Validate(familyMemberCount int64) error {
	if strings.TrimSpace(m.Username) == "" {
		return pkgerrors.Invalid("username", "用户名不能为空")
	}
	if m.FamilyAnchorID != nil {
		if *m.FamilyAnchorID == m.MemberID {
			return pkgerrors.Invalid("family_anchor_id", "成员不能以自己为家庭锚点")
		}
		if familyMemberCount > 0 {
			return pkgerrors.Invalid("family_anchor_id", "指向锚点的成员自身不能再作为锚点")
		}
	}
	return nil
}

// Worker 志愿者档案 — 对应 workers（与 members 1:1）
type Worker struct {
	WorkerID            string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"worker_id"`
	MemberID            string `gorm:"type:uuid;not null;uniqueIndex"                 json:"member_id"`
	ShouldIncludeAlarms bool   `gorm:"not null;default:false"                         json:"should_include_alarms"`
	ShouldNag           bool   `gorm:"not null;default:false"                         json:"should_nag"`
	BaseModel

	// 关联
	Member *Member `gorm:"foreignKey:MemberID;references:MemberID" json:"member,omitempty"`
}

// TableName 指定表名
func (Worker) TableName() string { return "workers" }
