package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"bzwops/internal/model"
)

// MembershipRepository 会员资格数据访问接口
type MembershipRepository interface {
	Create(ctx context.Context, m *model.Membership) error
	GetByID(ctx context.Context, id string) (*model.Membership, error)
	Update(ctx context.Context, m *model.Membership) error
	Delete(ctx context.Context, id string) error
	ListByMember(ctx context.Context, memberID string) ([]model.Membership, error)
	// CountCovering 统计覆盖 day 的会员资格数（memberIDs 任一）
	CountCovering(ctx context.Context, memberIDs []string, day time.Time) (int64, error)
}

// VisitRepository 到访记录数据访问接口
type VisitRepository interface {
	Create(ctx context.Context, v *model.VisitEvent) error
	List(ctx context.Context, memberID string, offset, limit int) ([]model.VisitEvent, int64, error)
	// CountArrivals 统计 [from, to] 区间内的到达事件，排除 excludeID
	CountArrivals(ctx context.Context, memberID string, from, to time.Time, excludeID string) (int64, error)
}

// ── Membership Repository 实现 ──

type membershipRepo struct {
	db *gorm.DB
}

// NewMembershipRepo 创建 MembershipRepository 实例
func NewMembershipRepo(db *gorm.DB) MembershipRepository {
	return &membershipRepo{db: db}
}

func (r *membershipRepo) Create(ctx context.Context, m *model.Membership) error {
	return r.db.WithContext(ctx).Omit("Member").Create(m).Error
}

func (r *membershipRepo) GetByID(ctx context.Context, id string) (*model.Membership, error) {
	var m model.Membership
	err := r.db.WithContext(ctx).
		Preload("Member").
		Where("membership_id = ?", id).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *membershipRepo) Update(ctx context.Context, m *model.Membership) error {
	return r.db.WithContext(ctx).Omit("Member").Save(m).Error
}

func (r *membershipRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("membership_id = ?", id).
		Delete(&model.Membership{}).Error
}

func (r *membershipRepo) ListByMember(ctx context.Context, memberID string) ([]model.Membership, error) {
	var list []model.Membership
	err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("start_date DESC").
		Find(&list).Error
	return list, err
}

func (r *membershipRepo) CountCovering(ctx context.Context, memberIDs []string, day time.Time) (int64, error) {
	var count int64
	if len(memberIDs) == 0 {
		return 0, nil
	}
	d := day.Format("2006-01-02")
	err := r.db.WithContext(ctx).
		Model(&model.Membership{}).
		Where("member_id IN ? AND start_date <= ? AND end_date >= ?", memberIDs, d, d).
		Count(&count).Error
	return count, err
}

// ── Visit Repository 实现 ──

type visitRepo struct {
	db *gorm.DB
}

// NewVisitRepo 创建 VisitRepository 实例
func NewVisitRepo(db *gorm.DB) VisitRepository {
	return &visitRepo{db: db}
}

func (r *visitRepo) Create(ctx context.Context, v *model.VisitEvent) error {
	return r.db.WithContext(ctx).Omit("Member").Create(v).Error
}

func (r *visitRepo) List(ctx context.Context, memberID string, offset, limit int) ([]model.VisitEvent, int64, error) {
	var list []model.VisitEvent
	var total int64

	db := r.db.WithContext(ctx).Model(&model.VisitEvent{})
	if memberID != "" {
		db = db.Where("member_id = ?", memberID)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("occurred_at DESC").
		Find(&list).Error; err != nil {
		return nil, 0, err
	}

	return list, total, nil
}

func (r *visitRepo) CountArrivals(ctx context.Context, memberID string, from, to time.Time, excludeID string) (int64, error) {
	var count int64
	db := r.db.WithContext(ctx).
		Model(&model.VisitEvent{}).
		Where("member_id = ? AND event_type = ? AND occurred_at BETWEEN ? AND ?",
			memberID, model.VisitArrival, from, to)
	if excludeID != "" {
		db = db.Where("visit_event_id <> ?", excludeID)
	}
	err := db.Count(&count).Error
	return count, err
}
