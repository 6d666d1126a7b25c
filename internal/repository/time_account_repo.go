package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bzwops/internal/model"
)

// TimeAccountRepository 工时账户流水数据访问接口
type TimeAccountRepository interface {
	Create(ctx context.Context, e *model.TimeAccountEntry) error
	DeleteByWork(ctx context.Context, workID string) error
	DeleteByMembership(ctx context.Context, membershipID string) error
	ListByWorker(ctx context.Context, workerID string) ([]model.TimeAccountEntry, error)
	Balance(ctx context.Context, workerID string) (decimal.Decimal, error)
}

// NotificationRepository 通知数据访问接口
type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	ListByMember(ctx context.Context, memberID string, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error)
	MarkRead(ctx context.Context, id, memberID string) error
	MarkAllRead(ctx context.Context, memberID string) error
}

// ── TimeAccount Repository 实现 ──

type timeAccountRepo struct {
	db *gorm.DB
}

// NewTimeAccountRepo 创建 TimeAccountRepository 实例
func NewTimeAccountRepo(db *gorm.DB) TimeAccountRepository {
	return &timeAccountRepo{db: db}
}

func (r *timeAccountRepo) Create(ctx context.Context, e *model.TimeAccountEntry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *timeAccountRepo) DeleteByWork(ctx context.Context, workID string) error {
	return r.db.WithContext(ctx).
		Where("work_id = ?", workID).
		Delete(&model.TimeAccountEntry{}).Error
}

func (r *timeAccountRepo) DeleteByMembership(ctx context.Context, membershipID string) error {
	return r.db.WithContext(ctx).
		Where("membership_id = ?", membershipID).
		Delete(&model.TimeAccountEntry{}).Error
}

func (r *timeAccountRepo) ListByWorker(ctx context.Context, workerID string) ([]model.TimeAccountEntry, error) {
	var list []model.TimeAccountEntry
	err := r.db.WithContext(ctx).
		Where("worker_id = ?", workerID).
		Order("occurred_at ASC").
		Find(&list).Error
	return list, err
}

func (r *timeAccountRepo) Balance(ctx context.Context, workerID string) (decimal.Decimal, error) {
	var result struct {
		Total decimal.NullDecimal
	}
	err := r.db.WithContext(ctx).
		Model(&model.TimeAccountEntry{}).
		Select("SUM(change) AS total").
		Where("worker_id = ?", workerID).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !result.Total.Valid {
		return decimal.Zero, nil
	}
	return result.Total.Decimal, nil
}

// ── Notification Repository 实现 ──

type notificationRepo struct {
	db *gorm.DB
}

// NewNotificationRepo 创建 NotificationRepository 实例
func NewNotificationRepo(db *gorm.DB) NotificationRepository {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) Create(ctx context.Context, n *model.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepo) ListByMember(ctx context.Context, memberID string, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error) {
	var list []model.Notification
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Notification{}).Where("member_id = ?", memberID)
	if unreadOnly {
		db = db.Where("is_read = ?", false)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&list).Error; err != nil {
		return nil, 0, err
	}

	return list, total, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, id, memberID string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("notification_id = ? AND member_id = ?", id, memberID).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *notificationRepo) MarkAllRead(ctx context.Context, memberID string) error {
	return r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("member_id = ? AND is_read = ?", memberID, false).
		Update("is_read", true).Error
}
