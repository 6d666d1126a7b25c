package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"bzwops/internal/model"
)

// ClaimRepository 任务认领数据访问接口
type ClaimRepository interface {
	Create(ctx context.Context, c *model.Claim) error
	GetByID(ctx context.Context, id string) (*model.Claim, error)
	Update(ctx context.Context, c *model.Claim) error
	ListByTask(ctx context.Context, taskID string) ([]model.Claim, error)
	ListByMember(ctx context.Context, memberID string) ([]model.Claim, error)
	// HasStatus 成员在该任务上是否存在指定状态的认领
	HasStatus(ctx context.Context, taskID, memberID, status string) (bool, error)
	// ListCurrentForDay 成员在 day 当天、指定优先级任务上的有效认领（预加载 Task）
	ListCurrentForDay(ctx context.Context, memberID string, day time.Time, priority string) ([]model.Claim, error)
	// FindCurrentByTaskDesc 当天指定任务（按简要描述）的有效认领（预加载 Member）
	FindCurrentByTaskDesc(ctx context.Context, shortDesc string, day time.Time) (*model.Claim, error)
}

// WorkRepository 工作记录数据访问接口
type WorkRepository interface {
	Create(ctx context.Context, w *model.Work) error
	GetByID(ctx context.Context, id string) (*model.Work, error)
	Update(ctx context.Context, w *model.Work) error
	ListByClaim(ctx context.Context, claimID string) ([]model.Work, error)
}

// NagRepository 维护提醒数据访问接口
type NagRepository interface {
	Create(ctx context.Context, nag *model.Nag) error
	Delete(ctx context.Context, id string) error
	GetByTokenMD5(ctx context.Context, md5 string) (*model.Nag, error)
	ExistsTokenMD5(ctx context.Context, md5 string) (bool, error)
	MarkActed(ctx context.Context, id string, at time.Time) error
}

// ── Claim Repository 实现 ──

type claimRepo struct {
	db *gorm.DB
}

// NewClaimRepo 创建 ClaimRepository 实例
func NewClaimRepo(db *gorm.DB) ClaimRepository {
	return &claimRepo{db: db}
}

func (r *claimRepo) Create(ctx context.Context, c *model.Claim) error {
	return r.db.WithContext(ctx).Omit("Task", "Member").Create(c).Error
}

func (r *claimRepo) GetByID(ctx context.Context, id string) (*model.Claim, error) {
	var c model.Claim
	err := r.db.WithContext(ctx).
		Preload("Task").
		Preload("Member").
		Where("claim_id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *claimRepo) Update(ctx context.Context, c *model.Claim) error {
	return r.db.WithContext(ctx).Omit("Task", "Member").Save(c).Error
}

func (r *claimRepo) ListByTask(ctx context.Context, taskID string) ([]model.Claim, error) {
	var list []model.Claim
	err := r.db.WithContext(ctx).
		Preload("Member").
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}

func (r *claimRepo) ListByMember(ctx context.Context, memberID string) ([]model.Claim, error) {
	var list []model.Claim
	err := r.db.WithContext(ctx).
		Preload("Task").
		Where("member_id = ?", memberID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *claimRepo) HasStatus(ctx context.Context, taskID, memberID, status string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Claim{}).
		Where("task_id = ? AND member_id = ? AND status = ?", taskID, memberID, status).
		Count(&count).Error
	return count > 0, err
}

func (r *claimRepo) ListCurrentForDay(ctx context.Context, memberID string, day time.Time, priority string) ([]model.Claim, error) {
	var list []model.Claim
	err := r.db.WithContext(ctx).
		Joins("JOIN tasks t ON t.task_id = claims.task_id AND t.deleted_at IS NULL").
		Where("claims.member_id = ? AND claims.status = ?", memberID, model.ClaimCurrent).
		Where("t.scheduled_date = ? AND t.priority = ?", day.Format("2006-01-02"), priority).
		Preload("Task").
		Order("t.start_time ASC NULLS LAST").
		Find(&list).Error
	return list, err
}

func (r *claimRepo) FindCurrentByTaskDesc(ctx context.Context, shortDesc string, day time.Time) (*model.Claim, error) {
	var c model.Claim
	err := r.db.WithContext(ctx).
		Joins("JOIN tasks t ON t.task_id = claims.task_id AND t.deleted_at IS NULL").
		Where("claims.status = ?", model.ClaimCurrent).
		Where("t.short_desc = ? AND t.scheduled_date = ?", shortDesc, day.Format("2006-01-02")).
		Preload("Member").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ── Work Repository 实现 ──

type workRepo struct {
	db *gorm.DB
}

// NewWorkRepo 创建 WorkRepository 实例
func NewWorkRepo(db *gorm.DB) WorkRepository {
	return &workRepo{db: db}
}

func (r *workRepo) Create(ctx context.Context, w *model.Work) error {
	return r.db.WithContext(ctx).Omit("Claim").Create(w).Error
}

func (r *workRepo) GetByID(ctx context.Context, id string) (*model.Work, error) {
	var w model.Work
	err := r.db.WithContext(ctx).
		Preload("Claim").
		Where("work_id = ?", id).
		First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *workRepo) Update(ctx context.Context, w *model.Work) error {
	return r.db.WithContext(ctx).Omit("Claim").Save(w).Error
}

func (r *workRepo) ListByClaim(ctx context.Context, claimID string) ([]model.Work, error) {
	var list []model.Work
	err := r.db.WithContext(ctx).
		Where("claim_id = ?", claimID).
		Order("work_date ASC").
		Find(&list).Error
	return list, err
}

// ── Nag Repository 实现 ──

type nagRepo struct {
	db *gorm.DB
}

// NewNagRepo 创建 NagRepository 实例
func NewNagRepo(db *gorm.DB) NagRepository {
	return &nagRepo{db: db}
}

func (r *nagRepo) Create(ctx context.Context, nag *model.Nag) error {
	return r.db.WithContext(ctx).Omit("Tasks.*").Create(nag).Error
}

func (r *nagRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Select("Tasks").Delete(&model.Nag{NagID: id}).Error
}

func (r *nagRepo) GetByTokenMD5(ctx context.Context, md5 string) (*model.Nag, error) {
	var nag model.Nag
	err := r.db.WithContext(ctx).
		Preload("Tasks").
		Where("auth_token_md5 = ?", md5).
		First(&nag).Error
	if err != nil {
		return nil, err
	}
	return &nag, nil
}

func (r *nagRepo) ExistsTokenMD5(ctx context.Context, md5 string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Nag{}).
		Where("auth_token_md5 = ?", md5).
		Count(&count).Error
	return count > 0, err
}

func (r *nagRepo) MarkActed(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Nag{}).
		Where("nag_id = ?", id).
		Update("acted_at", at).Error
}
