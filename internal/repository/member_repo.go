package repository

import (
	"context"

	"gorm.io/gorm"

	"bzwops/internal/model"
)

// MemberRepository 成员数据访问接口
type MemberRepository interface {
	Create(ctx context.Context, member *model.Member) error
	GetByID(ctx context.Context, id string) (*model.Member, error)
	GetByUsername(ctx context.Context, username string) (*model.Member, error)
	Update(ctx context.Context, member *model.Member) error
	Delete(ctx context.Context, id, callerID string) error
	List(ctx context.Context, offset, limit int) ([]model.Member, int64, error)
	// CountFamilyMembers 统计以 anchorID 为家庭锚点的成员数
	CountFamilyMembers(ctx context.Context, anchorID string) (int64, error)
	ReplaceTags(ctx context.Context, member *model.Member, tags []model.Tag) error
}

// TagRepository 标签数据访问接口
type TagRepository interface {
	Create(ctx context.Context, tag *model.Tag) error
	List(ctx context.Context) ([]model.Tag, error)
	GetByIDs(ctx context.Context, ids []string) ([]model.Tag, error)
}

// WorkerRepository 志愿者档案数据访问接口
type WorkerRepository interface {
	Create(ctx context.Context, worker *model.Worker) error
	GetByMemberID(ctx context.Context, memberID string) (*model.Worker, error)
	Update(ctx context.Context, worker *model.Worker) error
}

// ── Member Repository 实现 ──

type memberRepo struct {
	db *gorm.DB
}

// NewMemberRepo 创建 MemberRepository 实例
func NewMemberRepo(db *gorm.DB) MemberRepository {
	return &memberRepo{db: db}
}

func (r *memberRepo) Create(ctx context.Context, member *model.Member) error {
	return r.db.WithContext(ctx).Omit("Tags.*").Create(member).Error
}

func (r *memberRepo) GetByID(ctx context.Context, id string) (*model.Member, error) {
	var member model.Member
	err := r.db.WithContext(ctx).
		Preload("Tags").
		Where("member_id = ?", id).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *memberRepo) GetByUsername(ctx context.Context, username string) (*model.Member, error) {
	var member model.Member
	err := r.db.WithContext(ctx).
		Preload("Tags").
		Where("username = ?", username).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *memberRepo) Update(ctx context.Context, member *model.Member) error {
	return r.db.WithContext(ctx).Omit("Tags", "FamilyAnchor").Save(member).Error
}

func (r *memberRepo) Delete(ctx context.Context, id, callerID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Member{}).
			Where("member_id = ?", id).
			Update("deleted_by", callerID).Error; err != nil {
			return err
		}
		return tx.Where("member_id = ?", id).Delete(&model.Member{}).Error
	})
}

func (r *memberRepo) List(ctx context.Context, offset, limit int) ([]model.Member, int64, error) {
	var members []model.Member
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Member{})

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Preload("Tags").
		Offset(offset).Limit(limit).
		Order("last_name ASC, first_name ASC").
		Find(&members).Error; err != nil {
		return nil, 0, err
	}

	return members, total, nil
}

func (r *memberRepo) CountFamilyMembers(ctx context.Context, anchorID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Member{}).
		Where("family_anchor_id = ?", anchorID).
		Count(&count).Error
	return count, err
}

func (r *memberRepo) ReplaceTags(ctx context.Context, member *model.Member, tags []model.Tag) error {
	return r.db.WithContext(ctx).Model(member).Association("Tags").Replace(tags)
}

// ── Tag Repository 实现 ──

type tagRepo struct {
	db *gorm.DB
}

// NewTagRepo 创建 TagRepository 实例
func NewTagRepo(db *gorm.DB) TagRepository {
	return &tagRepo{db: db}
}

func (r *tagRepo) Create(ctx context.Context, tag *model.Tag) error {
	return r.db.WithContext(ctx).Create(tag).Error
}

func (r *tagRepo) List(ctx context.Context) ([]model.Tag, error) {
	var tags []model.Tag
	err := r.db.WithContext(ctx).Order("name ASC").Find(&tags).Error
	return tags, err
}

func (r *tagRepo) GetByIDs(ctx context.Context, ids []string) ([]model.Tag, error) {
	var tags []model.Tag
	if len(ids) == 0 {
		return tags, nil
	}
	err := r.db.WithContext(ctx).Where("tag_id IN ?", ids).Find(&tags).Error
	return tags, err
}

// ── Worker Repository 实现 ──

type workerRepo struct {
	db *gorm.DB
}

// NewWorkerRepo 创建 WorkerRepository 实例
func NewWorkerRepo(db *gorm.DB) WorkerRepository {
	return &workerRepo{db: db}
}

func (r *workerRepo) Create(ctx context.Context, worker *model.Worker) error {
	return r.db.WithContext(ctx).Create(worker).Error
}

func (r *workerRepo) GetByMemberID(ctx context.Context, memberID string) (*model.Worker, error) {
	var worker model.Worker
	err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		First(&worker).Error
	if err != nil {
		return nil, err
	}
	return &worker, nil
}

func (r *workerRepo) Update(ctx context.Context, worker *model.Worker) error {
	return r.db.WithContext(ctx).Omit("Member").Save(worker).Error
}
