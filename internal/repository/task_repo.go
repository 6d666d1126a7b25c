package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bzwops/internal/model"
	pkgerrors "bzwops/pkg/errors"
)

// TemplateRepository 周期任务模板数据访问接口
type TemplateRepository interface {
	Create(ctx context.Context, t *model.RecurringTaskTemplate) error
	GetByID(ctx context.Context, id string) (*model.RecurringTaskTemplate, error)
	Update(ctx context.Context, t *model.RecurringTaskTemplate) error
	Delete(ctx context.Context, id, callerID string) error
	List(ctx context.Context, includeSuspended bool) ([]model.RecurringTaskTemplate, error)
	// GreatestScheduledDate 模板已生成任务的最大计划日期，无任务时返回 nil
	GreatestScheduledDate(ctx context.Context, templateID string) (*time.Time, error)
}

// TaskFilter 任务列表筛选条件
type TaskFilter struct {
	Status     string
	TemplateID string
	From       *time.Time
	To         *time.Time
}

// TaskRepository 任务数据访问接口
type TaskRepository interface {
	Create(ctx context.Context, t *model.Task) error
	// BatchCreate 批量创建，跳过同一模板同一天已存在的任务，返回实际写入的任务
	BatchCreate(ctx context.Context, tasks []model.Task) ([]model.Task, error)
	GetByID(ctx context.Context, id string) (*model.Task, error)
	Update(ctx context.Context, t *model.Task) error
	Delete(ctx context.Context, id, callerID string) error
	List(ctx context.Context, filter TaskFilter, offset, limit int) ([]model.Task, int64, error)
	// ListNagCandidates 当日可提醒成员的维护类任务：固定间隔、错过顺延、需要提醒
	ListNagCandidates(ctx context.Context, memberID string, tagIDs []string, day time.Time) ([]model.Task, error)
	// LastDoneBefore 模板在 day 之前最近一次完成的任务
	LastDoneBefore(ctx context.Context, templateID string, day time.Time) (*model.Task, error)
	// ListClaimedBy 成员持有有效认领的任务（日历订阅用）
	ListClaimedBy(ctx context.Context, memberID string, from, to time.Time) ([]model.Task, error)
}

// TaskNoteRepository 任务备注数据访问接口
type TaskNoteRepository interface {
	Create(ctx context.Context, note *model.TaskNote) error
	ListByTask(ctx context.Context, taskID string) ([]model.TaskNote, error)
}

// ── Template Repository 实现 ──

type templateRepo struct {
	db *gorm.DB
}

// NewTemplateRepo 创建 TemplateRepository 实例
func NewTemplateRepo(db *gorm.DB) TemplateRepository {
	return &templateRepo{db: db}
}

func (r *templateRepo) Create(ctx context.Context, t *model.RecurringTaskTemplate) error {
	return r.db.WithContext(ctx).
		Omit("EligibleClaimants.*", "EligibleTags.*").
		Create(t).Error
}

func (r *templateRepo) GetByID(ctx context.Context, id string) (*model.RecurringTaskTemplate, error) {
	var t model.RecurringTaskTemplate
	err := r.db.WithContext(ctx).
		Preload("EligibleClaimants").
		Preload("EligibleTags").
		Where("template_id = ?", id).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *templateRepo) Update(ctx context.Context, t *model.RecurringTaskTemplate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("EligibleClaimants", "EligibleTags").Save(t).Error; err != nil {
			return err
		}
		if err := tx.Model(t).Association("EligibleClaimants").Replace(t.EligibleClaimants); err != nil {
			return err
		}
		return tx.Model(t).Association("EligibleTags").Replace(t.EligibleTags)
	})
}

func (r *templateRepo) Delete(ctx context.Context, id, callerID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.RecurringTaskTemplate{}).
			Where("template_id = ?", id).
			Update("deleted_by", callerID).Error; err != nil {
			return err
		}
		return tx.Where("template_id = ?", id).Delete(&model.RecurringTaskTemplate{}).Error
	})
}

func (r *templateRepo) List(ctx context.Context, includeSuspended bool) ([]model.RecurringTaskTemplate, error) {
	var list []model.RecurringTaskTemplate
	db := r.db.WithContext(ctx).
		Preload("EligibleClaimants").
		Preload("EligibleTags")
	if !includeSuspended {
		db = db.Where("suspended = ?", false)
	}
	err := db.Order("short_desc ASC").Find(&list).Error
	return list, err
}

func (r *templateRepo) GreatestScheduledDate(ctx context.Context, templateID string) (*time.Time, error) {
	var result struct {
		Max *time.Time
	}
	err := r.db.WithContext(ctx).
		Model(&model.Task{}).
		Unscoped().
		Select("MAX(scheduled_date) AS max").
		Where("template_id = ?", templateID).
		Scan(&result).Error
	if err != nil {
		return nil, err
	}
	return result.Max, nil
}

// ── Task Repository 实现 ──

type taskRepo struct {
	db *gorm.DB
}

// NewTaskRepo 创建 TaskRepository 实例
func NewTaskRepo(db *gorm.DB) TaskRepository {
	return &taskRepo{db: db}
}

func (r *taskRepo) Create(ctx context.Context, t *model.Task) error {
	return r.db.WithContext(ctx).
		Omit("EligibleClaimants.*", "EligibleTags.*", "Template", "Claims").
		Create(t).Error
}

func (r *taskRepo) BatchCreate(ctx context.Context, tasks []model.Task) ([]model.Task, error) {
	if len(tasks) == 0 {
		return nil, nil
	}
	created := make([]model.Task, 0, len(tasks))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range tasks {
			t := &tasks[i]
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Omit("EligibleClaimants", "EligibleTags", "Template", "Claims").
				Create(t)
			if res.Error != nil {
				return res.Error
			}
			// 其他实例已生成同一模板同一天的任务
			if res.RowsAffected == 0 {
				continue
			}
			if err := linkEligibility(tx, t); err != nil {
				return err
			}
			created = append(created, *t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// linkEligibility 写入任务的可认领成员与标签关联
func linkEligibility(tx *gorm.DB, t *model.Task) error {
	if len(t.EligibleClaimants) > 0 {
		rows := make([]map[string]any, 0, len(t.EligibleClaimants))
		for _, m := range t.EligibleClaimants {
			rows = append(rows, map[string]any{"task_id": t.TaskID, "member_id": m.MemberID})
		}
		if err := tx.Table("task_eligible_claimants").Create(&rows).Error; err != nil {
			return err
		}
	}
	if len(t.EligibleTags) > 0 {
		rows := make([]map[string]any, 0, len(t.EligibleTags))
		for _, tag := range t.EligibleTags {
			rows = append(rows, map[string]any{"task_id": t.TaskID, "tag_id": tag.TagID})
		}
		if err := tx.Table("task_eligible_tags").Create(&rows).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *taskRepo) GetByID(ctx context.Context, id string) (*model.Task, error) {
	var t model.Task
	err := r.db.WithContext(ctx).
		Preload("EligibleClaimants").
		Preload("EligibleTags").
		Preload("Claims").
		Preload("Template").
		Where("task_id = ?", id).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *taskRepo) Update(ctx context.Context, t *model.Task) error {
	oldVersion := t.Version
	result := r.db.WithContext(ctx).
		Model(t).
		Where("task_id = ? AND version = ?", t.TaskID, oldVersion).
		Updates(map[string]interface{}{
			"scheduled_date":   t.ScheduledDate,
			"deadline":         t.Deadline,
			"status":           t.Status,
			"work_done":        t.WorkDone,
			"work_accepted":    t.WorkAccepted,
			"owner_id":         t.OwnerID,
			"instructions":     t.Instructions,
			"short_desc":       t.ShortDesc,
			"reviewer_id":      t.ReviewerID,
			"work_estimate":    t.WorkEstimate,
			"priority":         t.Priority,
			"should_nag":       t.ShouldNag,
			"start_time":       t.StartTime,
			"duration_minutes": t.DurationMinutes,
			"updated_by":       t.UpdatedBy,
			"version":          oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	t.Version = oldVersion + 1
	return nil
}

func (r *taskRepo) Delete(ctx context.Context, id, callerID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Task{}).
			Where("task_id = ?", id).
			Update("deleted_by", callerID).Error; err != nil {
			return err
		}
		return tx.Where("task_id = ?", id).Delete(&model.Task{}).Error
	})
}

func (r *taskRepo) List(ctx context.Context, filter TaskFilter, offset, limit int) ([]model.Task, int64, error) {
	var tasks []model.Task
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Task{})
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.TemplateID != "" {
		db = db.Where("template_id = ?", filter.TemplateID)
	}
	if filter.From != nil {
		db = db.Where("scheduled_date >= ?", filter.From.Format("2006-01-02"))
	}
	if filter.To != nil {
		db = db.Where("scheduled_date <= ?", filter.To.Format("2006-01-02"))
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Preload("EligibleClaimants").Preload("EligibleTags").
		Offset(offset).Limit(limit).
		Order("scheduled_date ASC NULLS LAST, short_desc ASC").
		Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

func (r *taskRepo) ListNagCandidates(ctx context.Context, memberID string, tagIDs []string, day time.Time) ([]model.Task, error) {
	var tasks []model.Task

	byMember := r.db.Table("task_eligible_claimants").
		Select("task_id").
		Where("member_id = ?", memberID)
	byTag := r.db.Table("task_eligible_tags").
		Select("task_id").
		Where("tag_id IN ?", tagIDs)

	err := r.db.WithContext(ctx).
		Joins("JOIN recurring_task_templates rtt ON rtt.template_id = tasks.template_id").
		Where("tasks.task_id IN (?) OR tasks.task_id IN (?)", byMember, byTag).
		Where("tasks.scheduled_date = ?", day.Format("2006-01-02")).
		Where("tasks.status = ? AND tasks.should_nag = ?", model.TaskActive, true).
		Where("rtt.repeat_interval IS NOT NULL AND rtt.missed_date_action = ?", model.MissedSlide).
		Preload("Template").
		Find(&tasks).Error
	return tasks, err
}

func (r *taskRepo) LastDoneBefore(ctx context.Context, templateID string, day time.Time) (*model.Task, error) {
	var t model.Task
	err := r.db.WithContext(ctx).
		Where("template_id = ? AND status = ? AND scheduled_date < ?",
			templateID, model.TaskDone, day.Format("2006-01-02")).
		Order("scheduled_date DESC").
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *taskRepo) ListClaimedBy(ctx context.Context, memberID string, from, to time.Time) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Joins("JOIN claims c ON c.task_id = tasks.task_id").
		Where("c.member_id = ? AND c.status IN ?", memberID,
			[]string{model.ClaimCurrent, model.ClaimWorking, model.ClaimQueued}).
		Where("tasks.scheduled_date BETWEEN ? AND ?", from.Format("2006-01-02"), to.Format("2006-01-02")).
		Order("tasks.scheduled_date ASC").
		Find(&tasks).Error
	return tasks, err
}

// ── TaskNote Repository 实现 ──

type taskNoteRepo struct {
	db *gorm.DB
}

// NewTaskNoteRepo 创建 TaskNoteRepository 实例
func NewTaskNoteRepo(db *gorm.DB) TaskNoteRepository {
	return &taskNoteRepo{db: db}
}

func (r *taskNoteRepo) Create(ctx context.Context, note *model.TaskNote) error {
	return r.db.WithContext(ctx).Create(note).Error
}

func (r *taskNoteRepo) ListByTask(ctx context.Context, taskID string) ([]model.TaskNote, error) {
	var notes []model.TaskNote
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&notes).Error
	return notes, err
}
