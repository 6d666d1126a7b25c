package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"bzwops/config"
	"bzwops/internal/dto"
	"bzwops/internal/model"
	"bzwops/internal/recurrence"
	"bzwops/internal/repository"
	pkgerrors "bzwops/pkg/errors"
)

// ── 周期任务模板业务错误 ──

var (
	ErrTemplateNotFound = errors.New("周期任务模板不存在")
)

// TemplateService 周期任务模板业务接口
type TemplateService interface {
	Create(ctx context.Context, req *dto.TemplateRequest, callerID string) (*model.RecurringTaskTemplate, error)
	GetByID(ctx context.Context, id string) (*model.RecurringTaskTemplate, error)
	List(ctx context.Context, includeSuspended bool) ([]model.RecurringTaskTemplate, error)
	Update(ctx context.Context, id string, req *dto.TemplateRequest, callerID string) (*model.RecurringTaskTemplate, error)
	Delete(ctx context.Context, id, callerID string) error

	// GenerateTasks 为单个模板补齐 [今天, 今天+horizonDays] 内的任务，返回新建的任务
	GenerateTasks(ctx context.Context, id string, horizonDays int) ([]model.Task, error)
	// GenerateAll 为全部未暂停模板补齐任务，返回新建任务总数
	GenerateAll(ctx context.Context, horizonDays int) (int, error)
}

type templateService struct {
	repo    *repository.Repository
	loc     *time.Location
	horizon int
	now     func() time.Time
	logger  *zap.Logger
}

// NewTemplateService 创建 TemplateService 实例
func NewTemplateService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) TemplateService {
	return &templateService{
		repo:    repo,
		loc:     cfg.Tasks.Location(),
		horizon: cfg.Tasks.HorizonDays,
		now:     time.Now,
		logger:  logger,
	}
}

// ────────────────────── Create ──────────────────────

func (s *templateService) Create(ctx context.Context, req *dto.TemplateRequest, callerID string) (*model.RecurringTaskTemplate, error) {
	t := &model.RecurringTaskTemplate{}
	if err := s.apply(ctx, t, req); err != nil {
		return nil, err
	}
	t.CreatedBy = &callerID
	t.UpdatedBy = &callerID

	if err := s.repo.Template.Create(ctx, t); err != nil {
		s.logger.Error("创建周期任务模板失败", zap.Error(err))
		return nil, err
	}
	return t, nil
}

// ────────────────────── GetByID ──────────────────────

func (s *templateService) GetByID(ctx context.Context, id string) (*model.RecurringTaskTemplate, error) {
	t, err := s.repo.Template.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		s.logger.Error("查询周期任务模板失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return t, nil
}

// ────────────────────── List ──────────────────────

func (s *templateService) List(ctx context.Context, includeSuspended bool) ([]model.RecurringTaskTemplate, error) {
	list, err := s.repo.Template.List(ctx, includeSuspended)
	if err != nil {
		s.logger.Error("列出周期任务模板失败", zap.Error(err))
		return nil, err
	}
	return list, nil
}

// ────────────────────── Update ──────────────────────

func (s *templateService) Update(ctx context.Context, id string, req *dto.TemplateRequest, callerID string) (*model.RecurringTaskTemplate, error) {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, t, req); err != nil {
		return nil, err
	}
	t.UpdatedBy = &callerID

	if err := s.repo.Template.Update(ctx, t); err != nil {
		s.logger.Error("更新周期任务模板失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return t, nil
}

// ────────────────────── Delete ──────────────────────

func (s *templateService) Delete(ctx context.Context, id, callerID string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Template.Delete(ctx, id, callerID); err != nil {
		s.logger.Error("删除周期任务模板失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ════════════════════════════════════════════════════════
// 任务生成
// ════════════════════════════════════════════════════════
//
// 起点 = max(已生成的最大计划日期 + 1 或模板开始日期, 今天)
// 终点 = 今天 + horizonDays（含）
// 暂停的模板不生成；只在模板规则匹配的日期生成。

func (s *templateService) GenerateTasks(ctx context.Context, id string, horizonDays int) ([]model.Task, error) {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.generate(ctx, t, s.horizonOr(horizonDays))
}

func (s *templateService) GenerateAll(ctx context.Context, horizonDays int) (int, error) {
	templates, err := s.repo.Template.List(ctx, false)
	if err != nil {
		s.logger.Error("列出周期任务模板失败", zap.Error(err))
		return 0, err
	}

	horizon := s.horizonOr(horizonDays)
	total := 0
	for i := range templates {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		tasks, err := s.generate(ctx, &templates[i], horizon)
		if err != nil {
			// 单个模板失败不影响其他模板
			continue
		}
		total += len(tasks)
	}

	s.logger.Info("周期任务生成完成", zap.Int("templates", len(templates)), zap.Int("created", total))
	return total, nil
}

func (s *templateService) generate(ctx context.Context, t *model.RecurringTaskTemplate, horizonDays int) ([]model.Task, error) {
	if t.Suspended {
		return nil, nil
	}

	today := dayIn(s.now().In(s.loc), s.loc)
	stop := today.AddDate(0, 0, horizonDays)

	curr := dayIn(t.StartDate, s.loc)
	last, err := s.repo.Template.GreatestScheduledDate(ctx, t.TemplateID)
	if err != nil {
		s.logger.Error("查询模板最大计划日期失败", zap.String("template_id", t.TemplateID), zap.Error(err))
		return nil, err
	}
	if last != nil {
		curr = dayIn(*last, s.loc).AddDate(0, 0, 1)
	}
	if curr.Before(today) {
		curr = today
	}

	matches, err := s.matcher(ctx, t, today)
	if err != nil {
		return nil, err
	}

	var tasks []model.Task
	for d := curr; !d.After(stop); d = d.AddDate(0, 0, 1) {
		if !matches(d) {
			continue
		}
		tasks = append(tasks, taskFromTemplate(t, d))
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	tasks, err = s.repo.Task.BatchCreate(ctx, tasks)
	if err != nil {
		s.logger.Error("批量创建任务失败", zap.String("template_id", t.TemplateID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("已生成任务",
		zap.String("template_id", t.TemplateID),
		zap.String("short_desc", t.ShortDesc),
		zap.Int("count", len(tasks)),
	)
	return tasks, nil
}

// matcher 星期规则直接匹配；固定间隔且错过顺延的模板以最近一次完成日期为新起点
func (s *templateService) matcher(ctx context.Context, t *model.RecurringTaskTemplate, today time.Time) (func(time.Time) bool, error) {
	if !t.UsesInterval() || t.MissedDateAction != model.MissedSlide {
		return t.Matches, nil
	}

	anchor := dayIn(t.StartDate, s.loc)
	done, err := s.repo.Task.LastDoneBefore(ctx, t.TemplateID, today)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询最近完成任务失败", zap.String("template_id", t.TemplateID), zap.Error(err))
		return nil, err
	}
	if done != nil && done.ScheduledDate != nil {
		if d := dayIn(*done.ScheduledDate, s.loc); d.After(anchor) {
			anchor = d
		}
	}
	interval := *t.RepeatInterval
	return func(d time.Time) bool {
		return recurrence.MatchesInterval(anchor, interval, d)
	}, nil
}

func (s *templateService) horizonOr(days int) int {
	if days > 0 {
		return days
	}
	return s.horizon
}

// taskFromTemplate 复制模板字段生成某日的任务
func taskFromTemplate(t *model.RecurringTaskTemplate, day time.Time) model.Task {
	d := day
	templateID := t.TemplateID
	task := model.Task{
		ScheduledDate:     &d,
		Status:            model.TaskActive,
		TemplateID:        &templateID,
		TaskFields:        t.TaskFields,
		EligibleClaimants: append([]model.Member(nil), t.EligibleClaimants...),
		EligibleTags:      append([]model.Tag(nil), t.EligibleTags...),
	}
	task.CreatedBy = t.CreatedBy
	task.Version = 1
	return task
}

// ── 内部辅助方法 ──

func (s *templateService) apply(ctx context.Context, t *model.RecurringTaskTemplate, req *dto.TemplateRequest) error {
	start, err := parseDate("start_date", req.StartDate, s.loc)
	if err != nil {
		return err
	}
	fields, err := taskFieldsFrom(&req.TaskFieldsRequest)
	if err != nil {
		return err
	}
	claimants, tags, err := resolveEligibility(ctx, s.repo, &req.TaskFieldsRequest)
	if err != nil {
		return err
	}

	t.StartDate = start
	t.Suspended = req.Suspended
	t.TaskFields = fields
	t.First, t.Second, t.Third, t.Fourth = req.First, req.Second, req.Third, req.Fourth
	t.Last, t.Every = req.Last, req.Every
	t.Monday, t.Tuesday, t.Wednesday = req.Monday, req.Tuesday, req.Wednesday
	t.Thursday, t.Friday, t.Saturday, t.Sunday = req.Thursday, req.Friday, req.Saturday, req.Sunday
	t.RepeatInterval = req.RepeatInterval
	t.MissedDateAction = req.MissedDateAction
	if t.MissedDateAction == "" {
		t.MissedDateAction = model.MissedLeave
	}
	t.EligibleClaimants = claimants
	t.EligibleTags = tags

	return t.Validate()
}

// taskFieldsFrom 模板与任务共享字段的请求转换
func taskFieldsFrom(req *dto.TaskFieldsRequest) (model.TaskFields, error) {
	estimate := decimal.Zero
	if req.WorkEstimate != "" {
		var err error
		estimate, err = decimal.NewFromString(req.WorkEstimate)
		if err != nil {
			return model.TaskFields{}, pkgerrors.Invalid("work_estimate", "工作量估计格式错误")
		}
	}
	priority := req.Priority
	if priority == "" {
		priority = model.PriorityMed
	}
	return model.TaskFields{
		OwnerID:         req.OwnerID,
		Instructions:    req.Instructions,
		ShortDesc:       req.ShortDesc,
		ReviewerID:      req.ReviewerID,
		WorkEstimate:    estimate,
		Priority:        priority,
		ShouldNag:       req.ShouldNag,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
	}, nil
}

// resolveEligibility 校验可认领成员与标签均存在
func resolveEligibility(ctx context.Context, repo *repository.Repository, req *dto.TaskFieldsRequest) ([]model.Member, []model.Tag, error) {
	claimants := make([]model.Member, 0, len(req.EligibleClaimantIDs))
	for _, id := range req.EligibleClaimantIDs {
		m, err := repo.Member.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, ErrMemberNotFound
			}
			return nil, nil, err
		}
		claimants = append(claimants, model.Member{MemberID: m.MemberID, Username: m.Username})
	}

	var tags []model.Tag
	if len(req.EligibleTagIDs) > 0 {
		var err error
		tags, err = repo.Tag.GetByIDs(ctx, req.EligibleTagIDs)
		if err != nil {
			return nil, nil, err
		}
		if len(tags) != len(req.EligibleTagIDs) {
			return nil, nil, ErrTagNotFound
		}
	}
	return claimants, tags, nil
}
