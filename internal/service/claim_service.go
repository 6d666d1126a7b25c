package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"bzwops/config"
	"bzwops/internal/dto"
	"bzwops/internal/hook"
	"bzwops/internal/model"
	"bzwops/internal/repository"
)

// ── 认领与工作记录业务错误 ──

var (
	ErrClaimNotFound       = errors.New("认领记录不存在")
	ErrNotEligible         = errors.New("该成员不在任务的可认领范围内")
	ErrReclaimAfterAbandon = errors.New("放弃过的任务不能再次认领")
	ErrWorkNotFound        = errors.New("工作记录不存在")
)

// ClaimService 任务认领业务接口
type ClaimService interface {
	Create(ctx context.Context, req *dto.ClaimRequest, callerID string) (*model.Claim, error)
	GetByID(ctx context.Context, id string) (*model.Claim, error)
	Update(ctx context.Context, id string, req *dto.UpdateClaimRequest, callerID string) (*model.Claim, error)
	ListByTask(ctx context.Context, taskID string) ([]model.Claim, error)
	ListByMember(ctx context.Context, memberID string) ([]model.Claim, error)
}

type claimService struct {
	repo   *repository.Repository
	hooks  *hook.Dispatcher
	loc    *time.Location
	logger *zap.Logger
}

// NewClaimService 创建 ClaimService 实例
func NewClaimService(cfg *config.Config, repo *repository.Repository, hooks *hook.Dispatcher, logger *zap.Logger) ClaimService {
	return &claimService{repo: repo, hooks: hooks, loc: cfg.Tasks.Location(), logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *claimService) Create(ctx context.Context, req *dto.ClaimRequest, callerID string) (*model.Claim, error) {
	memberID := req.MemberID
	if memberID == "" {
		memberID = callerID
	}

	task, err := s.repo.Task.GetByID(ctx, req.TaskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		s.logger.Error("查询任务失败", zap.String("id", req.TaskID), zap.Error(err))
		return nil, err
	}
	if task.IsClosed() {
		return nil, ErrTaskClosed
	}

	member, err := s.repo.Member.GetByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		s.logger.Error("查询成员失败", zap.String("id", memberID), zap.Error(err))
		return nil, err
	}
	if !task.IsEligible(member) {
		return nil, ErrNotEligible
	}

	abandoned, err := s.repo.Claim.HasStatus(ctx, task.TaskID, member.MemberID, model.ClaimAbandoned)
	if err != nil {
		s.logger.Error("查询认领历史失败", zap.String("task_id", task.TaskID), zap.Error(err))
		return nil, err
	}
	if abandoned {
		return nil, ErrReclaimAfterAbandon
	}

	c := &model.Claim{
		TaskID:                 task.TaskID,
		MemberID:               member.MemberID,
		ClaimedStartTime:       req.ClaimedStartTime,
		ClaimedDurationMinutes: req.ClaimedDurationMinutes,
		Status:                 req.Status,
	}
	if c.Status == "" {
		c.Status = model.ClaimCurrent
	}
	c.CreatedBy = &callerID
	c.UpdatedBy = &callerID
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Claim.Create(ctx, c); err != nil {
		s.logger.Error("创建认领失败", zap.String("task_id", task.TaskID), zap.Error(err))
		return nil, err
	}

	c.Task = task
	c.Member = member
	s.hooks.Fire(ctx, hook.ClaimSaved, c)
	return c, nil
}

// ────────────────────── GetByID ──────────────────────

func (s *claimService) GetByID(ctx context.Context, id string) (*model.Claim, error) {
	c, err := s.repo.Claim.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClaimNotFound
		}
		s.logger.Error("查询认领失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return c, nil
}

// ────────────────────── Update ──────────────────────

func (s *claimService) Update(ctx context.Context, id string, req *dto.UpdateClaimRequest, callerID string) (*model.Claim, error) {
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.Status = req.Status
	if req.DateVerified != nil {
		if c.DateVerified, err = parseOptionalDate("date_verified", req.DateVerified, s.loc); err != nil {
			return nil, err
		}
	}
	c.UpdatedBy = &callerID
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Claim.Update(ctx, c); err != nil {
		s.logger.Error("更新认领失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	s.hooks.Fire(ctx, hook.ClaimSaved, c)
	return c, nil
}

// ────────────────────── List ──────────────────────

func (s *claimService) ListByTask(ctx context.Context, taskID string) ([]model.Claim, error) {
	list, err := s.repo.Claim.ListByTask(ctx, taskID)
	if err != nil {
		s.logger.Error("列出任务认领失败", zap.String("task_id", taskID), zap.Error(err))
		return nil, err
	}
	return list, nil
}

func (s *claimService) ListByMember(ctx context.Context, memberID string) ([]model.Claim, error) {
	list, err := s.repo.Claim.ListByMember(ctx, memberID)
	if err != nil {
		s.logger.Error("列出成员认领失败", zap.String("member_id", memberID), zap.Error(err))
		return nil, err
	}
	return list, nil
}

// ════════════════════════════════════════════════════════
// 工作记录
// ════════════════════════════════════════════════════════

// WorkService 工作记录业务接口
type WorkService interface {
	Create(ctx context.Context, req *dto.WorkRequest, callerID string) (*model.Work, error)
	Update(ctx context.Context, id string, req *dto.UpdateWorkRequest, callerID string) (*model.Work, error)
	ListByClaim(ctx context.Context, claimID string) ([]model.Work, error)
}

type workService struct {
	repo   *repository.Repository
	hooks  *hook.Dispatcher
	loc    *time.Location
	logger *zap.Logger
}

// NewWorkService 创建 WorkService 实例
func NewWorkService(cfg *config.Config, repo *repository.Repository, hooks *hook.Dispatcher, logger *zap.Logger) WorkService {
	return &workService{repo: repo, hooks: hooks, loc: cfg.Tasks.Location(), logger: logger}
}

func (s *workService) Create(ctx context.Context, req *dto.WorkRequest, callerID string) (*model.Work, error) {
	claim, err := s.repo.Claim.GetByID(ctx, req.ClaimID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClaimNotFound
		}
		s.logger.Error("查询认领失败", zap.String("id", req.ClaimID), zap.Error(err))
		return nil, err
	}

	workDate, err := parseDate("work_date", req.WorkDate, s.loc)
	if err != nil {
		return nil, err
	}

	w := &model.Work{
		ClaimID:         claim.ClaimID,
		WitnessID:       req.WitnessID,
		WorkDate:        workDate,
		WorkStartTime:   req.WorkStartTime,
		DurationMinutes: req.DurationMinutes,
	}
	w.CreatedBy = &callerID
	w.UpdatedBy = &callerID
	if err := w.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Work.Create(ctx, w); err != nil {
		s.logger.Error("登记工作记录失败", zap.String("claim_id", claim.ClaimID), zap.Error(err))
		return nil, err
	}

	w.Claim = claim
	s.hooks.Fire(ctx, hook.WorkSaved, w)
	return w, nil
}

func (s *workService) Update(ctx context.Context, id string, req *dto.UpdateWorkRequest, callerID string) (*model.Work, error) {
	w, err := s.repo.Work.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkNotFound
		}
		s.logger.Error("查询工作记录失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	if req.WitnessID != nil {
		if *req.WitnessID == "" {
			w.WitnessID = nil
		} else {
			w.WitnessID = req.WitnessID
		}
	}
	if req.DurationMinutes != nil {
		w.DurationMinutes = *req.DurationMinutes
	}
	w.UpdatedBy = &callerID
	if err := w.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Work.Update(ctx, w); err != nil {
		s.logger.Error("更新工作记录失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	s.hooks.Fire(ctx, hook.WorkSaved, w)
	return w, nil
}

func (s *workService) ListByClaim(ctx context.Context, claimID string) ([]model.Work, error) {
	list, err := s.repo.Work.ListByClaim(ctx, claimID)
	if err != nil {
		s.logger.Error("列出工作记录失败", zap.String("claim_id", claimID), zap.Error(err))
		return nil, err
	}
	return list, nil
}
