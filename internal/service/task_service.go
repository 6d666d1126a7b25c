package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"bzwops/config"
	"bzwops/internal/dto"
	"bzwops/internal/model"
	"bzwops/internal/repository"
	pkgerrors "bzwops/pkg/errors"
)

// ── 任务模块业务错误 ──

var (
	ErrTaskNotFound = errors.New("任务不存在")
	ErrTaskClosed   = errors.New("任务已完成")
)

// TaskService 任务业务接口
type TaskService interface {
	Create(ctx context.Context, req *dto.TaskRequest, callerID string) (*model.Task, error)
	GetByID(ctx context.Context, id string) (*model.Task, error)
	List(ctx context.Context, req *dto.TaskListRequest) ([]model.Task, int64, error)
	Update(ctx context.Context, id string, req *dto.UpdateTaskRequest, callerID string) (*model.Task, error)
	Delete(ctx context.Context, id, callerID string) error
	// MarkDone 标记工作完成；存在审核人时进入待审核
	MarkDone(ctx context.Context, id, callerID string) (*model.Task, error)

	AddNote(ctx context.Context, taskID string, req *dto.TaskNoteRequest, authorID string) (*model.TaskNote, error)
	ListNotes(ctx context.Context, taskID string) ([]model.TaskNote, error)
}

type taskService struct {
	repo   *repository.Repository
	loc    *time.Location
	logger *zap.Logger
}

// NewTaskService 创建 TaskService 实例
func NewTaskService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) TaskService {
	return &taskService{repo: repo, loc: cfg.Tasks.Location(), logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *taskService) Create(ctx context.Context, req *dto.TaskRequest, callerID string) (*model.Task, error) {
	fields, err := taskFieldsFrom(&req.TaskFieldsRequest)
	if err != nil {
		return nil, err
	}
	scheduled, err := parseOptionalDate("scheduled_date", req.ScheduledDate, s.loc)
	if err != nil {
		return nil, err
	}
	deadline, err := parseOptionalDate("deadline", req.Deadline, s.loc)
	if err != nil {
		return nil, err
	}
	claimants, tags, err := resolveEligibility(ctx, s.repo, &req.TaskFieldsRequest)
	if err != nil {
		return nil, err
	}

	t := &model.Task{
		ScheduledDate:     scheduled,
		Deadline:          deadline,
		Status:            model.TaskActive,
		TaskFields:        fields,
		EligibleClaimants: claimants,
		EligibleTags:      tags,
	}
	t.Version = 1
	t.CreatedBy = &callerID
	t.UpdatedBy = &callerID

	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Task.Create(ctx, t); err != nil {
		s.logger.Error("创建任务失败", zap.Error(err))
		return nil, err
	}
	return t, nil
}

// ────────────────────── GetByID ──────────────────────

func (s *taskService) GetByID(ctx context.Context, id string) (*model.Task, error) {
	t, err := s.repo.Task.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		s.logger.Error("查询任务失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return t, nil
}

// ────────────────────── List ──────────────────────

func (s *taskService) List(ctx context.Context, req *dto.TaskListRequest) ([]model.Task, int64, error) {
	filter := repository.TaskFilter{Status: req.Status, TemplateID: req.TemplateID}
	if req.From != "" {
		from, err := parseDate("from", req.From, s.loc)
		if err != nil {
			return nil, 0, err
		}
		filter.From = &from
	}
	if req.To != "" {
		to, err := parseDate("to", req.To, s.loc)
		if err != nil {
			return nil, 0, err
		}
		filter.To = &to
	}

	list, total, err := s.repo.Task.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出任务失败", zap.Error(err))
		return nil, 0, err
	}
	return list, total, nil
}

// ────────────────────── Update ──────────────────────

func (s *taskService) Update(ctx context.Context, id string, req *dto.UpdateTaskRequest, callerID string) (*model.Task, error) {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Version != req.Version {
		return nil, pkgerrors.ErrOptimisticLock
	}

	if req.Status != nil {
		t.Status = *req.Status
	}
	if req.WorkDone != nil {
		t.WorkDone = *req.WorkDone
	}
	if req.WorkAccepted != nil {
		t.WorkAccepted = req.WorkAccepted
	}
	if req.ScheduledDate != nil {
		if t.ScheduledDate, err = parseOptionalDate("scheduled_date", req.ScheduledDate, s.loc); err != nil {
			return nil, err
		}
	}
	if req.Deadline != nil {
		if t.Deadline, err = parseOptionalDate("deadline", req.Deadline, s.loc); err != nil {
			return nil, err
		}
	}
	if req.Instructions != nil {
		t.Instructions = *req.Instructions
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.ShouldNag != nil {
		t.ShouldNag = *req.ShouldNag
	}
	t.UpdatedBy = &callerID

	if err := s.save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ────────────────────── Delete ──────────────────────

func (s *taskService) Delete(ctx context.Context, id, callerID string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Task.Delete(ctx, id, callerID); err != nil {
		s.logger.Error("删除任务失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── MarkDone ──────────────────────

func (s *taskService) MarkDone(ctx context.Context, id, callerID string) (*model.Task, error) {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := markTaskDone(ctx, s.repo, t, callerID); err != nil {
		if !errors.Is(err, ErrTaskClosed) && !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("标记任务完成失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}
	return t, nil
}

// ────────────────────── Notes ──────────────────────

func (s *taskService) AddNote(ctx context.Context, taskID string, req *dto.TaskNoteRequest, authorID string) (*model.TaskNote, error) {
	if _, err := s.GetByID(ctx, taskID); err != nil {
		return nil, err
	}
	note := &model.TaskNote{TaskID: taskID, AuthorID: &authorID, Content: req.Content}
	note.CreatedBy = &authorID
	note.UpdatedBy = &authorID

	if err := s.repo.TaskNote.Create(ctx, note); err != nil {
		s.logger.Error("添加任务备注失败", zap.String("task_id", taskID), zap.Error(err))
		return nil, err
	}
	return note, nil
}

func (s *taskService) ListNotes(ctx context.Context, taskID string) ([]model.TaskNote, error) {
	notes, err := s.repo.TaskNote.ListByTask(ctx, taskID)
	if err != nil {
		s.logger.Error("列出任务备注失败", zap.String("task_id", taskID), zap.Error(err))
		return nil, err
	}
	return notes, nil
}

// ── 内部辅助方法 ──

func (s *taskService) save(ctx context.Context, t *model.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := s.repo.Task.Update(ctx, t); err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("更新任务失败", zap.String("id", t.TaskID), zap.Error(err))
		}
		return err
	}
	return nil
}

// markTaskDone 供任务接口与提醒链接共用
func markTaskDone(ctx context.Context, repo *repository.Repository, t *model.Task, callerID string) error {
	if t.WorkDone {
		return ErrTaskClosed
	}
	t.WorkDone = true
	if t.ReviewerID == nil {
		t.Status = model.TaskDone
	} else {
		t.Status = model.TaskReviewable
	}
	if callerID != "" {
		t.UpdatedBy = &callerID
	}
	if err := t.Validate(); err != nil {
		return err
	}
	return repo.Task.Update(ctx, t)
}
