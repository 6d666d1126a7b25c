package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"bzwops/internal/dto"
	"bzwops/internal/model"
	"bzwops/internal/repository"
)

// ── 提醒与通知模块业务错误 ──

var (
	ErrNagNotFound         = errors.New("提醒链接无效")
	ErrNagTaskMismatch     = errors.New("提醒链接与任务不匹配")
	ErrNotificationMissing = errors.New("通知不存在")
)

// NagService 维护提醒业务接口
type NagService interface {
	// CompleteTask 通过提醒链接中的令牌标记任务完成
	CompleteTask(ctx context.Context, token, taskID string) (*model.Task, error)
}

type nagService struct {
	repo   *repository.Repository
	now    func() time.Time
	logger *zap.Logger
}

// NewNagService 创建 NagService 实例
func NewNagService(repo *repository.Repository, logger *zap.Logger) NagService {
	return &nagService{repo: repo, now: time.Now, logger: logger}
}

func (s *nagService) CompleteTask(ctx context.Context, token, taskID string) (*model.Task, error) {
	nag, err := s.repo.Nag.GetByTokenMD5(ctx, tokenDigest(token))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNagNotFound
		}
		s.logger.Error("查询提醒失败", zap.Error(err))
		return nil, err
	}

	found := false
	for _, t := range nag.Tasks {
		if t.TaskID == taskID {
			found = true
			break
		}
	}
	if !found {
		return nil, ErrNagTaskMismatch
	}

	task, err := s.repo.Task.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		s.logger.Error("查询任务失败", zap.String("id", taskID), zap.Error(err))
		return nil, err
	}

	// 重复点击链接时保持幂等
	if !task.WorkDone {
		if err := markTaskDone(ctx, s.repo, task, nag.MemberID); err != nil {
			s.logger.Error("通过提醒标记任务完成失败", zap.String("task_id", taskID), zap.Error(err))
			return nil, err
		}
	}

	if nag.ActedAt == nil {
		if err := s.repo.Nag.MarkActed(ctx, nag.NagID, s.now()); err != nil {
			s.logger.Error("记录提醒处理时间失败", zap.String("nag_id", nag.NagID), zap.Error(err))
			return nil, err
		}
	}

	s.logger.Info("成员通过提醒完成任务",
		zap.String("member_id", nag.MemberID),
		zap.String("task_id", taskID),
	)
	return task, nil
}

// ════════════════════════════════════════════════════════
// 站内通知
// ════════════════════════════════════════════════════════

// NotificationService 站内通知业务接口
type NotificationService interface {
	List(ctx context.Context, memberID string, req *dto.NotificationListRequest) ([]model.Notification, int64, error)
	MarkRead(ctx context.Context, id, memberID string) error
	MarkAllRead(ctx context.Context, memberID string) error
}

type notificationService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(repo *repository.Repository, logger *zap.Logger) NotificationService {
	return &notificationService{repo: repo, logger: logger}
}

func (s *notificationService) List(ctx context.Context, memberID string, req *dto.NotificationListRequest) ([]model.Notification, int64, error) {
	list, total, err := s.repo.Notification.ListByMember(ctx, memberID, req.UnreadOnly, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出通知失败", zap.String("member_id", memberID), zap.Error(err))
		return nil, 0, err
	}
	return list, total, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, memberID string) error {
	if err := s.repo.Notification.MarkRead(ctx, id, memberID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationMissing
		}
		s.logger.Error("标记通知已读失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, memberID string) error {
	if err := s.repo.Notification.MarkAllRead(ctx, memberID); err != nil {
		s.logger.Error("全部标记已读失败", zap.String("member_id", memberID), zap.Error(err))
		return err
	}
	return nil
}
