package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"bzwops/internal/dto"
	"bzwops/internal/repository"
)

// TimeAccountService 志愿工时账户业务接口
type TimeAccountService interface {
	// GetByMember 成员的工时余额与流水
	GetByMember(ctx context.Context, memberID string) (*dto.TimeAccountResponse, error)
}

type timeAccountService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewTimeAccountService 创建 TimeAccountService 实例
func NewTimeAccountService(repo *repository.Repository, logger *zap.Logger) TimeAccountService {
	return &timeAccountService{repo: repo, logger: logger}
}

func (s *timeAccountService) GetByMember(ctx context.Context, memberID string) (*dto.TimeAccountResponse, error) {
	worker, err := s.repo.Worker.GetByMemberID(ctx, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkerNotFound
		}
		s.logger.Error("查询志愿者档案失败", zap.String("member_id", memberID), zap.Error(err))
		return nil, err
	}

	balance, err := s.repo.TimeAccount.Balance(ctx, worker.WorkerID)
	if err != nil {
		s.logger.Error("查询工时余额失败", zap.String("worker_id", worker.WorkerID), zap.Error(err))
		return nil, err
	}
	entries, err := s.repo.TimeAccount.ListByWorker(ctx, worker.WorkerID)
	if err != nil {
		s.logger.Error("查询工时流水失败", zap.String("worker_id", worker.WorkerID), zap.Error(err))
		return nil, err
	}

	resp := &dto.TimeAccountResponse{
		WorkerID: worker.WorkerID,
		MemberID: memberID,
		Balance:  balance.StringFixed(2),
		Entries:  make([]dto.TimeAccountEntry, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, dto.TimeAccountEntry{
			ID:          e.EntryID,
			When:        e.When.Format("2006-01-02 15:04"),
			Change:      e.Change.StringFixed(2),
			Explanation: e.Explanation,
		})
	}
	return resp, nil
}
