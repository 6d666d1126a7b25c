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

// ── 赞助模块业务错误 ──

var (
	ErrAgreementNotFound = errors.New("赞助协议不存在")
)

// UnderwritingService 电台赞助协议业务接口
type UnderwritingService interface {
	Create(ctx context.Context, req *dto.AgreementRequest, callerID string) (*model.UnderwritingAgreement, error)
	// GetByID 返回协议并统计已播出次数
	GetByID(ctx context.Context, id string) (*model.UnderwritingAgreement, error)
	List(ctx context.Context) ([]model.UnderwritingAgreement, error)
	Update(ctx context.Context, id string, req *dto.AgreementRequest, callerID string) (*model.UnderwritingAgreement, error)

	AddSchedule(ctx context.Context, agreementID string, req *dto.UnderwritingScheduleRequest, callerID string) (*model.UnderwritingSchedule, error)
	DeleteSchedule(ctx context.Context, id string) error
	ListBroadcasts(ctx context.Context, agreementID string) ([]model.UnderwritingBroadcast, error)
}

type underwritingService struct {
	repo   *repository.Repository
	loc    *time.Location
	logger *zap.Logger
}

// NewUnderwritingService 创建 UnderwritingService 实例
func NewUnderwritingService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) UnderwritingService {
	return &underwritingService{repo: repo, loc: cfg.Tasks.Location(), logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *underwritingService) Create(ctx context.Context, req *dto.AgreementRequest, callerID string) (*model.UnderwritingAgreement, error) {
	a := &model.UnderwritingAgreement{}
	if err := s.apply(a, req); err != nil {
		return nil, err
	}
	a.CreatedBy = &callerID
	a.UpdatedBy = &callerID

	if err := s.repo.Underwriting.CreateAgreement(ctx, a); err != nil {
		s.logger.Error("创建赞助协议失败", zap.String("sponsor", req.Sponsor), zap.Error(err))
		return nil, err
	}
	return a, nil
}

// ────────────────────── Query ──────────────────────

func (s *underwritingService) GetByID(ctx context.Context, id string) (*model.UnderwritingAgreement, error) {
	a, err := s.repo.Underwriting.GetAgreement(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAgreementNotFound
		}
		s.logger.Error("查询赞助协议失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	counts, err := s.repo.Underwriting.CountBroadcasts(ctx, []string{a.AgreementID})
	if err != nil {
		s.logger.Error("统计赞助播出次数失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	a.QtyAired = counts[a.AgreementID]
	return a, nil
}

func (s *underwritingService) List(ctx context.Context) ([]model.UnderwritingAgreement, error) {
	list, err := s.repo.Underwriting.ListAgreements(ctx)
	if err != nil {
		s.logger.Error("列出赞助协议失败", zap.Error(err))
		return nil, err
	}

	ids := make([]string, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.AgreementID)
	}
	counts, err := s.repo.Underwriting.CountBroadcasts(ctx, ids)
	if err != nil {
		s.logger.Error("统计赞助播出次数失败", zap.Error(err))
		return nil, err
	}
	for i := range list {
		list[i].QtyAired = counts[list[i].AgreementID]
	}
	return list, nil
}

// ────────────────────── Update ──────────────────────

func (s *underwritingService) Update(ctx context.Context, id string, req *dto.AgreementRequest, callerID string) (*model.UnderwritingAgreement, error) {
	a, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(a, req); err != nil {
		return nil, err
	}
	a.UpdatedBy = &callerID

	if err := s.repo.Underwriting.UpdateAgreement(ctx, a); err != nil {
		s.logger.Error("更新赞助协议失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return a, nil
}

func (s *underwritingService) apply(a *model.UnderwritingAgreement, req *dto.AgreementRequest) error {
	start, err := parseDate("start_date", req.StartDate, s.loc)
	if err != nil {
		return err
	}
	end, err := parseDate("end_date", req.EndDate, s.loc)
	if err != nil {
		return err
	}
	price := decimal.Zero
	if req.SalePrice != "" {
		price, err = decimal.NewFromString(req.SalePrice)
		if err != nil {
			return pkgerrors.Invalid("sale_price", "金额格式错误")
		}
	}

	a.Sponsor = req.Sponsor
	a.QtySold = req.QtySold
	a.SalePrice = price
	a.StartDate = start
	a.EndDate = end
	a.SpotsIncluded = req.SpotsIncluded
	a.SpotSeconds = req.SpotSeconds
	a.TrackID = req.TrackID
	a.Script = req.Script
	return a.Validate()
}

// ────────────────────── Schedule ──────────────────────

func (s *underwritingService) AddSchedule(ctx context.Context, agreementID string, req *dto.UnderwritingScheduleRequest, callerID string) (*model.UnderwritingSchedule, error) {
	if _, err := s.repo.Underwriting.GetAgreement(ctx, agreementID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAgreementNotFound
		}
		s.logger.Error("查询赞助协议失败", zap.String("id", agreementID), zap.Error(err))
		return nil, err
	}
	if _, err := recurrence.ParseClock(req.Time); err != nil {
		return nil, pkgerrors.Invalid("time", "时间格式应为 HH:MM")
	}
	if !req.Weekdays && !req.Weekend {
		return nil, pkgerrors.Invalid("weekdays", "至少选择工作日或周末")
	}

	sch := &model.UnderwritingSchedule{
		AgreementID: agreementID,
		Time:        req.Time,
		Weekdays:    req.Weekdays,
		Weekend:     req.Weekend,
	}
	sch.CreatedBy = &callerID
	sch.UpdatedBy = &callerID

	if err := s.repo.Underwriting.CreateSchedule(ctx, sch); err != nil {
		s.logger.Error("创建赞助播出时刻失败", zap.String("agreement_id", agreementID), zap.Error(err))
		return nil, err
	}
	return sch, nil
}

func (s *underwritingService) DeleteSchedule(ctx context.Context, id string) error {
	if err := s.repo.Underwriting.DeleteSchedule(ctx, id); err != nil {
		s.logger.Error("删除赞助播出时刻失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *underwritingService) ListBroadcasts(ctx context.Context, agreementID string) ([]model.UnderwritingBroadcast, error) {
	list, err := s.repo.Underwriting.ListBroadcasts(ctx, agreementID)
	if err != nil {
		s.logger.Error("列出赞助播出记录失败", zap.String("agreement_id", agreementID), zap.Error(err))
		return nil, err
	}
	return list, nil
}
