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
	"bzwops/internal/hook"
	"bzwops/internal/model"
	"bzwops/internal/repository"
	pkgerrors "bzwops/pkg/errors"
)

// ── 会员资格与到访模块业务错误 ──

var (
	ErrMembershipNotFound = errors.New("会员资格不存在")
)

// MembershipService 会员资格业务接口
type MembershipService interface {
	Create(ctx context.Context, req *dto.MembershipRequest, callerID string) (*model.Membership, error)
	GetByID(ctx context.Context, id string) (*model.Membership, error)
	ListByMember(ctx context.Context, memberID string) ([]model.Membership, error)
	Update(ctx context.Context, id string, req *dto.MembershipRequest, callerID string) (*model.Membership, error)
	Delete(ctx context.Context, id string) error
}

type membershipService struct {
	repo   *repository.Repository
	hooks  *hook.Dispatcher
	loc    *time.Location
	logger *zap.Logger
}

// NewMembershipService 创建 MembershipService 实例
func NewMembershipService(cfg *config.Config, repo *repository.Repository, hooks *hook.Dispatcher, logger *zap.Logger) MembershipService {
	return &membershipService{repo: repo, hooks: hooks, loc: cfg.Tasks.Location(), logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *membershipService) Create(ctx context.Context, req *dto.MembershipRequest, callerID string) (*model.Membership, error) {
	if _, err := s.repo.Member.GetByID(ctx, req.MemberID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		s.logger.Error("查询成员失败", zap.String("id", req.MemberID), zap.Error(err))
		return nil, err
	}

	m := &model.Membership{}
	if err := s.apply(m, req); err != nil {
		return nil, err
	}
	m.CreatedBy = &callerID
	m.UpdatedBy = &callerID

	if err := s.repo.Membership.Create(ctx, m); err != nil {
		s.logger.Error("创建会员资格失败", zap.Error(err))
		return nil, err
	}

	s.hooks.Fire(ctx, hook.MembershipSaved, m)
	return m, nil
}

// ────────────────────── GetByID ──────────────────────

func (s *membershipService) GetByID(ctx context.Context, id string) (*model.Membership, error) {
	m, err := s.repo.Membership.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		s.logger.Error("查询会员资格失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return m, nil
}

// ────────────────────── ListByMember ──────────────────────

func (s *membershipService) ListByMember(ctx context.Context, memberID string) ([]model.Membership, error) {
	list, err := s.repo.Membership.ListByMember(ctx, memberID)
	if err != nil {
		s.logger.Error("列出会员资格失败", zap.String("member_id", memberID), zap.Error(err))
		return nil, err
	}
	return list, nil
}

// ────────────────────── Update ──────────────────────

func (s *membershipService) Update(ctx context.Context, id string, req *dto.MembershipRequest, callerID string) (*model.Membership, error) {
	m, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(m, req); err != nil {
		return nil, err
	}
	m.UpdatedBy = &callerID

	if err := s.repo.Membership.Update(ctx, m); err != nil {
		s.logger.Error("更新会员资格失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	s.hooks.Fire(ctx, hook.MembershipSaved, m)
	return m, nil
}

// ────────────────────── Delete ──────────────────────

func (s *membershipService) Delete(ctx context.Context, id string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	// 以工换会籍的借记流水随会籍一并删除
	if err := s.repo.TimeAccount.DeleteByMembership(ctx, id); err != nil {
		s.logger.Error("删除会籍借记流水失败", zap.String("id", id), zap.Error(err))
		return err
	}
	if err := s.repo.Membership.Delete(ctx, id); err != nil {
		s.logger.Error("删除会员资格失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ── 内部辅助方法 ──

func (s *membershipService) apply(m *model.Membership, req *dto.MembershipRequest) error {
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
			return pkgerrors.Invalid("sale_price", "售价格式错误")
		}
	}

	m.MemberID = req.MemberID
	m.MembershipType = req.MembershipType
	m.StartDate = start
	m.EndDate = end
	m.SalePrice = price
	return m.Validate()
}

// ════════════════════════════════════════════════════════
// 到访记录
// ════════════════════════════════════════════════════════

// VisitService 到访业务接口
type VisitService interface {
	// Record 登记到访事件并触发签到相关通知
	Record(ctx context.Context, req *dto.VisitRequest) (*model.VisitEvent, error)
	List(ctx context.Context, req *dto.VisitListRequest) ([]model.VisitEvent, int64, error)
}

type visitService struct {
	repo   *repository.Repository
	hooks  *hook.Dispatcher
	now    func() time.Time
	logger *zap.Logger
}

// NewVisitService 创建 VisitService 实例
func NewVisitService(repo *repository.Repository, hooks *hook.Dispatcher, logger *zap.Logger) VisitService {
	return &visitService{repo: repo, hooks: hooks, now: time.Now, logger: logger}
}

func (s *visitService) Record(ctx context.Context, req *dto.VisitRequest) (*model.VisitEvent, error) {
	member, err := s.repo.Member.GetByID(ctx, req.MemberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		s.logger.Error("查询成员失败", zap.String("id", req.MemberID), zap.Error(err))
		return nil, err
	}

	when, err := parseInstant("when", req.When, s.now())
	if err != nil {
		return nil, err
	}

	v := &model.VisitEvent{
		MemberID:  member.MemberID,
		When:      when,
		EventType: req.EventType,
		Method:    req.Method,
	}
	if v.Method == "" {
		v.Method = "unknown"
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Visit.Create(ctx, v); err != nil {
		s.logger.Error("登记到访失败", zap.String("member_id", member.MemberID), zap.Error(err))
		return nil, err
	}

	v.Member = member
	s.hooks.Fire(ctx, hook.VisitSaved, v)
	return v, nil
}

func (s *visitService) List(ctx context.Context, req *dto.VisitListRequest) ([]model.VisitEvent, int64, error) {
	list, total, err := s.repo.Visit.List(ctx, req.MemberID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出到访记录失败", zap.Error(err))
		return nil, 0, err
	}
	return list, total, nil
}
