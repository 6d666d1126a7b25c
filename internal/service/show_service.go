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
)

// ── 节目模块业务错误 ──

var (
	ErrShowNotFound = errors.New("节目不存在")
)

// ShowService 节目与主持人业务接口
type ShowService interface {
	Create(ctx context.Context, req *dto.ShowRequest, callerID string) (*model.Show, error)
	GetByID(ctx context.Context, id string) (*model.Show, error)
	List(ctx context.Context, activeOnly bool) ([]model.Show, error)
	Update(ctx context.Context, id string, req *dto.ShowRequest, callerID string) (*model.Show, error)
	Delete(ctx context.Context, id string) error

	AddShowTime(ctx context.Context, showID string, req *dto.ShowTimeRequest, callerID string) (*model.ShowTime, error)
	DeleteShowTime(ctx context.Context, id string) error

	CreatePersonality(ctx context.Context, req *dto.PersonalityRequest, callerID string) (*model.OnAirPersonality, error)
	ListPersonalities(ctx context.Context) ([]model.OnAirPersonality, error)

	// Current 当前正在播出的节目及时段，无节目时返回 nil
	Current(ctx context.Context) (*model.Show, *model.ShowTime, error)
}

type showService struct {
	repo   *repository.Repository
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewShowService 创建 ShowService 实例
func NewShowService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) ShowService {
	return &showService{repo: repo, loc: cfg.Tasks.Location(), now: time.Now, logger: logger}
}

// ────────────────────── Show CRUD ──────────────────────

func (s *showService) Create(ctx context.Context, req *dto.ShowRequest, callerID string) (*model.Show, error) {
	show := &model.Show{Active: true}
	applyShow(show, req)
	show.CreatedBy = &callerID
	show.UpdatedBy = &callerID
	if err := show.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Show.Create(ctx, show); err != nil {
		s.logger.Error("创建节目失败", zap.Error(err))
		return nil, err
	}
	return show, nil
}

func (s *showService) GetByID(ctx context.Context, id string) (*model.Show, error) {
	show, err := s.repo.Show.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShowNotFound
		}
		s.logger.Error("查询节目失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return show, nil
}

func (s *showService) List(ctx context.Context, activeOnly bool) ([]model.Show, error) {
	shows, err := s.repo.Show.List(ctx, activeOnly)
	if err != nil {
		s.logger.Error("列出节目失败", zap.Error(err))
		return nil, err
	}
	return shows, nil
}

func (s *showService) Update(ctx context.Context, id string, req *dto.ShowRequest, callerID string) (*model.Show, error) {
	show, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	applyShow(show, req)
	show.UpdatedBy = &callerID
	if err := show.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Show.Update(ctx, show); err != nil {
		s.logger.Error("更新节目失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return show, nil
}

func (s *showService) Delete(ctx context.Context, id string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Show.Delete(ctx, id); err != nil {
		s.logger.Error("删除节目失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

func applyShow(show *model.Show, req *dto.ShowRequest) {
	show.Title = req.Title
	show.Description = req.Description
	show.DurationMinutes = req.DurationMinutes
	if req.Active != nil {
		show.Active = *req.Active
	}
	if req.HostIDs != nil {
		show.Hosts = make([]model.OnAirPersonality, 0, len(req.HostIDs))
		for _, id := range req.HostIDs {
			show.Hosts = append(show.Hosts, model.OnAirPersonality{PersonalityID: id})
		}
	}
}

// ────────────────────── ShowTime ──────────────────────

func (s *showService) AddShowTime(ctx context.Context, showID string, req *dto.ShowTimeRequest, callerID string) (*model.ShowTime, error) {
	if _, err := s.GetByID(ctx, showID); err != nil {
		return nil, err
	}

	st := &model.ShowTime{
		ShowID:           showID,
		StartTime:        req.StartTime,
		First:            req.First,
		Second:           req.Second,
		Third:            req.Third,
		Fourth:           req.Fourth,
		Every:            true,
		Sundays:          req.Sundays,
		Mondays:          req.Mondays,
		Tuesdays:         req.Tuesdays,
		Wednesdays:       req.Wednesdays,
		Thursdays:        req.Thursdays,
		Fridays:          req.Fridays,
		Saturdays:        req.Saturdays,
		ProductionMethod: req.ProductionMethod,
	}
	if req.Every != nil {
		st.Every = *req.Every
	}
	st.CreatedBy = &callerID
	st.UpdatedBy = &callerID
	if err := st.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Show.CreateShowTime(ctx, st); err != nil {
		s.logger.Error("创建节目时段失败", zap.String("show_id", showID), zap.Error(err))
		return nil, err
	}
	return st, nil
}

func (s *showService) DeleteShowTime(ctx context.Context, id string) error {
	if err := s.repo.Show.DeleteShowTime(ctx, id); err != nil {
		s.logger.Error("删除节目时段失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── Personality ──────────────────────

func (s *showService) CreatePersonality(ctx context.Context, req *dto.PersonalityRequest, callerID string) (*model.OnAirPersonality, error) {
	if _, err := s.repo.Member.GetByID(ctx, req.MemberID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		s.logger.Error("查询成员失败", zap.String("id", req.MemberID), zap.Error(err))
		return nil, err
	}

	p := &model.OnAirPersonality{
		MemberID: req.MemberID,
		Moniker:  req.Moniker,
		Bio:      req.Bio,
		Active:   true,
	}
	p.CreatedBy = &callerID
	p.UpdatedBy = &callerID

	if err := s.repo.Show.CreatePersonality(ctx, p); err != nil {
		s.logger.Error("创建主持人失败", zap.Error(err))
		return nil, err
	}
	return p, nil
}

func (s *showService) ListPersonalities(ctx context.Context) ([]model.OnAirPersonality, error) {
	list, err := s.repo.Show.ListPersonalities(ctx)
	if err != nil {
		s.logger.Error("列出主持人失败", zap.Error(err))
		return nil, err
	}
	return list, nil
}

// ────────────────────── Current ──────────────────────

func (s *showService) Current(ctx context.Context) (*model.Show, *model.ShowTime, error) {
	shows, err := s.repo.Show.List(ctx, true)
	if err != nil {
		s.logger.Error("列出节目失败", zap.Error(err))
		return nil, nil, err
	}
	show, st := currentShow(shows, s.now().In(s.loc))
	return show, st, nil
}

// currentShow 返回 t 时刻正在播出的节目
func currentShow(shows []model.Show, t time.Time) (*model.Show, *model.ShowTime) {
	for i := range shows {
		if st := shows[i].CurrentShowTime(t); st != nil {
			return &shows[i], st
		}
	}
	return nil, nil
}
