package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"bzwops/config"
	"bzwops/internal/dto"
	"bzwops/internal/hook"
	"bzwops/internal/model"
	"bzwops/internal/repository"
)

// ── 成员模块业务错误 ──

var (
	ErrMemberNotFound = errors.New("成员不存在")
	ErrUsernameTaken  = errors.New("用户名已被使用")
	ErrTagNotFound    = errors.New("标签不存在")
	ErrWorkerNotFound = errors.New("志愿者档案不存在")

	ErrFamilyAnchorChained = errors.New("家庭锚点不能再关联其他锚点")
)

// MemberService 成员业务接口
type MemberService interface {
	Create(ctx context.Context, req *dto.CreateMemberRequest, callerID string) (*dto.MemberResponse, error)
	GetByID(ctx context.Context, id string) (*dto.MemberResponse, error)
	List(ctx context.Context, req *dto.PaginationRequest) ([]dto.MemberResponse, int64, error)
	Update(ctx context.Context, id string, req *dto.UpdateMemberRequest, callerID string) (*dto.MemberResponse, error)
	Delete(ctx context.Context, id, callerID string) error

	CreateTag(ctx context.Context, req *dto.CreateTagRequest, callerID string) (*model.Tag, error)
	ListTags(ctx context.Context) ([]model.Tag, error)

	GetWorker(ctx context.Context, memberID string) (*model.Worker, error)
	UpdateWorker(ctx context.Context, memberID string, req *dto.UpdateWorkerRequest, callerID string) (*model.Worker, error)
}

type memberService struct {
	repo   *repository.Repository
	hooks  *hook.Dispatcher
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewMemberService 创建 MemberService 实例
func NewMemberService(cfg *config.Config, repo *repository.Repository, hooks *hook.Dispatcher, logger *zap.Logger) MemberService {
	return &memberService{
		repo:   repo,
		hooks:  hooks,
		loc:    cfg.Tasks.Location(),
		now:    time.Now,
		logger: logger,
	}
}

// ────────────────────── Create ──────────────────────

func (s *memberService) Create(ctx context.Context, req *dto.CreateMemberRequest, callerID string) (*dto.MemberResponse, error) {
	if _, err := s.repo.Member.GetByUsername(ctx, req.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询用户名失败", zap.String("username", req.Username), zap.Error(err))
		return nil, err
	}

	member := &model.Member{
		Username:       req.Username,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Role:           req.Role,
		FamilyAnchorID: req.FamilyAnchorID,
	}
	if member.Role == "" {
		member.Role = model.RoleMember
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			s.logger.Error("密码哈希失败", zap.Error(err))
			return nil, err
		}
		member.PasswordHash = string(hash)
	}
	member.CreatedBy = &callerID
	member.UpdatedBy = &callerID

	if err := s.checkAnchor(ctx, member.FamilyAnchorID); err != nil {
		return nil, err
	}
	if err := member.Validate(0); err != nil {
		return nil, err
	}

	if err := s.repo.Member.Create(ctx, member); err != nil {
		s.logger.Error("创建成员失败", zap.Error(err))
		return nil, err
	}

	if len(req.TagIDs) > 0 {
		if err := s.replaceTags(ctx, member, req.TagIDs); err != nil {
			return nil, err
		}
	}

	s.hooks.Fire(ctx, hook.MemberCreated, member)

	return toMemberResponse(member), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *memberService) GetByID(ctx context.Context, id string) (*dto.MemberResponse, error) {
	member, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := toMemberResponse(member)
	paid, err := isCurrentlyPaid(ctx, s.repo, member, dayIn(s.now().In(s.loc), s.loc))
	if err != nil {
		s.logger.Error("查询会员资格失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	resp.IsCurrentlyPaid = &paid
	return resp, nil
}

// ────────────────────── List ──────────────────────

func (s *memberService) List(ctx context.Context, req *dto.PaginationRequest) ([]dto.MemberResponse, int64, error) {
	members, total, err := s.repo.Member.List(ctx, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出成员失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.MemberResponse, 0, len(members))
	for i := range members {
		result = append(result, *toMemberResponse(&members[i]))
	}
	return result, total, nil
}

// ────────────────────── Update ──────────────────────

func (s *memberService) Update(ctx context.Context, id string, req *dto.UpdateMemberRequest, callerID string) (*dto.MemberResponse, error) {
	member, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		member.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		member.LastName = *req.LastName
	}
	if req.Email != nil {
		member.Email = *req.Email
	}
	if req.Role != nil {
		member.Role = *req.Role
	}
	if req.FamilyAnchorID != nil {
		if *req.FamilyAnchorID == "" {
			member.FamilyAnchorID = nil
		} else {
			member.FamilyAnchorID = req.FamilyAnchorID
			member.FamilyAnchor = nil
		}
	}
	member.UpdatedBy = &callerID

	if err := s.checkAnchor(ctx, member.FamilyAnchorID); err != nil {
		return nil, err
	}
	dependents, err := s.repo.Member.CountFamilyMembers(ctx, member.MemberID)
	if err != nil {
		s.logger.Error("统计家庭成员失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if err := member.Validate(dependents); err != nil {
		return nil, err
	}

	if err := s.repo.Member.Update(ctx, member); err != nil {
		s.logger.Error("更新成员失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	if req.TagIDs != nil {
		if err := s.replaceTags(ctx, member, req.TagIDs); err != nil {
			return nil, err
		}
	}

	return toMemberResponse(member), nil
}

// ────────────────────── Delete ──────────────────────

func (s *memberService) Delete(ctx context.Context, id, callerID string) error {
	if _, err := s.get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Member.Delete(ctx, id, callerID); err != nil {
		s.logger.Error("删除成员失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── Tags ──────────────────────

func (s *memberService) CreateTag(ctx context.Context, req *dto.CreateTagRequest, callerID string) (*model.Tag, error) {
	tag := &model.Tag{Name: req.Name, Meaning: req.Meaning}
	tag.CreatedBy = &callerID
	tag.UpdatedBy = &callerID

	if err := s.repo.Tag.Create(ctx, tag); err != nil {
		s.logger.Error("创建标签失败", zap.Error(err))
		return nil, err
	}
	return tag, nil
}

func (s *memberService) ListTags(ctx context.Context) ([]model.Tag, error) {
	tags, err := s.repo.Tag.List(ctx)
	if err != nil {
		s.logger.Error("列出标签失败", zap.Error(err))
		return nil, err
	}
	return tags, nil
}

// ────────────────────── Worker ──────────────────────

func (s *memberService) GetWorker(ctx context.Context, memberID string) (*model.Worker, error) {
	worker, err := s.repo.Worker.GetByMemberID(ctx, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkerNotFound
		}
		s.logger.Error("查询志愿者档案失败", zap.String("member_id", memberID), zap.Error(err))
		return nil, err
	}
	return worker, nil
}

func (s *memberService) UpdateWorker(ctx context.Context, memberID string, req *dto.UpdateWorkerRequest, callerID string) (*model.Worker, error) {
	worker, err := s.GetWorker(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if req.ShouldIncludeAlarms != nil {
		worker.ShouldIncludeAlarms = *req.ShouldIncludeAlarms
	}
	if req.ShouldNag != nil {
		worker.ShouldNag = *req.ShouldNag
	}
	worker.UpdatedBy = &callerID

	if err := s.repo.Worker.Update(ctx, worker); err != nil {
		s.logger.Error("更新志愿者档案失败", zap.String("member_id", memberID), zap.Error(err))
		return nil, err
	}
	return worker, nil
}

// ── 内部辅助方法 ──

func (s *memberService) get(ctx context.Context, id string) (*model.Member, error) {
	member, err := s.repo.Member.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		s.logger.Error("查询成员失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return member, nil
}

// checkAnchor 家庭锚点必须存在，且自身不能再指向其他锚点
func (s *memberService) checkAnchor(ctx context.Context, anchorID *string) error {
	if anchorID == nil {
		return nil
	}
	anchor, err := s.get(ctx, *anchorID)
	if err != nil {
		return err
	}
	if anchor.FamilyAnchorID != nil {
		return ErrFamilyAnchorChained
	}
	return nil
}

func (s *memberService) replaceTags(ctx context.Context, member *model.Member, tagIDs []string) error {
	tags, err := s.repo.Tag.GetByIDs(ctx, tagIDs)
	if err != nil {
		s.logger.Error("查询标签失败", zap.Error(err))
		return err
	}
	if len(tags) != len(tagIDs) {
		return ErrTagNotFound
	}
	if err := s.repo.Member.ReplaceTags(ctx, member, tags); err != nil {
		s.logger.Error("更新成员标签失败", zap.String("id", member.MemberID), zap.Error(err))
		return err
	}
	member.Tags = tags
	return nil
}

// isCurrentlyPaid 成员本人或其家庭锚点持有覆盖 day 的会员资格
func isCurrentlyPaid(ctx context.Context, repo *repository.Repository, member *model.Member, day time.Time) (bool, error) {
	ids := []string{member.MemberID}
	if member.FamilyAnchorID != nil {
		ids = append(ids, *member.FamilyAnchorID)
	}
	n, err := repo.Membership.CountCovering(ctx, ids, day)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func toMemberResponse(m *model.Member) *dto.MemberResponse {
	tags := make([]dto.TagResponse, 0, len(m.Tags))
	for _, t := range m.Tags {
		tags = append(tags, dto.TagResponse{ID: t.TagID, Name: t.Name})
	}
	return &dto.MemberResponse{
		ID:             m.MemberID,
		Username:       m.Username,
		FirstName:      m.FirstName,
		LastName:       m.LastName,
		FriendlyName:   m.FriendlyName(),
		Email:          m.Email,
		Role:           m.Role,
		FamilyAnchorID: m.FamilyAnchorID,
		Tags:           tags,
	}
}
