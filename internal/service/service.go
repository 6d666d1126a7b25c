package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bzwops/config"
	"bzwops/internal/hook"
	"bzwops/internal/notify"
	"bzwops/internal/repository"
	pkgerrors "bzwops/pkg/errors"
	"bzwops/pkg/jwt"
	"bzwops/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth         AuthService
	Member       MemberService
	Membership   MembershipService
	Visit        VisitService
	Template     TemplateService
	Task         TaskService
	Claim        ClaimService
	Work         WorkService
	TimeAccount  TimeAccountService
	Nag          NagService
	Notification NotificationService
	Show         ShowService
	Library      LibraryService
	Underwriting UnderwritingService
	NowPlaying   NowPlayingService
	Calendar     CalendarService
	Export       ExportService
}

// TokenStore Token 黑名单，由 pkg/redis.Client 实现
type TokenStore interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// Cache 短期缓存，由 pkg/redis.Client 实现
type Cache interface {
	GetCache(ctx context.Context, key string) ([]byte, error)
	SetCache(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NewService 创建 Service 聚合，并把保存后副作用注册到 hooks
//
// rdb 可为 nil：此时注销不写黑名单，正在播放不走缓存。
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	notifier notify.Notifier,
	hooks *hook.Dispatcher,
	logger *zap.Logger,
) *Service {
	var (
		tokens TokenStore
		cache  Cache
	)
	if rdb != nil {
		tokens = rdb
		cache = rdb
	}

	RegisterHooks(hooks, cfg, repo, notifier, logger)

	return &Service{
		Auth:         NewAuthService(repo, jwtMgr, tokens, logger),
		Member:       NewMemberService(cfg, repo, hooks, logger),
		Membership:   NewMembershipService(cfg, repo, hooks, logger),
		Visit:        NewVisitService(repo, hooks, logger),
		Template:     NewTemplateService(cfg, repo, logger),
		Task:         NewTaskService(cfg, repo, logger),
		Claim:        NewClaimService(cfg, repo, hooks, logger),
		Work:         NewWorkService(cfg, repo, hooks, logger),
		TimeAccount:  NewTimeAccountService(repo, logger),
		Nag:          NewNagService(repo, logger),
		Notification: NewNotificationService(repo, logger),
		Show:         NewShowService(cfg, repo, logger),
		Library:      NewLibraryService(cfg, repo, hooks, logger),
		Underwriting: NewUnderwritingService(cfg, repo, logger),
		NowPlaying:   NewNowPlayingService(cfg, repo, cache, logger),
		Calendar:     NewCalendarService(cfg, repo, logger),
		Export:       NewExportService(cfg, repo, logger),
	}
}

// ── 内部辅助方法 ──

const dateLayout = "2006-01-02"

// parseDate 按 loc 解析 "2006-01-02"，失败时返回字段级校验错误
func parseDate(field, s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, pkgerrors.Invalid(field, "日期格式应为 YYYY-MM-DD")
	}
	return d, nil
}

// parseOptionalDate nil 或空串返回 nil
func parseOptionalDate(field string, s *string, loc *time.Location) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := parseDate(field, *s, loc)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// parseInstant 解析 RFC3339 时间，空串取 now
func parseInstant(field, s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, pkgerrors.Invalid(field, "时间格式应为 RFC3339")
	}
	return t, nil
}

// dayIn 把日期列读出的日历日重新放到 loc 的零点
func dayIn(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func strPtr(s string) *string { return &s }
