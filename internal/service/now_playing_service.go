package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"bzwops/config"
	"bzwops/internal/dto"
	"bzwops/internal/model"
	"bzwops/internal/repository"
	"bzwops/pkg/redis"
)

const (
	nowPlayingCacheKey = "kmkr:now_playing"

	// 时长未知的曲目在开播后按此时长视为仍在播放
	unknownTrackWindow = 10 * time.Minute
)

// NowPlayingService 正在播放查询接口
type NowPlayingService interface {
	// Info 当前节目与当前曲目，均可能为空
	Info(ctx context.Context) (*dto.NowPlayingInfo, error)
	// Text 单行文本，供网页与流媒体元数据使用
	Text(ctx context.Context) (string, error)
}

type nowPlayingService struct {
	repo   *repository.Repository
	cache  Cache
	ttl    time.Duration
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewNowPlayingService 创建 NowPlayingService 实例，cache 可为 nil
func NewNowPlayingService(cfg *config.Config, repo *repository.Repository, cache Cache, logger *zap.Logger) NowPlayingService {
	return &nowPlayingService{
		repo:   repo,
		cache:  cache,
		ttl:    cfg.Kmkr.NowPlayingCacheTTL,
		loc:    cfg.Tasks.Location(),
		now:    time.Now,
		logger: logger,
	}
}

func (s *nowPlayingService) Info(ctx context.Context) (*dto.NowPlayingInfo, error) {
	if info, ok := s.cached(ctx); ok {
		return info, nil
	}

	now := s.now().In(s.loc)
	info := &dto.NowPlayingInfo{}

	shows, err := s.repo.Show.List(ctx, true)
	if err != nil {
		s.logger.Error("列出节目失败", zap.Error(err))
		return nil, err
	}
	if show, st := currentShow(shows, now); show != nil {
		info.Show = toNowPlayingShow(show, st)
	}

	entry, err := s.repo.Library.LatestPlayLog(ctx, now)
	switch {
	case err == nil:
		artist, title, dur := playInfo(entry, s.logger)
		if !stillPlaying(entry.Start, dur, now) {
			break
		}
		info.Track = &dto.NowPlayingTrack{
			Title:    title,
			Artist:   artist,
			Start:    entry.Start.In(s.loc).Format(time.RFC3339),
			Duration: int(dur / time.Second),
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		s.logger.Error("查询最近播出日志失败", zap.Error(err))
		return nil, err
	}

	s.store(ctx, info)
	return info, nil
}

func (s *nowPlayingService) Text(ctx context.Context) (string, error) {
	info, err := s.Info(ctx)
	if err != nil {
		return "", err
	}
	return nowPlayingText(info), nil
}

// stillPlaying 曲目开播后未超过其时长；时长未知时使用 unknownTrackWindow
func stillPlaying(start time.Time, dur time.Duration, now time.Time) bool {
	if dur <= 0 {
		dur = unknownTrackWindow
	}
	return now.Before(start.Add(dur))
}

// ── 缓存 ──

func (s *nowPlayingService) cached(ctx context.Context) (*dto.NowPlayingInfo, bool) {
	if s.cache == nil || s.ttl <= 0 {
		return nil, false
	}
	b, err := s.cache.GetCache(ctx, nowPlayingCacheKey)
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			s.logger.Warn("读取正在播放缓存失败", zap.Error(err))
		}
		return nil, false
	}
	var info dto.NowPlayingInfo
	if err := json.Unmarshal(b, &info); err != nil {
		s.logger.Warn("正在播放缓存内容无效", zap.Error(err))
		return nil, false
	}
	return &info, true
}

func (s *nowPlayingService) store(ctx context.Context, info *dto.NowPlayingInfo) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	b, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := s.cache.SetCache(ctx, nowPlayingCacheKey, b, s.ttl); err != nil {
		s.logger.Warn("写入正在播放缓存失败", zap.Error(err))
	}
}

// ── 格式化 ──

func toNowPlayingShow(show *model.Show, st *model.ShowTime) *dto.NowPlayingShow {
	hosts := make([]string, 0, len(show.Hosts))
	for _, h := range show.Hosts {
		hosts = append(hosts, h.Moniker)
	}
	return &dto.NowPlayingShow{
		ID:               show.ShowID,
		Title:            show.Title,
		Description:      show.Description,
		Hosts:            hosts,
		StartTime:        st.StartTime,
		DurationMinutes:  show.DurationMinutes,
		ProductionMethod: st.ProductionMethod,
	}
}

// nowPlayingText 优先显示曲目，其次节目名
func nowPlayingText(info *dto.NowPlayingInfo) string {
	switch {
	case info.Track != nil && info.Track.Artist != "":
		return fmt.Sprintf("%s by %s", info.Track.Title, info.Track.Artist)
	case info.Track != nil:
		return info.Track.Title
	case info.Show != nil:
		return info.Show.Title
	default:
		return ""
	}
}
