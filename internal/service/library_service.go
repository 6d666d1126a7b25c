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

// ── 曲库与播出日志业务错误 ──

var (
	ErrTrackNotFound        = errors.New("曲目不存在")
	ErrEpisodeTrackNotFound = errors.New("单集曲目不存在")
	ErrPlayLogNotFound      = errors.New("播出日志不存在")
)

// LibraryService 曲库、单集与播出日志业务接口
type LibraryService interface {
	CreateTrack(ctx context.Context, req *dto.TrackRequest, callerID string) (*model.Track, error)
	ListTracks(ctx context.Context, req *dto.PaginationRequest) ([]model.Track, int64, error)

	CreateEpisode(ctx context.Context, req *dto.EpisodeRequest, callerID string) (*model.Episode, error)
	ListEpisodes(ctx context.Context, showID string) ([]model.Episode, error)
	AddEpisodeTrack(ctx context.Context, episodeID string, req *dto.EpisodeTrackRequest, callerID string) (*model.EpisodeTrack, error)
	AddBroadcast(ctx context.Context, episodeID string, req *dto.BroadcastRequest, callerID string) (*model.Broadcast, error)
	ListBroadcasts(ctx context.Context, episodeID string) ([]model.Broadcast, error)

	// LogPlay 登记播出日志并触发赞助播出匹配
	LogPlay(ctx context.Context, req *dto.PlayLogRequest) (*model.PlayLogEntry, error)
	ListPlayLog(ctx context.Context, req *dto.PlayLogListRequest) ([]model.PlayLogEntry, error)
	Rate(ctx context.Context, playLogID, memberID string, req *dto.RatingRequest) (*model.Rating, error)
}

type libraryService struct {
	repo   *repository.Repository
	hooks  *hook.Dispatcher
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewLibraryService 创建 LibraryService 实例
func NewLibraryService(cfg *config.Config, repo *repository.Repository, hooks *hook.Dispatcher, logger *zap.Logger) LibraryService {
	return &libraryService{repo: repo, hooks: hooks, loc: cfg.Tasks.Location(), now: time.Now, logger: logger}
}

// ────────────────────── Track ──────────────────────

func (s *libraryService) CreateTrack(ctx context.Context, req *dto.TrackRequest, callerID string) (*model.Track, error) {
	t := &model.Track{
		Title:           req.Title,
		Artist:          req.Artist,
		DurationSeconds: req.DurationSeconds,
		RadioDJID:       req.RadioDJID,
		TrackType:       req.TrackType,
	}
	t.CreatedBy = &callerID
	t.UpdatedBy = &callerID
	if err := t.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Library.CreateTrack(ctx, t); err != nil {
		s.logger.Error("创建曲目失败", zap.Int("radiodj_id", req.RadioDJID), zap.Error(err))
		return nil, err
	}
	return t, nil
}

func (s *libraryService) ListTracks(ctx context.Context, req *dto.PaginationRequest) ([]model.Track, int64, error) {
	list, total, err := s.repo.Library.ListTracks(ctx, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出曲目失败", zap.Error(err))
		return nil, 0, err
	}
	return list, total, nil
}

// ────────────────────── Episode ──────────────────────

func (s *libraryService) CreateEpisode(ctx context.Context, req *dto.EpisodeRequest, callerID string) (*model.Episode, error) {
	first, err := parseOptionalDate("first_broadcast", req.FirstBroadcast, s.loc)
	if err != nil {
		return nil, err
	}
	if req.ShowID != nil {
		if _, err := s.repo.Show.GetByID(ctx, *req.ShowID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrShowNotFound
			}
			return nil, err
		}
	}

	e := &model.Episode{ShowID: req.ShowID, FirstBroadcast: first, Title: req.Title}
	e.CreatedBy = &callerID
	e.UpdatedBy = &callerID

	if err := s.repo.Library.CreateEpisode(ctx, e); err != nil {
		s.logger.Error("创建单集失败", zap.Error(err))
		return nil, err
	}
	return e, nil
}

func (s *libraryService) ListEpisodes(ctx context.Context, showID string) ([]model.Episode, error) {
	list, err := s.repo.Library.ListEpisodes(ctx, showID)
	if err != nil {
		s.logger.Error("列出单集失败", zap.String("show_id", showID), zap.Error(err))
		return nil, err
	}
	return list, nil
}

func (s *libraryService) AddEpisodeTrack(ctx context.Context, episodeID string, req *dto.EpisodeTrackRequest, callerID string) (*model.EpisodeTrack, error) {
	et := &model.EpisodeTrack{
		EpisodeID: episodeID,
		Sequence:  req.Sequence,
		Artist:    req.Artist,
		Title:     req.Title,
		Duration:  req.Duration,
	}
	et.CreatedBy = &callerID
	et.UpdatedBy = &callerID
	// 时长是自由文本，格式不对只记录日志
	if _, err := et.ParseDuration(); err != nil {
		s.logger.Warn("单集曲目时长无法解析", zap.String("duration", req.Duration))
	}

	if err := s.repo.Library.CreateEpisodeTrack(ctx, et); err != nil {
		s.logger.Error("创建单集曲目失败", zap.String("episode_id", episodeID), zap.Error(err))
		return nil, err
	}
	return et, nil
}

func (s *libraryService) AddBroadcast(ctx context.Context, episodeID string, req *dto.BroadcastRequest, callerID string) (*model.Broadcast, error) {
	date, err := parseDate("date", req.Date, s.loc)
	if err != nil {
		return nil, err
	}
	b := &model.Broadcast{
		EpisodeID:     episodeID,
		Date:          date,
		HostCheckedIn: req.HostCheckedIn,
		Type:          req.Type,
	}
	b.CreatedBy = &callerID
	b.UpdatedBy = &callerID
	if err := b.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Library.CreateBroadcast(ctx, b); err != nil {
		s.logger.Error("登记单集播出失败", zap.String("episode_id", episodeID), zap.Error(err))
		return nil, err
	}
	return b, nil
}

func (s *libraryService) ListBroadcasts(ctx context.Context, episodeID string) ([]model.Broadcast, error) {
	list, err := s.repo.Library.ListBroadcasts(ctx, episodeID)
	if err != nil {
		s.logger.Error("列出单集播出失败", zap.String("episode_id", episodeID), zap.Error(err))
		return nil, err
	}
	return list, nil
}

// ────────────────────── PlayLog ──────────────────────

func (s *libraryService) LogPlay(ctx context.Context, req *dto.PlayLogRequest) (*model.PlayLogEntry, error) {
	start, err := parseInstant("start", req.Start, s.now())
	if err != nil {
		return nil, err
	}
	entry := &model.PlayLogEntry{
		Start:             start,
		TrackID:           req.TrackID,
		NonLibraryTrackID: req.NonLibraryTrackID,
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	if entry.TrackID != nil {
		track, err := s.repo.Library.GetTrack(ctx, *entry.TrackID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrTrackNotFound
			}
			s.logger.Error("查询曲目失败", zap.String("id", *entry.TrackID), zap.Error(err))
			return nil, err
		}
		entry.Track = track
	} else {
		et, err := s.repo.Library.GetEpisodeTrack(ctx, *entry.NonLibraryTrackID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrEpisodeTrackNotFound
			}
			s.logger.Error("查询单集曲目失败", zap.String("id", *entry.NonLibraryTrackID), zap.Error(err))
			return nil, err
		}
		entry.NonLibraryTrack = et
	}

	if err := s.repo.Library.CreatePlayLog(ctx, entry); err != nil {
		s.logger.Error("登记播出日志失败", zap.Error(err))
		return nil, err
	}

	s.hooks.Fire(ctx, hook.PlayLogSaved, entry)
	return entry, nil
}

func (s *libraryService) ListPlayLog(ctx context.Context, req *dto.PlayLogListRequest) ([]model.PlayLogEntry, error) {
	from, err := parseInstant("from", req.From, s.now())
	if err != nil {
		return nil, err
	}
	to, err := parseInstant("to", req.To, s.now())
	if err != nil {
		return nil, err
	}
	list, err := s.repo.Library.ListPlayLog(ctx, from, to)
	if err != nil {
		s.logger.Error("列出播出日志失败", zap.Error(err))
		return nil, err
	}
	return list, nil
}

func (s *libraryService) Rate(ctx context.Context, playLogID, memberID string, req *dto.RatingRequest) (*model.Rating, error) {
	if _, err := s.repo.Library.GetPlayLog(ctx, playLogID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlayLogNotFound
		}
		s.logger.Error("查询播出日志失败", zap.String("id", playLogID), zap.Error(err))
		return nil, err
	}

	r := &model.Rating{PlayLogEntryID: playLogID, MemberID: memberID, Rating: req.Rating}
	r.CreatedBy = &memberID
	r.UpdatedBy = &memberID
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Library.CreateRating(ctx, r); err != nil {
		s.logger.Error("保存评分失败", zap.String("play_log_entry_id", playLogID), zap.Error(err))
		return nil, err
	}
	return r, nil
}

// ── 播出日志展示 ──

// playInfo 播出日志的艺人、标题与时长，非曲库时长无法解析时按 0 处理
func playInfo(entry *model.PlayLogEntry, logger *zap.Logger) (artist, title string, dur time.Duration) {
	switch {
	case entry.Track != nil:
		return entry.Track.Artist, entry.Track.Title, time.Duration(entry.Track.DurationSeconds) * time.Second
	case entry.NonLibraryTrack != nil:
		et := entry.NonLibraryTrack
		d, err := et.ParseDuration()
		if err != nil {
			logger.Error("无法解析播出曲目时长",
				zap.String("play_log_entry_id", entry.PlayLogEntryID),
				zap.String("duration", et.Duration),
			)
			d = 0
		}
		return et.Artist, et.Title, d
	default:
		logger.Error("播出日志缺少曲目", zap.String("play_log_entry_id", entry.PlayLogEntryID))
		return "unknown", "unknown", 0
	}
}
