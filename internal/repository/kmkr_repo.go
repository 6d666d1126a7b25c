package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bzwops/internal/model"
)

// ShowRepository 节目数据访问接口
type ShowRepository interface {
	Create(ctx context.Context, show *model.Show) error
	GetByID(ctx context.Context, id string) (*model.Show, error)
	Update(ctx context.Context, show *model.Show) error
	Delete(ctx context.Context, id string) error
	// List 预加载 ShowTimes 与 Hosts
	List(ctx context.Context, activeOnly bool) ([]model.Show, error)
	CreateShowTime(ctx context.Context, st *model.ShowTime) error
	DeleteShowTime(ctx context.Context, id string) error
	CreatePersonality(ctx context.Context, p *model.OnAirPersonality) error
	ListPersonalities(ctx context.Context) ([]model.OnAirPersonality, error)
}

// LibraryRepository 曲库、单集与播出日志数据访问接口
type LibraryRepository interface {
	CreateTrack(ctx context.Context, t *model.Track) error
	GetTrack(ctx context.Context, id string) (*model.Track, error)
	ListTracks(ctx context.Context, offset, limit int) ([]model.Track, int64, error)

	CreateEpisode(ctx context.Context, e *model.Episode) error
	ListEpisodes(ctx context.Context, showID string) ([]model.Episode, error)
	CreateEpisodeTrack(ctx context.Context, et *model.EpisodeTrack) error
	GetEpisodeTrack(ctx context.Context, id string) (*model.EpisodeTrack, error)
	CreateBroadcast(ctx context.Context, b *model.Broadcast) error
	ListBroadcasts(ctx context.Context, episodeID string) ([]model.Broadcast, error)

	CreatePlayLog(ctx context.Context, p *model.PlayLogEntry) error
	// GetPlayLog 预加载曲库曲目与非曲库曲目
	GetPlayLog(ctx context.Context, id string) (*model.PlayLogEntry, error)
	LatestPlayLog(ctx context.Context, before time.Time) (*model.PlayLogEntry, error)
	ListPlayLog(ctx context.Context, from, to time.Time) ([]model.PlayLogEntry, error)
	CreateRating(ctx context.Context, r *model.Rating) error
}

// UnderwritingRepository 电台赞助数据访问接口
type UnderwritingRepository interface {
	CreateAgreement(ctx context.Context, a *model.UnderwritingAgreement) error
	GetAgreement(ctx context.Context, id string) (*model.UnderwritingAgreement, error)
	UpdateAgreement(ctx context.Context, a *model.UnderwritingAgreement) error
	ListAgreements(ctx context.Context) ([]model.UnderwritingAgreement, error)
	// FindActiveByTrack 按 RadioDJ 曲目 ID 查找 day 当天有效的协议（预加载 Schedules）
	FindActiveByTrack(ctx context.Context, radioDJID int, day time.Time) ([]model.UnderwritingAgreement, error)
	CountBroadcasts(ctx context.Context, agreementIDs []string) (map[string]int64, error)
	CreateSchedule(ctx context.Context, s *model.UnderwritingSchedule) error
	DeleteSchedule(ctx context.Context, id string) error
	// UpsertBroadcast 以 (agreement_id, when_read) 为键写入或更新播出记录
	UpsertBroadcast(ctx context.Context, b *model.UnderwritingBroadcast) error
	ListBroadcasts(ctx context.Context, agreementID string) ([]model.UnderwritingBroadcast, error)
}

// ── Show Repository 实现 ──

type showRepo struct {
	db *gorm.DB
}

// NewShowRepo 创建 ShowRepository 实例
func NewShowRepo(db *gorm.DB) ShowRepository {
	return &showRepo{db: db}
}

func (r *showRepo) Create(ctx context.Context, show *model.Show) error {
	return r.db.WithContext(ctx).Omit("Hosts.*", "ShowTimes").Create(show).Error
}

func (r *showRepo) GetByID(ctx context.Context, id string) (*model.Show, error) {
	var show model.Show
	err := r.db.WithContext(ctx).
		Preload("Hosts").
		Preload("ShowTimes").
		Where("show_id = ?", id).
		First(&show).Error
	if err != nil {
		return nil, err
	}
	return &show, nil
}

func (r *showRepo) Update(ctx context.Context, show *model.Show) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Hosts", "ShowTimes").Save(show).Error; err != nil {
			return err
		}
		return tx.Model(show).Association("Hosts").Replace(show.Hosts)
	})
}

func (r *showRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Select("Hosts").
		Delete(&model.Show{ShowID: id}).Error
}

func (r *showRepo) List(ctx context.Context, activeOnly bool) ([]model.Show, error) {
	var shows []model.Show
	db := r.db.WithContext(ctx).Preload("Hosts").Preload("ShowTimes")
	if activeOnly {
		db = db.Where("active = ?", true)
	}
	err := db.Order("title ASC").Find(&shows).Error
	return shows, err
}

func (r *showRepo) CreateShowTime(ctx context.Context, st *model.ShowTime) error {
	return r.db.WithContext(ctx).Create(st).Error
}

func (r *showRepo) DeleteShowTime(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("show_time_id = ?", id).
		Delete(&model.ShowTime{}).Error
}

func (r *showRepo) CreatePersonality(ctx context.Context, p *model.OnAirPersonality) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *showRepo) ListPersonalities(ctx context.Context) ([]model.OnAirPersonality, error) {
	var list []model.OnAirPersonality
	err := r.db.WithContext(ctx).Order("moniker ASC").Find(&list).Error
	return list, err
}

// ── Library Repository 实现 ──

type libraryRepo struct {
	db *gorm.DB
}

// NewLibraryRepo 创建 LibraryRepository 实例
func NewLibraryRepo(db *gorm.DB) LibraryRepository {
	return &libraryRepo{db: db}
}

func (r *libraryRepo) CreateTrack(ctx context.Context, t *model.Track) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *libraryRepo) GetTrack(ctx context.Context, id string) (*model.Track, error) {
	var t model.Track
	if err := r.db.WithContext(ctx).Where("track_id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *libraryRepo) ListTracks(ctx context.Context, offset, limit int) ([]model.Track, int64, error) {
	var list []model.Track
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Track{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Offset(offset).Limit(limit).
		Order("artist ASC, title ASC").
		Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *libraryRepo) CreateEpisode(ctx context.Context, e *model.Episode) error {
	return r.db.WithContext(ctx).Omit("Show").Create(e).Error
}

func (r *libraryRepo) ListEpisodes(ctx context.Context, showID string) ([]model.Episode, error) {
	var list []model.Episode
	db := r.db.WithContext(ctx)
	if showID != "" {
		db = db.Where("show_id = ?", showID)
	}
	err := db.Order("first_broadcast DESC NULLS LAST").Find(&list).Error
	return list, err
}

func (r *libraryRepo) CreateEpisodeTrack(ctx context.Context, et *model.EpisodeTrack) error {
	return r.db.WithContext(ctx).Create(et).Error
}

func (r *libraryRepo) GetEpisodeTrack(ctx context.Context, id string) (*model.EpisodeTrack, error) {
	var et model.EpisodeTrack
	if err := r.db.WithContext(ctx).Where("episode_track_id = ?", id).First(&et).Error; err != nil {
		return nil, err
	}
	return &et, nil
}

func (r *libraryRepo) CreateBroadcast(ctx context.Context, b *model.Broadcast) error {
	return r.db.WithContext(ctx).Omit("Episode").Create(b).Error
}

func (r *libraryRepo) ListBroadcasts(ctx context.Context, episodeID string) ([]model.Broadcast, error) {
	var list []model.Broadcast
	err := r.db.WithContext(ctx).
		Where("episode_id = ?", episodeID).
		Order("air_date ASC").
		Find(&list).Error
	return list, err
}

func (r *libraryRepo) CreatePlayLog(ctx context.Context, p *model.PlayLogEntry) error {
	return r.db.WithContext(ctx).Omit("Track", "NonLibraryTrack").Create(p).Error
}

func (r *libraryRepo) GetPlayLog(ctx context.Context, id string) (*model.PlayLogEntry, error) {
	var p model.PlayLogEntry
	err := r.db.WithContext(ctx).
		Preload("Track").
		Preload("NonLibraryTrack").
		Where("play_log_entry_id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *libraryRepo) LatestPlayLog(ctx context.Context, before time.Time) (*model.PlayLogEntry, error) {
	var p model.PlayLogEntry
	err := r.db.WithContext(ctx).
		Preload("Track").
		Preload("NonLibraryTrack").
		Where("start <= ?", before).
		Order("start DESC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *libraryRepo) ListPlayLog(ctx context.Context, from, to time.Time) ([]model.PlayLogEntry, error) {
	var list []model.PlayLogEntry
	err := r.db.WithContext(ctx).
		Preload("Track").
		Preload("NonLibraryTrack").
		Where("start BETWEEN ? AND ?", from, to).
		Order("start ASC").
		Find(&list).Error
	return list, err
}

func (r *libraryRepo) CreateRating(ctx context.Context, rt *model.Rating) error {
	return r.db.WithContext(ctx).Create(rt).Error
}

// ── Underwriting Repository 实现 ──

type underwritingRepo struct {
	db *gorm.DB
}

// NewUnderwritingRepo 创建 UnderwritingRepository 实例
func NewUnderwritingRepo(db *gorm.DB) UnderwritingRepository {
	return &underwritingRepo{db: db}
}

func (r *underwritingRepo) CreateAgreement(ctx context.Context, a *model.UnderwritingAgreement) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *underwritingRepo) GetAgreement(ctx context.Context, id string) (*model.UnderwritingAgreement, error) {
	var a model.UnderwritingAgreement
	err := r.db.WithContext(ctx).
		Preload("Schedules").
		Where("agreement_id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *underwritingRepo) UpdateAgreement(ctx context.Context, a *model.UnderwritingAgreement) error {
	return r.db.WithContext(ctx).Omit("Schedules").Save(a).Error
}

func (r *underwritingRepo) ListAgreements(ctx context.Context) ([]model.UnderwritingAgreement, error) {
	var list []model.UnderwritingAgreement
	err := r.db.WithContext(ctx).
		Preload("Schedules").
		Order("start_date DESC").
		Find(&list).Error
	return list, err
}

func (r *underwritingRepo) FindActiveByTrack(ctx context.Context, radioDJID int, day time.Time) ([]model.UnderwritingAgreement, error) {
	var list []model.UnderwritingAgreement
	d := day.Format("2006-01-02")
	err := r.db.WithContext(ctx).
		Preload("Schedules").
		Where("track_id = ? AND start_date <= ? AND end_date >= ?", radioDJID, d, d).
		Find(&list).Error
	return list, err
}

func (r *underwritingRepo) CountBroadcasts(ctx context.Context, agreementIDs []string) (map[string]int64, error) {
	result := make(map[string]int64, len(agreementIDs))
	if len(agreementIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		AgreementID string
		Count       int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.UnderwritingBroadcast{}).
		Select("agreement_id, COUNT(*) AS count").
		Where("agreement_id IN ?", agreementIDs).
		Group("agreement_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.AgreementID] = row.Count
	}
	return result, nil
}

func (r *underwritingRepo) CreateSchedule(ctx context.Context, s *model.UnderwritingSchedule) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *underwritingRepo) DeleteSchedule(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("schedule_id = ?", id).
		Delete(&model.UnderwritingSchedule{}).Error
}

func (r *underwritingRepo) UpsertBroadcast(ctx context.Context, b *model.UnderwritingBroadcast) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "agreement_id"}, {Name: "when_read"}},
			DoUpdates: clause.AssignmentColumns([]string{"schedule_id"}),
		}).
		Create(b).Error
}

func (r *underwritingRepo) ListBroadcasts(ctx context.Context, agreementID string) ([]model.UnderwritingBroadcast, error) {
	var list []model.UnderwritingBroadcast
	err := r.db.WithContext(ctx).
		Where("agreement_id = ?", agreementID).
		Order("when_read ASC").
		Find(&list).Error
	return list, err
}
