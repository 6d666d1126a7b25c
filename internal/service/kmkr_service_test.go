package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"bzwops/internal/dto"
	"bzwops/internal/hook"
	"bzwops/internal/model"
	pkgerrors "bzwops/pkg/errors"
)

// ════════════════════════════════════════════════════════
// 正在播放
// ════════════════════════════════════════════════════════

// 2026-03-04 是周三
var nowPlayingTestNow = testAt("2026-03-04", "19:30")

func setupTestNowPlaying(cache Cache) (*nowPlayingService, *mockRepos) {
	repos := newMockRepos()
	svc := NewNowPlayingService(testConfig(), repos.repository(), cache, zap.NewNop()).(*nowPlayingService)
	svc.now = fixedNow(nowPlayingTestNow)
	return svc, repos
}

func seedEveningShow(repos *mockRepos) *model.Show {
	show := &model.Show{
		Title:           "Evening Jazz",
		Description:     "Cool sounds",
		DurationMinutes: 120,
		Active:          true,
		Hosts:           []model.OnAirPersonality{{Moniker: "DJ Blue"}},
	}
	_ = repos.show.Create(context.Background(), show)
	_ = repos.show.CreateShowTime(context.Background(), &model.ShowTime{
		ShowID:           show.ShowID,
		StartTime:        "18:00",
		Every:            true,
		Wednesdays:       true,
		ProductionMethod: model.ProductionLive,
	})
	return show
}

func seedPlay(repos *mockRepos, clock string, track *model.Track) {
	_ = repos.library.CreateTrack(context.Background(), track)
	_ = repos.library.CreatePlayLog(context.Background(), &model.PlayLogEntry{
		Start:   testAt("2026-03-04", clock),
		TrackID: &track.TrackID,
		Track:   track,
	})
}

func TestNowPlaying_ShowAndTrack(t *testing.T) {
	svc, repos := setupTestNowPlaying(nil)
	seedEveningShow(repos)
	seedPlay(repos, "19:25", &model.Track{Title: "So What", Artist: "Miles Davis", DurationSeconds: 545, RadioDJID: 1})
	// 晚于当前时刻的日志不计入
	seedPlay(repos, "19:45", &model.Track{Title: "Later", Artist: "Nobody", RadioDJID: 2})

	info, err := svc.Info(context.Background())
	if err != nil {
		t.Fatalf("Info 应成功: %v", err)
	}
	if info.Show == nil || info.Show.Title != "Evening Jazz" {
		t.Fatalf("期望当前节目 Evening Jazz，实际 %+v", info.Show)
	}
	if len(info.Show.Hosts) != 1 || info.Show.Hosts[0] != "DJ Blue" {
		t.Errorf("期望主持人 DJ Blue，实际 %v", info.Show.Hosts)
	}
	if info.Show.ProductionMethod != model.ProductionLive {
		t.Errorf("期望制作方式 LIV，实际 %s", info.Show.ProductionMethod)
	}
	if info.Track == nil || info.Track.Title != "So What" {
		t.Fatalf("期望当前曲目 So What，实际 %+v", info.Track)
	}
	if info.Track.Duration != 545 {
		t.Errorf("期望时长 545 秒，实际 %d", info.Track.Duration)
	}

	text, _ := svc.Text(context.Background())
	if text != "So What by Miles Davis" {
		t.Errorf("期望文本=So What by Miles Davis，实际=%q", text)
	}
}

func TestNowPlaying_ShowOnly(t *testing.T) {
	svc, repos := setupTestNowPlaying(nil)
	seedEveningShow(repos)

	text, err := svc.Text(context.Background())
	if err != nil {
		t.Fatalf("Text 应成功: %v", err)
	}
	if text != "Evening Jazz" {
		t.Errorf("没有播出日志时应显示节目名，实际=%q", text)
	}
}

func TestNowPlaying_FinishedTrackFallsBackToShow(t *testing.T) {
	svc, repos := setupTestNowPlaying(nil)
	seedEveningShow(repos)
	track := &model.Track{Title: "Old Song", Artist: "Someone", DurationSeconds: 180, RadioDJID: 3}
	_ = repos.library.CreateTrack(context.Background(), track)
	_ = repos.library.CreatePlayLog(context.Background(), &model.PlayLogEntry{
		Start:   testAt("2026-02-25", "10:00"),
		TrackID: &track.TrackID,
		Track:   track,
	})

	info, err := svc.Info(context.Background())
	if err != nil {
		t.Fatalf("Info 应成功: %v", err)
	}
	if info.Track != nil {
		t.Errorf("已播完的曲目不应作为当前曲目，实际 %+v", info.Track)
	}
	if text := nowPlayingText(info); text != "Evening Jazz" {
		t.Errorf("期望文本=Evening Jazz，实际=%q", text)
	}
}

func TestNowPlaying_UnknownDurationWindow(t *testing.T) {
	svc, repos := setupTestNowPlaying(nil)
	seedEveningShow(repos)
	// 无时长的曲目在 19:30 已超出 10 分钟窗口
	seedPlay(repos, "19:15", &model.Track{Title: "No Length", Artist: "Anon", RadioDJID: 4})

	text, err := svc.Text(context.Background())
	if err != nil {
		t.Fatalf("Text 应成功: %v", err)
	}
	if text != "Evening Jazz" {
		t.Errorf("期望文本=Evening Jazz，实际=%q", text)
	}
}

func TestStillPlaying(t *testing.T) {
	start := testAt("2026-03-04", "19:00")
	tests := []struct {
		name string
		dur  time.Duration
		now  time.Time
		want bool
	}{
		{"时长内", 3 * time.Minute, testAt("2026-03-04", "19:02"), true},
		{"恰好播完", 3 * time.Minute, testAt("2026-03-04", "19:03"), false},
		{"未知时长窗口内", 0, testAt("2026-03-04", "19:09"), true},
		{"未知时长窗口外", 0, testAt("2026-03-04", "19:10"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stillPlaying(start, tt.dur, tt.now); got != tt.want {
				t.Errorf("期望 %v，实际 %v", tt.want, got)
			}
		})
	}
}

func TestNowPlaying_NothingOnAir(t *testing.T) {
	svc, repos := setupTestNowPlaying(nil)
	show := seedEveningShow(repos)
	repos.show.shows[show.ShowID].Active = false

	info, err := svc.Info(context.Background())
	if err != nil {
		t.Fatalf("Info 应成功: %v", err)
	}
	if info.Show != nil || info.Track != nil {
		t.Errorf("停播节目不应出现，实际 %+v", info)
	}
	if got := nowPlayingText(info); got != "" {
		t.Errorf("无节目无曲目时文本应为空，实际=%q", got)
	}
}

func TestNowPlaying_NonLibraryTrackBadDuration(t *testing.T) {
	svc, repos := setupTestNowPlaying(nil)
	et := &model.EpisodeTrack{Artist: "Local Band", Title: "Demo", Duration: "abc"}
	_ = repos.library.CreateEpisodeTrack(context.Background(), et)
	_ = repos.library.CreatePlayLog(context.Background(), &model.PlayLogEntry{
		Start:             testAt("2026-03-04", "19:25"),
		NonLibraryTrackID: &et.EpisodeTrackID,
		NonLibraryTrack:   et,
	})

	info, err := svc.Info(context.Background())
	if err != nil {
		t.Fatalf("Info 应成功: %v", err)
	}
	if info.Track == nil || info.Track.Duration != 0 {
		t.Errorf("无法解析的时长应按 0 处理，实际 %+v", info.Track)
	}
}

func TestNowPlaying_ServedFromCache(t *testing.T) {
	cache := newMockCache()
	svc, repos := setupTestNowPlaying(cache)
	seedEveningShow(repos)

	if _, err := svc.Info(context.Background()); err != nil {
		t.Fatalf("Info 应成功: %v", err)
	}
	if _, ok := cache.data[nowPlayingCacheKey]; !ok {
		t.Fatal("结果应写入缓存")
	}

	// 缓存有效期内节目变化不影响结果
	for id := range repos.show.shows {
		delete(repos.show.shows, id)
	}
	info, err := svc.Info(context.Background())
	if err != nil {
		t.Fatalf("Info 应成功: %v", err)
	}
	if info.Show == nil || info.Show.Title != "Evening Jazz" {
		t.Errorf("应返回缓存中的节目，实际 %+v", info.Show)
	}
}

func TestNowPlaying_CorruptCacheIgnored(t *testing.T) {
	cache := newMockCache()
	cache.data[nowPlayingCacheKey] = []byte("{not json")
	svc, repos := setupTestNowPlaying(cache)
	seedEveningShow(repos)

	info, err := svc.Info(context.Background())
	if err != nil {
		t.Fatalf("Info 应成功: %v", err)
	}
	if info.Show == nil {
		t.Error("缓存损坏时应回源查询")
	}
	var cached dto.NowPlayingInfo
	if err := json.Unmarshal(cache.data[nowPlayingCacheKey], &cached); err != nil {
		t.Errorf("回源后应覆盖损坏的缓存: %v", err)
	}
}

// ════════════════════════════════════════════════════════
// 播出日志
// ════════════════════════════════════════════════════════

func setupTestLibraryService() (LibraryService, *mockRepos) {
	cfg := testConfig()
	repos := newMockRepos()
	d := hook.NewDispatcher(zap.NewNop())
	RegisterHooks(d, cfg, repos.repository(), &mockNotifier{}, zap.NewNop())
	svc := NewLibraryService(cfg, repos.repository(), d, zap.NewNop())
	return svc, repos
}

func TestLogPlay_CommercialRecordsBroadcast(t *testing.T) {
	svc, repos := setupTestLibraryService()
	track := seedCommercial(repos, 42)
	seedAgreement(repos, "Bakery", 42)

	entry, err := svc.LogPlay(context.Background(), &dto.PlayLogRequest{
		Start:   "2026-03-02T17:02:00Z",
		TrackID: &track.TrackID,
	})
	if err != nil {
		t.Fatalf("LogPlay 应成功: %v", err)
	}
	if entry.Track == nil {
		t.Error("返回的播出日志应带曲目")
	}
	if len(repos.underwriting.broadcasts) != 1 {
		t.Fatalf("广告曲目播出应记录 1 次赞助播出，实际 %d", len(repos.underwriting.broadcasts))
	}
	if s := repos.underwriting.broadcasts[0].ScheduleID; s == nil || *s != "sched-pm" {
		t.Errorf("应匹配 17:00 排期，实际 %v", s)
	}
}

func TestLogPlay_BothTracksRejected(t *testing.T) {
	svc, _ := setupTestLibraryService()

	_, err := svc.LogPlay(context.Background(), &dto.PlayLogRequest{
		Start:             "2026-03-02T17:02:00Z",
		TrackID:           strPtr("track-1"),
		NonLibraryTrackID: strPtr("et-1"),
	})
	if _, ok := pkgerrors.AsValidation(err); !ok {
		t.Errorf("同时指定两种曲目应校验失败，实际: %v", err)
	}
}

func TestLogPlay_BadStart(t *testing.T) {
	svc, _ := setupTestLibraryService()

	_, err := svc.LogPlay(context.Background(), &dto.PlayLogRequest{Start: "yesterday", TrackID: strPtr("track-1")})
	if ve, ok := pkgerrors.AsValidation(err); !ok || ve.Field != "start" {
		t.Errorf("期望 start 校验错误，实际: %v", err)
	}
}

func TestLogPlay_TrackMissing(t *testing.T) {
	svc, _ := setupTestLibraryService()

	_, err := svc.LogPlay(context.Background(), &dto.PlayLogRequest{
		Start:   "2026-03-02T17:02:00Z",
		TrackID: strPtr("track-404"),
	})
	if !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("期望 ErrTrackNotFound，实际: %v", err)
	}
}

func TestRate_OutOfRange(t *testing.T) {
	svc, repos := setupTestLibraryService()
	seedPlay(repos, "10:00", &model.Track{Title: "Song", RadioDJID: 7})

	_, err := svc.Rate(context.Background(), "play-1", "member-alice", &dto.RatingRequest{Rating: 3})
	if _, ok := pkgerrors.AsValidation(err); !ok {
		t.Errorf("超出范围的评分应校验失败，实际: %v", err)
	}
}

func TestRate_PlayLogMissing(t *testing.T) {
	svc, _ := setupTestLibraryService()

	_, err := svc.Rate(context.Background(), "play-404", "member-alice", &dto.RatingRequest{Rating: 1})
	if !errors.Is(err, ErrPlayLogNotFound) {
		t.Errorf("期望 ErrPlayLogNotFound，实际: %v", err)
	}
}

func TestPlayInfo_MissingTrack(t *testing.T) {
	artist, title, dur := playInfo(&model.PlayLogEntry{PlayLogEntryID: "p"}, zap.NewNop())
	if artist != "unknown" || title != "unknown" || dur != 0 {
		t.Errorf("缺少曲目时应返回 unknown，实际 %s / %s / %v", artist, title, dur)
	}
}

// ════════════════════════════════════════════════════════
// 赞助协议
// ════════════════════════════════════════════════════════

func setupTestUnderwritingService() (UnderwritingService, *mockRepos) {
	repos := newMockRepos()
	return NewUnderwritingService(testConfig(), repos.repository(), zap.NewNop()), repos
}

func agreementRequest() *dto.AgreementRequest {
	track := 42
	return &dto.AgreementRequest{
		Sponsor:   "Bakery",
		QtySold:   10,
		SalePrice: "150.00",
		StartDate: "2026-03-01",
		EndDate:   "2026-03-31",
		TrackID:   &track,
		Script:    "Fresh bread daily.",
	}
}

func TestUnderwritingCreate_EndBeforeStart(t *testing.T) {
	svc, _ := setupTestUnderwritingService()
	req := agreementRequest()
	req.EndDate = "2026-03-01"

	_, err := svc.Create(context.Background(), req, "member-admin")
	if ve, ok := pkgerrors.AsValidation(err); !ok || ve.Field != "end_date" {
		t.Errorf("结束日期不晚于开始日期应校验失败，实际: %v", err)
	}
}

func TestUnderwritingGetByID_CountsAired(t *testing.T) {
	svc, repos := setupTestUnderwritingService()
	a, err := svc.Create(context.Background(), agreementRequest(), "member-admin")
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	_ = repos.underwriting.UpsertBroadcast(context.Background(), &model.UnderwritingBroadcast{
		AgreementID: a.AgreementID, WhenRead: testAt("2026-03-02", "08:00"),
	})
	_ = repos.underwriting.UpsertBroadcast(context.Background(), &model.UnderwritingBroadcast{
		AgreementID: a.AgreementID, WhenRead: testAt("2026-03-03", "08:00"),
	})

	got, err := svc.GetByID(context.Background(), a.AgreementID)
	if err != nil {
		t.Fatalf("GetByID 应成功: %v", err)
	}
	if got.QtyAired != 2 {
		t.Errorf("期望已播出 2 次，实际 %d", got.QtyAired)
	}
	if got.IsFullyDelivered() {
		t.Error("2 / 10 不应视为履约完成")
	}
}

func TestUnderwritingAddSchedule(t *testing.T) {
	svc, _ := setupTestUnderwritingService()
	a, _ := svc.Create(context.Background(), agreementRequest(), "member-admin")

	sched, err := svc.AddSchedule(context.Background(), a.AgreementID, &dto.UnderwritingScheduleRequest{
		Time: "08:00", Weekdays: true,
	}, "member-admin")
	if err != nil {
		t.Fatalf("AddSchedule 应成功: %v", err)
	}
	if sched.ScheduleID == "" {
		t.Error("ScheduleID 不应为空")
	}

	_, err = svc.AddSchedule(context.Background(), a.AgreementID, &dto.UnderwritingScheduleRequest{Time: "08:00"}, "member-admin")
	if _, ok := pkgerrors.AsValidation(err); !ok {
		t.Errorf("未选择工作日或周末应校验失败，实际: %v", err)
	}

	_, err = svc.AddSchedule(context.Background(), a.AgreementID, &dto.UnderwritingScheduleRequest{Time: "8am", Weekend: true}, "member-admin")
	if ve, ok := pkgerrors.AsValidation(err); !ok || ve.Field != "time" {
		t.Errorf("期望 time 校验错误，实际: %v", err)
	}
}

func TestUnderwritingAddSchedule_AgreementMissing(t *testing.T) {
	svc, _ := setupTestUnderwritingService()

	_, err := svc.AddSchedule(context.Background(), "uw-missing", &dto.UnderwritingScheduleRequest{
		Time: "08:00", Weekdays: true,
	}, "member-admin")
	if !errors.Is(err, ErrAgreementNotFound) {
		t.Errorf("期望 ErrAgreementNotFound，实际: %v", err)
	}
}
