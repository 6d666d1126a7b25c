package service

import (
	"context"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"bzwops/config"
	"bzwops/internal/model"
	"bzwops/internal/repository"
)

// calendarLookback 日历订阅包含的过去天数
const calendarLookback = 14

// CalendarService 成员任务日历订阅接口
type CalendarService interface {
	// MemberCalendar 生成成员已认领任务的 iCalendar 文本
	MemberCalendar(ctx context.Context, memberID string) (string, error)
}

type calendarService struct {
	repo    *repository.Repository
	baseURL string
	horizon int
	loc     *time.Location
	now     func() time.Time
	logger  *zap.Logger
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) CalendarService {
	return &calendarService{
		repo:    repo,
		baseURL: cfg.Server.BaseURL,
		horizon: cfg.Tasks.HorizonDays,
		loc:     cfg.Tasks.Location(),
		now:     time.Now,
		logger:  logger,
	}
}

func (s *calendarService) MemberCalendar(ctx context.Context, memberID string) (string, error) {
	now := s.now().In(s.loc)
	today := dayIn(now, s.loc)
	from := today.AddDate(0, 0, -calendarLookback)
	to := today.AddDate(0, 0, s.horizon)

	tasks, err := s.repo.Task.ListClaimedBy(ctx, memberID, from, to)
	if err != nil {
		s.logger.Error("查询成员认领任务失败", zap.String("member_id", memberID), zap.Error(err))
		return "", err
	}

	cal := ics.NewCalendarFor("bzwops")
	cal.SetMethod(ics.MethodPublish)
	cal.SetXWRCalName("Volunteer tasks")
	cal.SetXWRTimezone(s.loc.String())

	for i := range tasks {
		s.addTaskEvent(cal, &tasks[i], now)
	}
	return cal.Serialize(), nil
}

// addTaskEvent 有开始时刻的任务生成定时事件，否则生成全天事件
func (s *calendarService) addTaskEvent(cal *ics.Calendar, t *model.Task, stamp time.Time) {
	if t.ScheduledDate == nil {
		return
	}
	day := dayIn(*t.ScheduledDate, s.loc)

	evt := cal.AddEvent(fmt.Sprintf("%s@bzwops", t.TaskID))
	evt.SetDtStampTime(stamp)
	evt.SetSummary(t.ShortDesc)
	if t.Instructions != "" {
		evt.SetDescription(t.Instructions)
	}
	if s.baseURL != "" {
		evt.SetURL(fmt.Sprintf("%s/api/v1/tasks/%s", s.baseURL, t.TaskID))
	}

	if clock, ok := t.StartClock(); ok {
		start := day.Add(clock)
		dur := t.Duration()
		if dur <= 0 {
			dur = time.Hour
		}
		evt.SetStartAt(start)
		evt.SetEndAt(start.Add(dur))
		return
	}
	evt.SetAllDayStartAt(day)
	evt.SetAllDayEndAt(day.AddDate(0, 0, 1))
}
