package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"bzwops/internal/dto"
	"bzwops/internal/model"
	pkgerrors "bzwops/pkg/errors"
)

// 2026-03-04 是周三
var templateTestNow = testAt("2026-03-04", "09:30")

func setupTestTemplateService() (*templateService, *mockRepos) {
	repos := newMockRepos()
	svc := NewTemplateService(testConfig(), repos.repository(), zap.NewNop()).(*templateService)
	svc.now = fixedNow(templateTestNow)
	createTestMember(repos, "alice", "")
	return svc, repos
}

func seedTemplate(repos *mockRepos, tpl *model.RecurringTaskTemplate) *model.RecurringTaskTemplate {
	if tpl.ShortDesc == "" {
		tpl.ShortDesc = "Sweep"
	}
	if tpl.Priority == "" {
		tpl.Priority = model.PriorityMed
	}
	if tpl.MissedDateAction == "" {
		tpl.MissedDateAction = model.MissedLeave
	}
	tpl.EligibleClaimants = []model.Member{{MemberID: "member-alice"}}
	_ = repos.template.Create(context.Background(), tpl)
	return tpl
}

func scheduledDates(tasks []model.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ScheduledDate.Format("2006-01-02"))
	}
	return out
}

func equalDates(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// ── GenerateTasks 测试 ──

func TestGenerateTasks_WeeklyPattern(t *testing.T) {
	svc, repos := setupTestTemplateService()
	tpl := seedTemplate(repos, &model.RecurringTaskTemplate{
		StartDate: testDay("2026-01-01"),
		Every:     true,
		Monday:    true,
	})

	tasks, err := svc.GenerateTasks(context.Background(), tpl.TemplateID, 0)
	if err != nil {
		t.Fatalf("GenerateTasks 应成功: %v", err)
	}

	want := []string{"2026-03-09", "2026-03-16"}
	if got := scheduledDates(tasks); !equalDates(got, want) {
		t.Errorf("期望生成 %v，实际 %v", want, got)
	}
	for _, task := range tasks {
		if task.Status != model.TaskActive || task.Version != 1 {
			t.Errorf("新任务应为 active 且版本为 1，实际 status=%s version=%d", task.Status, task.Version)
		}
		if len(task.EligibleClaimants) != 1 {
			t.Errorf("新任务应复制可认领成员，实际 %d 个", len(task.EligibleClaimants))
		}
	}
}

func TestGenerateTasks_Idempotent(t *testing.T) {
	svc, repos := setupTestTemplateService()
	tpl := seedTemplate(repos, &model.RecurringTaskTemplate{
		StartDate: testDay("2026-01-01"),
		Every:     true,
		Monday:    true,
		Thursday:  true,
	})

	first, err := svc.GenerateTasks(context.Background(), tpl.TemplateID, 0)
	if err != nil {
		t.Fatalf("首次生成应成功: %v", err)
	}
	if len(first) == 0 {
		t.Fatal("首次生成应有任务")
	}

	second, err := svc.GenerateTasks(context.Background(), tpl.TemplateID, 0)
	if err != nil {
		t.Fatalf("再次生成应成功: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("再次生成不应产生重复任务，实际 %v", scheduledDates(second))
	}
}

func TestGenerateTasks_ConcurrentRunSkipsExistingDates(t *testing.T) {
	svc, repos := setupTestTemplateService()
	tpl := seedTemplate(repos, &model.RecurringTaskTemplate{
		StartDate: testDay("2026-01-01"),
		Every:     true,
		Monday:    true,
	})
	if _, err := svc.GenerateTasks(context.Background(), tpl.TemplateID, 0); err != nil {
		t.Fatalf("首次生成应成功: %v", err)
	}

	// 并发实例读到的最大计划日期已过时
	repos.template.staleGreatest = true
	second, err := svc.GenerateTasks(context.Background(), tpl.TemplateID, 0)
	if err != nil {
		t.Fatalf("再次生成应成功: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("已存在的日期不应重复生成，实际 %v", scheduledDates(second))
	}
	if len(repos.task.tasks) != 2 {
		t.Errorf("期望共 2 个任务，实际 %d", len(repos.task.tasks))
	}
}

func TestGenerateTasks_WindowBounds(t *testing.T) {
	svc, repos := setupTestTemplateService()
	tpl := seedTemplate(repos, &model.RecurringTaskTemplate{
		StartDate: testDay("2025-06-01"),
		Every:     true,
		Monday:    true, Tuesday: true, Wednesday: true, Thursday: true,
		Friday: true, Saturday: true, Sunday: true,
	})

	tasks, err := svc.GenerateTasks(context.Background(), tpl.TemplateID, 10)
	if err != nil {
		t.Fatalf("GenerateTasks 应成功: %v", err)
	}

	today := testDay("2026-03-04")
	stop := today.AddDate(0, 0, 10)
	if len(tasks) != 11 {
		t.Errorf("每日模板在 11 天窗口内应生成 11 个任务，实际 %d", len(tasks))
	}
	for _, task := range tasks {
		d := *task.ScheduledDate
		if d.Before(today) || d.After(stop) {
			t.Errorf("任务日期 %s 超出 [今天, 今天+10]", d.Format("2006-01-02"))
		}
	}
}

func TestGenerateTasks_ResumesAfterGreatest(t *testing.T) {
	svc, repos := setupTestTemplateService()
	tpl := seedTemplate(repos, &model.RecurringTaskTemplate{
		StartDate: testDay("2026-01-01"),
		Every:     true,
		Monday:    true,
	})
	existing := testDay("2026-03-09")
	_ = repos.task.Create(context.Background(), &model.Task{
		ScheduledDate: &existing,
		TemplateID:    &tpl.TemplateID,
		Status:        model.TaskActive,
	})

	tasks, err := svc.GenerateTasks(context.Background(), tpl.TemplateID, 0)
	if err != nil {
		t.Fatalf("GenerateTasks 应成功: %v", err)
	}
	if got := scheduledDates(tasks); !equalDates(got, []string{"2026-03-16"}) {
		t.Errorf("应从已生成的最大日期之后继续，实际 %v", got)
	}
}

func TestGenerateTasks_Suspended(t *testing.T) {
	svc, repos := setupTestTemplateService()
	tpl := seedTemplate(repos, &model.RecurringTaskTemplate{
		StartDate: testDay("2026-01-01"),
		Suspended: true,
		Every:     true,
		Monday:    true,
	})

	tasks, err := svc.GenerateTasks(context.Background(), tpl.TemplateID, 0)
	if err != nil {
		t.Fatalf("GenerateTasks 应成功: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("暂停的模板不应生成任务，实际 %d", len(tasks))
	}
}

func TestGenerateTasks_FirstThursdayOnly(t *testing.T) {
	svc, repos := setupTestTemplateService()
	tpl := seedTemplate(repos, &model.RecurringTaskTemplate{
		StartDate: testDay("2026-01-01"),
		First:     true,
		Thursday:  true,
	})

	tasks, err := svc.GenerateTasks(context.Background(), tpl.TemplateID, 60)
	if err != nil {
		t.Fatalf("GenerateTasks 应成功: %v", err)
	}
	// 窗口 2026-03-04 ~ 2026-05-03，三月首个周四为 3/5
	want := []string{"2026-03-05", "2026-04-02"}
	if got := scheduledDates(tasks); !equalDates(got, want) {
		t.Errorf("期望 %v，实际 %v", want, got)
	}
}

func TestGenerateTasks_IntervalLeave(t *testing.T) {
	svc, repos := setupTestTemplateService()
	interval := 7
	tpl := seedTemplate(repos, &model.RecurringTaskTemplate{
		StartDate:      testDay("2026-03-01"),
		RepeatInterval: &interval,
	})

	tasks, err := svc.GenerateTasks(context.Background(), tpl.TemplateID, 0)
	if err != nil {
		t.Fatalf("GenerateTasks 应成功: %v", err)
	}
	want := []string{"2026-03-08", "2026-03-15"}
	if got := scheduledDates(tasks); !equalDates(got, want) {
		t.Errorf("期望 %v，实际 %v", want, got)
	}
}

func TestGenerateTasks_IntervalSlideReanchors(t *testing.T) {
	svc, repos := setupTestTemplateService()
	interval := 7
	tpl := seedTemplate(repos, &model.RecurringTaskTemplate{
		StartDate:        testDay("2026-03-01"),
		RepeatInterval:   &interval,
		MissedDateAction: model.MissedSlide,
	})
	done := testDay("2026-03-03")
	_ = repos.task.Create(context.Background(), &model.Task{
		ScheduledDate: &done,
		TemplateID:    &tpl.TemplateID,
		Status:        model.TaskDone,
		WorkDone:      true,
	})

	tasks, err := svc.GenerateTasks(context.Background(), tpl.TemplateID, 0)
	if err != nil {
		t.Fatalf("GenerateTasks 应成功: %v", err)
	}
	want := []string{"2026-03-10", "2026-03-17"}
	if got := scheduledDates(tasks); !equalDates(got, want) {
		t.Errorf("顺延模板应以最近完成日期为起点，期望 %v，实际 %v", want, got)
	}
}

func TestGenerateTasks_NotFound(t *testing.T) {
	svc, _ := setupTestTemplateService()

	_, err := svc.GenerateTasks(context.Background(), "missing", 0)
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("期望 ErrTemplateNotFound，实际: %v", err)
	}
}

func TestGenerateAll_SkipsSuspended(t *testing.T) {
	svc, repos := setupTestTemplateService()
	seedTemplate(repos, &model.RecurringTaskTemplate{
		StartDate: testDay("2026-01-01"), TaskFields: model.TaskFields{ShortDesc: "Mop"},
		Every: true, Monday: true,
	})
	seedTemplate(repos, &model.RecurringTaskTemplate{
		StartDate: testDay("2026-01-01"), TaskFields: model.TaskFields{ShortDesc: "Dust"},
		Every: true, Friday: true,
	})
	seedTemplate(repos, &model.RecurringTaskTemplate{
		StartDate: testDay("2026-01-01"), TaskFields: model.TaskFields{ShortDesc: "Paint"},
		Suspended: true, Every: true, Monday: true,
	})

	total, err := svc.GenerateAll(context.Background(), 0)
	if err != nil {
		t.Fatalf("GenerateAll 应成功: %v", err)
	}
	// 周一 3/9 3/16，周五 3/6 3/13
	if total != 4 {
		t.Errorf("期望生成 4 个任务，实际 %d", total)
	}
}

func TestGenerateAll_StopsOnCanceledContext(t *testing.T) {
	svc, repos := setupTestTemplateService()
	seedTemplate(repos, &model.RecurringTaskTemplate{
		StartDate: testDay("2026-01-01"), Every: true, Monday: true,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	if _, err := svc.GenerateAll(ctx, 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("期望 context.DeadlineExceeded，实际: %v", err)
	}
}

// ── Create 校验测试 ──

func TestTemplateCreate_Success(t *testing.T) {
	svc, _ := setupTestTemplateService()

	tpl, err := svc.Create(context.Background(), &dto.TemplateRequest{
		TaskFieldsRequest: dto.TaskFieldsRequest{
			ShortDesc:           "Sweep",
			WorkEstimate:        "1.5",
			EligibleClaimantIDs: []string{"member-alice"},
		},
		StartDate: "2026-03-01",
		Every:     true,
		Saturday:  true,
	}, "member-alice")
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if tpl.Priority != model.PriorityMed {
		t.Errorf("默认优先级应为 med，实际 %s", tpl.Priority)
	}
	if tpl.MissedDateAction != model.MissedLeave {
		t.Errorf("默认错过处理应为 leave，实际 %s", tpl.MissedDateAction)
	}
}

func TestTemplateCreate_FourthAndLastRejected(t *testing.T) {
	svc, _ := setupTestTemplateService()

	_, err := svc.Create(context.Background(), &dto.TemplateRequest{
		TaskFieldsRequest: dto.TaskFieldsRequest{
			ShortDesc:           "Sweep",
			EligibleClaimantIDs: []string{"member-alice"},
		},
		StartDate: "2026-03-01",
		Fourth:    true,
		Last:      true,
		Monday:    true,
	}, "member-alice")
	if ve, ok := pkgerrors.AsValidation(err); !ok || ve.Field != "last" {
		t.Errorf("期望 last 字段校验错误，实际: %v", err)
	}
}

func TestTemplateCreate_IntervalWithDaysRejected(t *testing.T) {
	svc, _ := setupTestTemplateService()
	interval := 14

	_, err := svc.Create(context.Background(), &dto.TemplateRequest{
		TaskFieldsRequest: dto.TaskFieldsRequest{
			ShortDesc:           "Sweep",
			EligibleClaimantIDs: []string{"member-alice"},
		},
		StartDate:      "2026-03-01",
		Monday:         true,
		RepeatInterval: &interval,
	}, "member-alice")
	if _, ok := pkgerrors.AsValidation(err); !ok {
		t.Errorf("星期规则与固定间隔同时设置应校验失败，实际: %v", err)
	}
}

func TestTemplateCreate_NoEligibility(t *testing.T) {
	svc, _ := setupTestTemplateService()

	_, err := svc.Create(context.Background(), &dto.TemplateRequest{
		TaskFieldsRequest: dto.TaskFieldsRequest{ShortDesc: "Sweep"},
		StartDate:         "2026-03-01",
		Every:             true,
		Monday:            true,
	}, "member-alice")
	if ve, ok := pkgerrors.AsValidation(err); !ok || ve.Field != "eligible_claimants" {
		t.Errorf("缺少可认领成员应校验失败，实际: %v", err)
	}
}

func TestTemplateCreate_UnknownTag(t *testing.T) {
	svc, _ := setupTestTemplateService()

	_, err := svc.Create(context.Background(), &dto.TemplateRequest{
		TaskFieldsRequest: dto.TaskFieldsRequest{
			ShortDesc:      "Sweep",
			EligibleTagIDs: []string{"tag-missing"},
		},
		StartDate: "2026-03-01",
		Every:     true,
		Monday:    true,
	}, "member-alice")
	if !errors.Is(err, ErrTagNotFound) {
		t.Errorf("期望 ErrTagNotFound，实际: %v", err)
	}
}
