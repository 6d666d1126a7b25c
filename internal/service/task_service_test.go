package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"bzwops/internal/dto"
	"bzwops/internal/model"
	pkgerrors "bzwops/pkg/errors"
)

func setupTestTaskService() (TaskService, *mockRepos) {
	repos := newMockRepos()
	svc := NewTaskService(testConfig(), repos.repository(), zap.NewNop())
	createTestMember(repos, "alice", "")
	return svc, repos
}

func createTestTask(t *testing.T, svc TaskService) *model.Task {
	t.Helper()
	date := "2026-03-09"
	task, err := svc.Create(context.Background(), &dto.TaskRequest{
		TaskFieldsRequest: dto.TaskFieldsRequest{
			ShortDesc:           "Sweep",
			EligibleClaimantIDs: []string{"member-alice"},
		},
		ScheduledDate: &date,
	}, "member-alice")
	if err != nil {
		t.Fatalf("创建任务失败: %v", err)
	}
	return task
}

// ── Create ──

func TestTaskCreate_Defaults(t *testing.T) {
	svc, _ := setupTestTaskService()
	task := createTestTask(t, svc)

	if task.Status != model.TaskActive {
		t.Errorf("期望 status=active，实际=%s", task.Status)
	}
	if task.Version != 1 {
		t.Errorf("期望 version=1，实际=%d", task.Version)
	}
	if task.Priority != model.PriorityMed {
		t.Errorf("期望默认优先级 med，实际=%s", task.Priority)
	}
}

func TestTaskCreate_BadWorkEstimate(t *testing.T) {
	svc, _ := setupTestTaskService()

	_, err := svc.Create(context.Background(), &dto.TaskRequest{
		TaskFieldsRequest: dto.TaskFieldsRequest{ShortDesc: "Sweep", WorkEstimate: "lots"},
	}, "member-alice")
	if ve, ok := pkgerrors.AsValidation(err); !ok || ve.Field != "work_estimate" {
		t.Errorf("期望 work_estimate 校验错误，实际: %v", err)
	}
}

func TestTaskCreate_UnknownClaimant(t *testing.T) {
	svc, _ := setupTestTaskService()

	_, err := svc.Create(context.Background(), &dto.TaskRequest{
		TaskFieldsRequest: dto.TaskFieldsRequest{
			ShortDesc:           "Sweep",
			EligibleClaimantIDs: []string{"member-ghost"},
		},
	}, "member-alice")
	if !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("期望 ErrMemberNotFound，实际: %v", err)
	}
}

// ── Update（乐观锁） ──

func TestTaskUpdate_Success(t *testing.T) {
	svc, _ := setupTestTaskService()
	task := createTestTask(t, svc)
	priority := model.PriorityHigh

	updated, err := svc.Update(context.Background(), task.TaskID, &dto.UpdateTaskRequest{
		Version:  1,
		Priority: &priority,
	}, "member-alice")
	if err != nil {
		t.Fatalf("Update 应成功: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("更新后版本应为 2，实际=%d", updated.Version)
	}
	if updated.Priority != model.PriorityHigh {
		t.Errorf("期望 priority=high，实际=%s", updated.Priority)
	}
}

func TestTaskUpdate_StaleVersion(t *testing.T) {
	svc, _ := setupTestTaskService()
	task := createTestTask(t, svc)
	priority := model.PriorityLow

	if _, err := svc.Update(context.Background(), task.TaskID, &dto.UpdateTaskRequest{Version: 1, Priority: &priority}, "member-alice"); err != nil {
		t.Fatalf("首次更新应成功: %v", err)
	}

	_, err := svc.Update(context.Background(), task.TaskID, &dto.UpdateTaskRequest{Version: 1, Priority: &priority}, "member-alice")
	if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("期望 ErrOptimisticLock，实际: %v", err)
	}
}

func TestTaskUpdate_AcceptWithoutDone(t *testing.T) {
	svc, _ := setupTestTaskService()
	task := createTestTask(t, svc)
	accepted := true

	_, err := svc.Update(context.Background(), task.TaskID, &dto.UpdateTaskRequest{
		Version:      1,
		WorkAccepted: &accepted,
	}, "member-alice")
	if ve, ok := pkgerrors.AsValidation(err); !ok || ve.Field != "work_accepted" {
		t.Errorf("期望 work_accepted 校验错误，实际: %v", err)
	}
}

func TestTaskUpdate_NotFound(t *testing.T) {
	svc, _ := setupTestTaskService()

	_, err := svc.Update(context.Background(), "missing", &dto.UpdateTaskRequest{Version: 1}, "member-alice")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("期望 ErrTaskNotFound，实际: %v", err)
	}
}

// ── MarkDone ──

func TestTaskMarkDone_NoReviewer(t *testing.T) {
	svc, _ := setupTestTaskService()
	task := createTestTask(t, svc)

	done, err := svc.MarkDone(context.Background(), task.TaskID, "member-alice")
	if err != nil {
		t.Fatalf("MarkDone 应成功: %v", err)
	}
	if done.Status != model.TaskDone || !done.WorkDone {
		t.Errorf("无审核人时应直接完成，实际 status=%s work_done=%v", done.Status, done.WorkDone)
	}
	if !done.IsClosed() {
		t.Error("任务应已关闭")
	}
}

func TestTaskMarkDone_WithReviewer(t *testing.T) {
	svc, repos := setupTestTaskService()
	task := createTestTask(t, svc)
	repos.task.tasks[task.TaskID].ReviewerID = strPtr("member-coord")

	done, err := svc.MarkDone(context.Background(), task.TaskID, "member-alice")
	if err != nil {
		t.Fatalf("MarkDone 应成功: %v", err)
	}
	if done.Status != model.TaskReviewable {
		t.Errorf("存在审核人时应进入待审核，实际 status=%s", done.Status)
	}
	if done.IsClosed() {
		t.Error("审核通过前任务不应关闭")
	}
}

func TestTaskMarkDone_Twice(t *testing.T) {
	svc, _ := setupTestTaskService()
	task := createTestTask(t, svc)
	_, _ = svc.MarkDone(context.Background(), task.TaskID, "member-alice")

	_, err := svc.MarkDone(context.Background(), task.TaskID, "member-alice")
	if !errors.Is(err, ErrTaskClosed) {
		t.Errorf("期望 ErrTaskClosed，实际: %v", err)
	}
}

// ── Notes ──

func TestTaskAddNote(t *testing.T) {
	svc, repos := setupTestTaskService()
	task := createTestTask(t, svc)

	note, err := svc.AddNote(context.Background(), task.TaskID, &dto.TaskNoteRequest{Content: "Broom is in the shed"}, "member-alice")
	if err != nil {
		t.Fatalf("AddNote 应成功: %v", err)
	}
	if note.AuthorID == nil || *note.AuthorID != "member-alice" {
		t.Errorf("备注作者应为当前成员，实际=%v", note.AuthorID)
	}
	if len(repos.taskNote.notes) != 1 {
		t.Errorf("期望 1 条备注，实际 %d", len(repos.taskNote.notes))
	}
}

func TestTaskAddNote_TaskMissing(t *testing.T) {
	svc, _ := setupTestTaskService()

	_, err := svc.AddNote(context.Background(), "missing", &dto.TaskNoteRequest{Content: "x"}, "member-alice")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("期望 ErrTaskNotFound，实际: %v", err)
	}
}
