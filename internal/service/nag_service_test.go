package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"bzwops/internal/model"
)

func setupTestNagService() (*nagService, *mockRepos) {
	repos := newMockRepos()
	svc := NewNagService(repos.repository(), zap.NewNop()).(*nagService)
	svc.now = fixedNow(testAt("2026-03-04", "15:00"))
	return svc, repos
}

func seedNag(repos *mockRepos, token string, taskIDs ...string) *model.Nag {
	tasks := make([]model.Task, 0, len(taskIDs))
	for _, id := range taskIDs {
		tasks = append(tasks, model.Task{TaskID: id})
	}
	nag := &model.Nag{MemberID: "member-alice", AuthTokenMD5: tokenDigest(token), Tasks: tasks}
	_ = repos.nag.Create(context.Background(), nag)
	return nag
}

func seedOpenTask(repos *mockRepos) *model.Task {
	day := testDay("2026-03-04")
	task := &model.Task{ScheduledDate: &day, Status: model.TaskActive}
	task.ShortDesc = "Mop floor"
	task.Priority = model.PriorityMed
	_ = repos.task.Create(context.Background(), task)
	return task
}

func TestNagCompleteTask_Success(t *testing.T) {
	svc, repos := setupTestNagService()
	task := seedOpenTask(repos)
	nag := seedNag(repos, "tok-123", task.TaskID)

	done, err := svc.CompleteTask(context.Background(), "tok-123", task.TaskID)
	if err != nil {
		t.Fatalf("CompleteTask 应成功: %v", err)
	}
	if !done.WorkDone || done.Status != model.TaskDone {
		t.Errorf("任务应标记完成，实际 status=%s work_done=%v", done.Status, done.WorkDone)
	}
	if done.UpdatedBy == nil || *done.UpdatedBy != "member-alice" {
		t.Errorf("完成人应记为被提醒的成员，实际=%v", done.UpdatedBy)
	}
	if nag.ActedAt == nil || !nag.ActedAt.Equal(testAt("2026-03-04", "15:00")) {
		t.Errorf("应记录提醒处理时间，实际=%v", nag.ActedAt)
	}
}

func TestNagCompleteTask_Idempotent(t *testing.T) {
	svc, repos := setupTestNagService()
	task := seedOpenTask(repos)
	seedNag(repos, "tok-123", task.TaskID)

	if _, err := svc.CompleteTask(context.Background(), "tok-123", task.TaskID); err != nil {
		t.Fatalf("首次完成应成功: %v", err)
	}
	version := repos.task.tasks[task.TaskID].Version

	again, err := svc.CompleteTask(context.Background(), "tok-123", task.TaskID)
	if err != nil {
		t.Fatalf("重复点击链接不应报错: %v", err)
	}
	if !again.WorkDone {
		t.Error("任务应保持完成状态")
	}
	if repos.task.tasks[task.TaskID].Version != version {
		t.Error("重复点击不应再次写入任务")
	}
}

func TestNagCompleteTask_UnknownToken(t *testing.T) {
	svc, repos := setupTestNagService()
	task := seedOpenTask(repos)
	seedNag(repos, "tok-123", task.TaskID)

	_, err := svc.CompleteTask(context.Background(), "tok-other", task.TaskID)
	if !errors.Is(err, ErrNagNotFound) {
		t.Errorf("期望 ErrNagNotFound，实际: %v", err)
	}
}

func TestNagCompleteTask_TaskMismatch(t *testing.T) {
	svc, repos := setupTestNagService()
	task := seedOpenTask(repos)
	other := seedOpenTask(repos)
	seedNag(repos, "tok-123", task.TaskID)

	_, err := svc.CompleteTask(context.Background(), "tok-123", other.TaskID)
	if !errors.Is(err, ErrNagTaskMismatch) {
		t.Errorf("期望 ErrNagTaskMismatch，实际: %v", err)
	}
	if repos.task.tasks[other.TaskID].WorkDone {
		t.Error("不匹配的任务不应被标记完成")
	}
}

func TestNagCompleteTask_TaskDeleted(t *testing.T) {
	svc, repos := setupTestNagService()
	seedNag(repos, "tok-123", "task-gone")

	_, err := svc.CompleteTask(context.Background(), "tok-123", "task-gone")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("期望 ErrTaskNotFound，实际: %v", err)
	}
}
