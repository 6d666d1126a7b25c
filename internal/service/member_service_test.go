package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bzwops/internal/dto"
	"bzwops/internal/hook"
	"bzwops/internal/model"
	pkgerrors "bzwops/pkg/errors"
)

func setupTestMemberService() (*memberService, *mockRepos) {
	cfg := testConfig()
	repos := newMockRepos()
	d := hook.NewDispatcher(zap.NewNop())
	RegisterHooks(d, cfg, repos.repository(), &mockNotifier{}, zap.NewNop())

	svc := NewMemberService(cfg, repos.repository(), d, zap.NewNop()).(*memberService)
	svc.now = fixedNow(testAt("2026-03-04", "12:00"))
	return svc, repos
}

// ── Create ──

func TestMemberCreate_CreatesWorker(t *testing.T) {
	svc, repos := setupTestMemberService()

	resp, err := svc.Create(context.Background(), &dto.CreateMemberRequest{
		Username:  "alice",
		FirstName: "Alice",
		LastName:  "Smith",
	}, "member-admin")
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if resp.Role != model.RoleMember {
		t.Errorf("默认角色应为 member，实际=%s", resp.Role)
	}
	if resp.FriendlyName != "Alice Smith" {
		t.Errorf("期望称呼=Alice Smith，实际=%s", resp.FriendlyName)
	}
	if _, ok := repos.worker.workers[resp.ID]; !ok {
		t.Error("新成员应自动创建志愿者档案")
	}
}

func TestMemberCreate_UsernameTaken(t *testing.T) {
	svc, repos := setupTestMemberService()
	addMember(repos, "alice", "Alice", "Smith")

	_, err := svc.Create(context.Background(), &dto.CreateMemberRequest{Username: "alice"}, "member-admin")
	if !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("期望 ErrUsernameTaken，实际: %v", err)
	}
}

func TestMemberCreate_ChainedFamilyAnchor(t *testing.T) {
	svc, repos := setupTestMemberService()
	addMember(repos, "grandparent", "G", "P")
	parent := addMember(repos, "parent", "P", "P")
	parent.FamilyAnchorID = strPtr("member-grandparent")

	_, err := svc.Create(context.Background(), &dto.CreateMemberRequest{
		Username:       "kid",
		FamilyAnchorID: strPtr("member-parent"),
	}, "member-admin")
	if !errors.Is(err, ErrFamilyAnchorChained) {
		t.Errorf("期望 ErrFamilyAnchorChained，实际: %v", err)
	}
}

func TestMemberCreate_UnknownTag(t *testing.T) {
	svc, _ := setupTestMemberService()

	_, err := svc.Create(context.Background(), &dto.CreateMemberRequest{
		Username: "alice",
		TagIDs:   []string{"tag-missing"},
	}, "member-admin")
	if !errors.Is(err, ErrTagNotFound) {
		t.Errorf("期望 ErrTagNotFound，实际: %v", err)
	}
}

// ── GetByID ──

func TestMemberGetByID_CurrentlyPaid(t *testing.T) {
	svc, repos := setupTestMemberService()
	addMember(repos, "alice", "Alice", "Smith")
	_ = repos.membership.Create(context.Background(), &model.Membership{
		MemberID:       "member-alice",
		MembershipType: model.MembershipRegular,
		StartDate:      testDay("2026-03-04"),
		EndDate:        testDay("2026-04-03"),
	})

	resp, err := svc.GetByID(context.Background(), "member-alice")
	if err != nil {
		t.Fatalf("GetByID 应成功: %v", err)
	}
	if resp.IsCurrentlyPaid == nil || !*resp.IsCurrentlyPaid {
		t.Error("会员资格首日应视为已缴费")
	}
}

func TestMemberGetByID_Expired(t *testing.T) {
	svc, repos := setupTestMemberService()
	addMember(repos, "alice", "Alice", "Smith")
	_ = repos.membership.Create(context.Background(), &model.Membership{
		MemberID:       "member-alice",
		MembershipType: model.MembershipRegular,
		StartDate:      testDay("2026-02-01"),
		EndDate:        testDay("2026-03-03"),
	})

	resp, err := svc.GetByID(context.Background(), "member-alice")
	if err != nil {
		t.Fatalf("GetByID 应成功: %v", err)
	}
	if resp.IsCurrentlyPaid == nil || *resp.IsCurrentlyPaid {
		t.Error("过期的会员资格不应视为已缴费")
	}
}

func TestMemberGetByID_NotFound(t *testing.T) {
	svc, _ := setupTestMemberService()

	_, err := svc.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("期望 ErrMemberNotFound，实际: %v", err)
	}
}

// ════════════════════════════════════════════════════════
// 会员资格与到访
// ════════════════════════════════════════════════════════

func TestMembershipCreate_WorkTradeDebits(t *testing.T) {
	cfg := testConfig()
	repos := newMockRepos()
	d := hook.NewDispatcher(zap.NewNop())
	RegisterHooks(d, cfg, repos.repository(), &mockNotifier{}, zap.NewNop())
	svc := NewMembershipService(cfg, repos.repository(), d, zap.NewNop())
	addMember(repos, "alice", "Alice", "Smith")

	ms, err := svc.Create(context.Background(), &dto.MembershipRequest{
		MemberID:       "member-alice",
		MembershipType: model.MembershipWorkTrade,
		StartDate:      "2026-03-10",
		EndDate:        "2026-04-09",
		SalePrice:      "25",
	}, "member-admin")
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if !ms.SalePrice.Equal(decimal.NewFromInt(25)) {
		t.Errorf("期望售价 25，实际 %s", ms.SalePrice)
	}
	if len(repos.timeAccount.entries) != 1 || !repos.timeAccount.entries[0].Change.Equal(decimal.NewFromInt(-6)) {
		t.Errorf("以工换会籍应扣减 6 小时，实际 %+v", repos.timeAccount.entries)
	}
}

func TestMembershipCreate_EndBeforeStart(t *testing.T) {
	repos := newMockRepos()
	svc := NewMembershipService(testConfig(), repos.repository(), nil, zap.NewNop())
	addMember(repos, "alice", "Alice", "Smith")

	_, err := svc.Create(context.Background(), &dto.MembershipRequest{
		MemberID:       "member-alice",
		MembershipType: model.MembershipRegular,
		StartDate:      "2026-03-10",
		EndDate:        "2026-03-01",
	}, "member-admin")
	if ve, ok := pkgerrors.AsValidation(err); !ok || ve.Field != "end_date" {
		t.Errorf("期望 end_date 校验错误，实际: %v", err)
	}
}

func TestVisitRecord_FiresCheckIn(t *testing.T) {
	cfg := testConfig()
	repos := newMockRepos()
	notifier := &mockNotifier{}
	d := hook.NewDispatcher(zap.NewNop())
	RegisterHooks(d, cfg, repos.repository(), notifier, zap.NewNop())
	svc := NewVisitService(repos.repository(), d, zap.NewNop())
	seedReceptionist(repos)
	addMember(repos, "alice", "Alice", "Smith")

	v, err := svc.Record(context.Background(), &dto.VisitRequest{
		MemberID:  "member-alice",
		EventType: model.VisitArrival,
		When:      "2026-03-04T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("Record 应成功: %v", err)
	}
	if v.Method != "unknown" {
		t.Errorf("缺省签到方式应为 unknown，实际=%s", v.Method)
	}
	if len(notifier.byType(model.NotifyCheckIn)) != 1 {
		t.Errorf("未缴费成员到达应通知前台，实际 %d 条", len(notifier.byType(model.NotifyCheckIn)))
	}
}

func TestVisitRecord_MemberMissing(t *testing.T) {
	repos := newMockRepos()
	svc := NewVisitService(repos.repository(), nil, zap.NewNop())

	_, err := svc.Record(context.Background(), &dto.VisitRequest{MemberID: "missing", EventType: model.VisitArrival})
	if !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("期望 ErrMemberNotFound，实际: %v", err)
	}
}
