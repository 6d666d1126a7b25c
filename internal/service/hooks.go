package service

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"bzwops/config"
	"bzwops/internal/hook"
	"bzwops/internal/model"
	"bzwops/internal/notify"
	"bzwops/internal/recurrence"
	"bzwops/internal/repository"
)

// ════════════════════════════════════════════════════════
// 保存后副作用
// ════════════════════════════════════════════════════════
//
// 处理器在保存请求内联执行；返回的错误只由 hook.Dispatcher 记录日志，
// 不会回滚已完成的保存。

var (
	workTradePrice25 = decimal.RequireFromString("25.00")
	workTradePrice10 = decimal.RequireFromString("10.00")
)

type hookHandlers struct {
	cfg      *config.Config
	repo     *repository.Repository
	notifier notify.Notifier
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

func newHookHandlers(cfg *config.Config, repo *repository.Repository, notifier notify.Notifier, logger *zap.Logger) *hookHandlers {
	return &hookHandlers{
		cfg:      cfg,
		repo:     repo,
		notifier: notifier,
		loc:      cfg.Tasks.Location(),
		now:      time.Now,
		logger:   logger,
	}
}

// RegisterHooks 把各模块的保存后副作用注册到 d；d 为 nil 时不注册
func RegisterHooks(d *hook.Dispatcher, cfg *config.Config, repo *repository.Repository, notifier notify.Notifier, logger *zap.Logger) {
	if d == nil {
		return
	}
	h := newHookHandlers(cfg, repo, notifier, logger)

	d.On(hook.MemberCreated, "create_default_worker", h.createDefaultWorker)
	d.On(hook.ClaimSaved, "staffing_update", h.staffingUpdate)
	d.On(hook.VisitSaved, "notify_checkin", h.notifyCheckIn)
	d.On(hook.VisitSaved, "maintenance_nag", h.maintenanceNag)
	d.On(hook.VisitSaved, "notify_staff_arrival", h.notifyStaffArrival)
	d.On(hook.WorkSaved, "credit_time_account", h.creditTimeAccount)
	d.On(hook.MembershipSaved, "debit_time_account", h.debitTimeAccount)
	d.On(hook.PlayLogSaved, "log_underwriting_broadcast", h.logUnderwritingBroadcast)
}

// ── 成员 ──

func (h *hookHandlers) createDefaultWorker(ctx context.Context, payload any) error {
	member, ok := payload.(*model.Member)
	if !ok {
		return fmt.Errorf("unexpected payload %T", payload)
	}
	_, err := ensureWorker(ctx, h.repo, member.MemberID)
	return err
}

// ensureWorker 查询成员的志愿者档案，不存在时创建
func ensureWorker(ctx context.Context, repo *repository.Repository, memberID string) (*model.Worker, error) {
	w, err := repo.Worker.GetByMemberID(ctx, memberID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	w = &model.Worker{MemberID: memberID}
	if err := repo.Worker.Create(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// ── 认领 ──

func (h *hookHandlers) staffingUpdate(ctx context.Context, payload any) error {
	claim, ok := payload.(*model.Claim)
	if !ok {
		return fmt.Errorf("unexpected payload %T", payload)
	}

	var verb string
	switch {
	case claim.Status == model.ClaimUninterested, claim.Status == model.ClaimAbandoned, claim.Status == model.ClaimExpired:
		verb = "will NOT"
	case claim.Status == model.ClaimCurrent && claim.DateVerified != nil:
		verb = "WILL"
	default:
		return nil
	}

	if err := h.loadClaim(ctx, claim); err != nil {
		return err
	}
	if claim.Task.ScheduledDate == nil {
		return nil
	}

	coordinator, err := h.coordinator(ctx)
	if err != nil || coordinator == nil {
		return err
	}

	content := fmt.Sprintf("%s %s work '%s' on %s",
		claim.Member.FriendlyName(), verb, claim.Task.ShortDesc, claim.Task.ScheduledDate.Format("Mon 01/02"))
	_, err = h.notifier.Notify(ctx, notify.Message{
		Recipient:   coordinator,
		Type:        model.NotifyStaffingUpdate,
		Title:       "Staffing Update",
		Content:     content,
		RelatedType: strPtr("claim"),
		RelatedID:   strPtr(claim.ClaimID),
	})
	return err
}

func (h *hookHandlers) loadClaim(ctx context.Context, claim *model.Claim) error {
	if claim.Task == nil {
		task, err := h.repo.Task.GetByID(ctx, claim.TaskID)
		if err != nil {
			return err
		}
		claim.Task = task
	}
	if claim.Member == nil {
		member, err := h.repo.Member.GetByID(ctx, claim.MemberID)
		if err != nil {
			return err
		}
		claim.Member = member
	}
	return nil
}

// ── 到访 ──

// notifyCheckIn 未缴费的访客到达时通知当班前台
func (h *hookHandlers) notifyCheckIn(ctx context.Context, payload any) error {
	visit, ok := payload.(*model.VisitEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T", payload)
	}
	if visit.EventType != model.VisitArrival {
		return nil
	}
	visitor, err := h.visitor(ctx, visit)
	if err != nil {
		return err
	}

	today := dayIn(visit.When.In(h.loc), h.loc)
	paid, err := isCurrentlyPaid(ctx, h.repo, visitor, today)
	if err != nil {
		return err
	}
	if paid {
		return nil
	}

	receptionist, err := h.scheduledReceptionist(ctx, today)
	if err != nil || receptionist == nil {
		return err
	}

	debounced, err := h.debounced(ctx, visit)
	if err != nil || !debounced {
		return err
	}

	name := strings.TrimSpace(visitor.FirstName + " " + visitor.LastName)
	if name == "" {
		name = "Anonymous"
	}
	_, err = h.notifier.Notify(ctx, notify.Message{
		Recipient:   receptionist,
		Type:        model.NotifyCheckIn,
		Title:       "Check-In",
		Content:     fmt.Sprintf("%s\n%s\n%s", visitor.Username, name, "Unpaid"),
		RelatedType: strPtr("visit"),
		RelatedID:   strPtr(visit.VisitEventID),
	})
	return err
}

// maintenanceNag 当天首次到达时，提醒访客完成可顺延的维护任务
func (h *hookHandlers) maintenanceNag(ctx context.Context, payload any) error {
	visit, ok := payload.(*model.VisitEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T", payload)
	}
	if visit.EventType != model.VisitArrival {
		return nil
	}

	local := visit.When.In(h.loc)
	today := dayIn(local, h.loc)
	startOfDay := today.Add(time.Duration(h.cfg.Tasks.DayStartHour) * time.Hour)
	arrivals, err := h.repo.Visit.CountArrivals(ctx, visit.MemberID, startOfDay, visit.When, "")
	if err != nil {
		return err
	}
	if arrivals > 1 {
		return nil
	}

	visitor, err := h.visitor(ctx, visit)
	if err != nil {
		return err
	}
	tagIDs := make([]string, 0, len(visitor.Tags))
	for _, t := range visitor.Tags {
		tagIDs = append(tagIDs, t.TagID)
	}
	tasks, err := h.repo.Task.ListNagCandidates(ctx, visitor.MemberID, tagIDs, today)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return nil
	}

	coordinator, err := h.coordinator(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for i := range tasks {
		if err := h.nagOne(ctx, visitor, coordinator, &tasks[i], today); err != nil {
			h.logger.Error("发送维护提醒失败", zap.String("task_id", tasks[i].TaskID), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *hookHandlers) nagOne(ctx context.Context, visitor, coordinator *model.Member, task *model.Task, today time.Time) error {
	token, digest, err := newNagToken(ctx, h.repo.Nag)
	if err != nil {
		return err
	}
	nag := &model.Nag{
		MemberID:     visitor.MemberID,
		AuthTokenMD5: digest,
		Tasks:        []model.Task{{TaskID: task.TaskID}},
	}
	if err := h.repo.Nag.Create(ctx, nag); err != nil {
		return err
	}

	message := ""
	if task.TemplateID != nil {
		last, err := h.repo.Task.LastDoneBefore(ctx, *task.TemplateID, today)
		switch {
		case err == nil && last.ScheduledDate != nil:
			days := recurrence.DaysBetween(*last.ScheduledDate, today)
			message = fmt.Sprintf("This task was last completed %d days ago!", days)
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
	}
	message += " If you can complete this task today, please click the link AFTER the work is done."

	sent, err := h.notifier.Notify(ctx, notify.Message{
		Recipient:   visitor,
		Type:        model.NotifyNag,
		Title:       task.ShortDesc,
		Content:     message,
		URL:         nagDoneURL(h.cfg.Server.BaseURL, token, task.TaskID),
		URLTitle:    "I Did It!",
		RelatedType: strPtr("task"),
		RelatedID:   strPtr(task.TaskID),
	})
	if !sent {
		// 未送达等于没有提醒过
		if delErr := h.repo.Nag.Delete(ctx, nag.NagID); delErr != nil {
			return errors.Join(err, delErr)
		}
		return err
	}

	if coordinator != nil && coordinator.MemberID != visitor.MemberID {
		_, err = h.notifier.Notify(ctx, notify.Message{
			Recipient:   coordinator,
			Type:        model.NotifyNagSent,
			Title:       task.ShortDesc,
			Content:     visitor.FriendlyName() + " was asked to work this task.",
			RelatedType: strPtr("nag"),
			RelatedID:   strPtr(nag.NagID),
		})
		return err
	}
	return nil
}

// notifyStaffArrival 当天有高优先级认领的成员到达时通知志愿者协调人
func (h *hookHandlers) notifyStaffArrival(ctx context.Context, payload any) error {
	visit, ok := payload.(*model.VisitEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T", payload)
	}
	if visit.EventType != model.VisitArrival {
		return nil
	}

	coordinator, err := h.coordinator(ctx)
	if err != nil || coordinator == nil {
		return err
	}

	debounced, err := h.debounced(ctx, visit)
	if err != nil || !debounced {
		return err
	}

	today := dayIn(visit.When.In(h.loc), h.loc)
	claims, err := h.repo.Claim.ListCurrentForDay(ctx, visit.MemberID, today, model.PriorityHigh)
	if err != nil {
		return err
	}
	if len(claims) == 0 || claims[0].Task == nil {
		return nil
	}

	visitor, err := h.visitor(ctx, visit)
	if err != nil {
		return err
	}
	task := claims[0].Task
	_, err = h.notifier.Notify(ctx, notify.Message{
		Recipient:   coordinator,
		Type:        model.NotifyStaffArrival,
		Title:       visitor.FriendlyName() + " Arrived",
		Content:     fmt.Sprintf("Scheduled to work %s at %s", task.ShortDesc, windowStart(task)),
		RelatedType: strPtr("task"),
		RelatedID:   strPtr(task.TaskID),
	})
	return err
}

// windowStart 任务的开始时刻，未设置时视为全天可做
func windowStart(t *model.Task) string {
	if c, ok := t.StartClock(); ok {
		return recurrence.FormatClock(c)
	}
	return "any time"
}

func (h *hookHandlers) visitor(ctx context.Context, visit *model.VisitEvent) (*model.Member, error) {
	if visit.Member != nil {
		return visit.Member, nil
	}
	member, err := h.repo.Member.GetByID(ctx, visit.MemberID)
	if err != nil {
		return nil, err
	}
	visit.Member = member
	return member, nil
}

// debounced 去抖窗口内该成员没有更早的到达记录
func (h *hookHandlers) debounced(ctx context.Context, visit *model.VisitEvent) (bool, error) {
	window := h.cfg.Tasks.VisitDebounce
	if window <= 0 {
		return true, nil
	}
	n, err := h.repo.Visit.CountArrivals(ctx, visit.MemberID, visit.When.Add(-window), visit.When, visit.VisitEventID)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// scheduledReceptionist 当天前台值守任务的有效认领人
func (h *hookHandlers) scheduledReceptionist(ctx context.Context, day time.Time) (*model.Member, error) {
	if h.cfg.Tasks.ReceptionTask == "" {
		return nil, nil
	}
	claim, err := h.repo.Claim.FindCurrentByTaskDesc(ctx, h.cfg.Tasks.ReceptionTask, day)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return claim.Member, nil
}

// coordinator 志愿者协调人，未配置或不存在时返回 nil
func (h *hookHandlers) coordinator(ctx context.Context) (*model.Member, error) {
	username := h.cfg.Tasks.VolunteerCoordinator
	if username == "" {
		return nil, nil
	}
	m, err := h.repo.Member.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.logger.Warn("志愿者协调人不存在", zap.String("username", username))
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// ── 工时账户 ──

// creditTimeAccount 有见证人的工作记录贷记到工时账户
func (h *hookHandlers) creditTimeAccount(ctx context.Context, payload any) error {
	work, ok := payload.(*model.Work)
	if !ok {
		return fmt.Errorf("unexpected payload %T", payload)
	}
	if work.WorkID == "" {
		return nil
	}
	// 重新保存时先撤销旧流水，见证人被移除后不再保留贷记
	if err := h.repo.TimeAccount.DeleteByWork(ctx, work.WorkID); err != nil {
		return err
	}
	if work.WitnessID == nil {
		return nil
	}

	claim := work.Claim
	if claim == nil {
		var err error
		if claim, err = h.repo.Claim.GetByID(ctx, work.ClaimID); err != nil {
			return err
		}
	}
	worker, err := ensureWorker(ctx, h.repo, claim.MemberID)
	if err != nil {
		return err
	}

	when := dayIn(work.WorkDate, h.loc)
	if work.WorkStartTime != nil {
		if c, err := recurrence.ParseClock(*work.WorkStartTime); err == nil {
			when = when.Add(c)
		}
	}
	workID := work.WorkID
	entry := &model.TimeAccountEntry{
		WorkerID:    worker.WorkerID,
		When:        when,
		Change:      work.Hours(),
		Explanation: "Work done on " + work.WorkDate.Format(dateLayout),
		WorkID:      &workID,
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	return h.repo.TimeAccount.Create(ctx, entry)
}

// debitTimeAccount 以工换会籍按售价扣减工时
func (h *hookHandlers) debitTimeAccount(ctx context.Context, payload any) error {
	mship, ok := payload.(*model.Membership)
	if !ok {
		return fmt.Errorf("unexpected payload %T", payload)
	}
	if mship.MembershipID == "" {
		return nil
	}
	// 类型改为非以工换会籍时，旧的扣减随之撤销
	if err := h.repo.TimeAccount.DeleteByMembership(ctx, mship.MembershipID); err != nil {
		return err
	}
	if mship.MembershipType != model.MembershipWorkTrade {
		return nil
	}

	worker, err := ensureWorker(ctx, h.repo, mship.MemberID)
	if err != nil {
		return err
	}

	var cost decimal.Decimal
	switch {
	case mship.SalePrice.Equal(workTradePrice25):
		cost = decimal.NewFromInt(-6)
	case mship.SalePrice.Equal(workTradePrice10):
		cost = decimal.NewFromInt(-9)
	default:
		// 先按 0 小时入账，待人工核对后修正
		h.logger.Error("以工换会籍售价异常",
			zap.String("membership_id", mship.MembershipID),
			zap.String("sale_price", mship.SalePrice.StringFixed(2)),
		)
		cost = decimal.Zero
	}

	membershipID := mship.MembershipID
	entry := &model.TimeAccountEntry{
		WorkerID:     worker.WorkerID,
		When:         dayIn(mship.StartDate, h.loc),
		Change:       cost,
		Explanation:  "Work-trade membership beginning " + mship.StartDate.Format(dateLayout),
		MembershipID: &membershipID,
	}
	return h.repo.TimeAccount.Create(ctx, entry)
}

// ── 电台赞助 ──

// logUnderwritingBroadcast 播出曲库中的广告曲目时，记录对应赞助协议的一次播出
func (h *hookHandlers) logUnderwritingBroadcast(ctx context.Context, payload any) error {
	entry, ok := payload.(*model.PlayLogEntry)
	if !ok {
		return fmt.Errorf("unexpected payload %T", payload)
	}
	if entry.TrackID == nil {
		return nil
	}
	track := entry.Track
	if track == nil {
		var err error
		if track, err = h.repo.Library.GetTrack(ctx, *entry.TrackID); err != nil {
			return err
		}
	}
	if track.TrackType != model.TrackCommercial {
		return nil
	}

	local := entry.Start.In(h.loc)
	agreements, err := h.repo.Underwriting.FindActiveByTrack(ctx, track.RadioDJID, dayIn(local, h.loc))
	if err != nil {
		return err
	}
	switch len(agreements) {
	case 0:
		h.logger.Error("找不到播出曲目对应的赞助协议",
			zap.String("track_id", track.TrackID), zap.Int("radiodj_id", track.RadioDJID))
		return nil
	case 1:
	default:
		h.logger.Error("播出曲目对应多个有效赞助协议",
			zap.String("track_id", track.TrackID), zap.Int("count", len(agreements)))
		return nil
	}

	agreement := &agreements[0]
	b := &model.UnderwritingBroadcast{
		AgreementID: agreement.AgreementID,
		WhenRead:    entry.Start,
	}
	if sched := bestScheduleMatch(agreement.Schedules, local); sched != nil {
		b.ScheduleID = &sched.ScheduleID
	}
	return h.repo.Underwriting.UpsertBroadcast(ctx, b)
}

// bestScheduleMatch 星期匹配且约定时刻与实际播出时刻最接近的排期
func bestScheduleMatch(schedules []model.UnderwritingSchedule, at time.Time) *model.UnderwritingSchedule {
	clock := recurrence.ClockOf(at)
	var (
		best     *model.UnderwritingSchedule
		bestDist time.Duration
	)
	for i := range schedules {
		s := &schedules[i]
		if !s.Pattern().Matches(at) {
			continue
		}
		c, err := recurrence.ParseClock(s.Time)
		if err != nil {
			continue
		}
		dist := clockDistance(c, clock)
		if best == nil || dist < bestDist {
			best, bestDist = s, dist
		}
	}
	return best
}

// clockDistance 两个当日时刻的距离，跨午夜取较短一侧
func clockDistance(a, b time.Duration) time.Duration {
	const day = 24 * time.Hour
	d := a - b
	if d < 0 {
		d = -d
	}
	if day-d < d {
		return day - d
	}
	return d
}

// ── 提醒令牌 ──

const nagTokenBytes = 24

// newNagToken 生成链接用令牌及其 md5，md5 在库内唯一
func newNagToken(ctx context.Context, nags repository.NagRepository) (token, digest string, err error) {
	for attempt := 0; attempt < 5; attempt++ {
		buf := make([]byte, nagTokenBytes)
		if _, err = rand.Read(buf); err != nil {
			return "", "", err
		}
		token = base64.RawURLEncoding.EncodeToString(buf)
		digest = tokenDigest(token)

		exists, err := nags.ExistsTokenMD5(ctx, digest)
		if err != nil {
			return "", "", err
		}
		if !exists {
			return token, digest, nil
		}
	}
	return "", "", errors.New("无法生成唯一的提醒令牌")
}

func tokenDigest(token string) string {
	sum := md5.Sum([]byte(token))
	return hex.EncodeToString(sum[:])
}

func nagDoneURL(baseURL, token, taskID string) string {
	return strings.TrimRight(baseURL, "/") + "/api/v1/nags/" + token + "/tasks/" + taskID + "/done"
}
