package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bzwops/config"
	"bzwops/internal/model"
	"bzwops/internal/notify"
	"bzwops/internal/recurrence"
	"bzwops/internal/repository"
	pkgerrors "bzwops/pkg/errors"
	"bzwops/pkg/redis"
)

// ── Mock 聚合 ──

type mockRepos struct {
	member       *mockMemberRepo
	tag          *mockTagRepo
	worker       *mockWorkerRepo
	membership   *mockMembershipRepo
	visit        *mockVisitRepo
	template     *mockTemplateRepo
	task         *mockTaskRepo
	taskNote     *mockTaskNoteRepo
	claim        *mockClaimRepo
	work         *mockWorkRepo
	nag          *mockNagRepo
	timeAccount  *mockTimeAccountRepo
	notification *mockNotificationRepo
	show         *mockShowRepo
	library      *mockLibraryRepo
	underwriting *mockUnderwritingRepo
}

func newMockRepos() *mockRepos {
	task := newMockTaskRepo()
	return &mockRepos{
		member:       newMockMemberRepo(),
		tag:          newMockTagRepo(),
		worker:       newMockWorkerRepo(),
		membership:   newMockMembershipRepo(),
		visit:        &mockVisitRepo{},
		template:     newMockTemplateRepo(task),
		task:         task,
		taskNote:     &mockTaskNoteRepo{},
		claim:        newMockClaimRepo(),
		work:         newMockWorkRepo(),
		nag:          newMockNagRepo(),
		timeAccount:  &mockTimeAccountRepo{},
		notification: &mockNotificationRepo{},
		show:         newMockShowRepo(),
		library:      newMockLibraryRepo(),
		underwriting: newMockUnderwritingRepo(),
	}
}

func (m *mockRepos) repository() *repository.Repository {
	return &repository.Repository{
		Member:       m.member,
		Tag:          m.tag,
		Worker:       m.worker,
		Membership:   m.membership,
		Visit:        m.visit,
		Template:     m.template,
		Task:         m.task,
		TaskNote:     m.taskNote,
		Claim:        m.claim,
		Work:         m.work,
		Nag:          m.nag,
		TimeAccount:  m.timeAccount,
		Notification: m.notification,
		Show:         m.show,
		Library:      m.library,
		Underwriting: m.underwriting,
	}
}

// ── Mock MemberRepository ──

type mockMemberRepo struct {
	members map[string]*model.Member
}

func newMockMemberRepo() *mockMemberRepo {
	return &mockMemberRepo{members: make(map[string]*model.Member)}
}

func (m *mockMemberRepo) Create(_ context.Context, member *model.Member) error {
	if member.MemberID == "" {
		member.MemberID = "member-" + member.Username
	}
	m.members[member.MemberID] = member
	return nil
}

func (m *mockMemberRepo) GetByID(_ context.Context, id string) (*model.Member, error) {
	if u, ok := m.members[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockMemberRepo) GetByUsername(_ context.Context, username string) (*model.Member, error) {
	for _, u := range m.members {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockMemberRepo) Update(_ context.Context, member *model.Member) error {
	m.members[member.MemberID] = member
	return nil
}

func (m *mockMemberRepo) Delete(_ context.Context, id, _ string) error {
	delete(m.members, id)
	return nil
}

func (m *mockMemberRepo) List(_ context.Context, offset, limit int) ([]model.Member, int64, error) {
	var all []model.Member
	for _, u := range m.members {
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Username < all[j].Username })
	total := int64(len(all))
	if offset > len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockMemberRepo) CountFamilyMembers(_ context.Context, anchorID string) (int64, error) {
	var n int64
	for _, u := range m.members {
		if u.FamilyAnchorID != nil && *u.FamilyAnchorID == anchorID {
			n++
		}
	}
	return n, nil
}

func (m *mockMemberRepo) ReplaceTags(_ context.Context, member *model.Member, tags []model.Tag) error {
	member.Tags = tags
	return nil
}

// ── Mock TagRepository ──

type mockTagRepo struct {
	tags map[string]*model.Tag
}

func newMockTagRepo() *mockTagRepo {
	return &mockTagRepo{tags: make(map[string]*model.Tag)}
}

func (m *mockTagRepo) Create(_ context.Context, tag *model.Tag) error {
	if tag.TagID == "" {
		tag.TagID = "tag-" + tag.Name
	}
	m.tags[tag.TagID] = tag
	return nil
}

func (m *mockTagRepo) List(_ context.Context) ([]model.Tag, error) {
	var result []model.Tag
	for _, t := range m.tags {
		result = append(result, *t)
	}
	return result, nil
}

func (m *mockTagRepo) GetByIDs(_ context.Context, ids []string) ([]model.Tag, error) {
	var result []model.Tag
	for _, id := range ids {
		if t, ok := m.tags[id]; ok {
			result = append(result, *t)
		}
	}
	return result, nil
}

// ── Mock WorkerRepository ──

type mockWorkerRepo struct {
	workers map[string]*model.Worker // key: member_id
}

func newMockWorkerRepo() *mockWorkerRepo {
	return &mockWorkerRepo{workers: make(map[string]*model.Worker)}
}

func (m *mockWorkerRepo) Create(_ context.Context, w *model.Worker) error {
	if w.WorkerID == "" {
		w.WorkerID = "worker-" + w.MemberID
	}
	m.workers[w.MemberID] = w
	return nil
}

func (m *mockWorkerRepo) GetByMemberID(_ context.Context, memberID string) (*model.Worker, error) {
	if w, ok := m.workers[memberID]; ok {
		return w, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWorkerRepo) Update(_ context.Context, w *model.Worker) error {
	m.workers[w.MemberID] = w
	return nil
}

// ── Mock MembershipRepository ──

type mockMembershipRepo struct {
	memberships map[string]*model.Membership
	seq         int
}

func newMockMembershipRepo() *mockMembershipRepo {
	return &mockMembershipRepo{memberships: make(map[string]*model.Membership)}
}

func (m *mockMembershipRepo) Create(_ context.Context, ms *model.Membership) error {
	if ms.MembershipID == "" {
		m.seq++
		ms.MembershipID = fmt.Sprintf("membership-%d", m.seq)
	}
	m.memberships[ms.MembershipID] = ms
	return nil
}

func (m *mockMembershipRepo) GetByID(_ context.Context, id string) (*model.Membership, error) {
	if ms, ok := m.memberships[id]; ok {
		return ms, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockMembershipRepo) Update(_ context.Context, ms *model.Membership) error {
	m.memberships[ms.MembershipID] = ms
	return nil
}

func (m *mockMembershipRepo) Delete(_ context.Context, id string) error {
	delete(m.memberships, id)
	return nil
}

func (m *mockMembershipRepo) ListByMember(_ context.Context, memberID string) ([]model.Membership, error) {
	var result []model.Membership
	for _, ms := range m.memberships {
		if ms.MemberID == memberID {
			result = append(result, *ms)
		}
	}
	return result, nil
}

func (m *mockMembershipRepo) CountCovering(_ context.Context, memberIDs []string, day time.Time) (int64, error) {
	var n int64
	for _, ms := range m.memberships {
		for _, id := range memberIDs {
			if ms.MemberID == id && ms.Covers(day) {
				n++
			}
		}
	}
	return n, nil
}

// ── Mock VisitRepository ──

type mockVisitRepo struct {
	visits []*model.VisitEvent
}

func (m *mockVisitRepo) Create(_ context.Context, v *model.VisitEvent) error {
	if v.VisitEventID == "" {
		v.VisitEventID = fmt.Sprintf("visit-%d", len(m.visits)+1)
	}
	m.visits = append(m.visits, v)
	return nil
}

func (m *mockVisitRepo) List(_ context.Context, memberID string, _, _ int) ([]model.VisitEvent, int64, error) {
	var result []model.VisitEvent
	for _, v := range m.visits {
		if memberID == "" || v.MemberID == memberID {
			result = append(result, *v)
		}
	}
	return result, int64(len(result)), nil
}

func (m *mockVisitRepo) CountArrivals(_ context.Context, memberID string, from, to time.Time, excludeID string) (int64, error) {
	var n int64
	for _, v := range m.visits {
		if v.MemberID != memberID || v.EventType != model.VisitArrival || v.VisitEventID == excludeID {
			continue
		}
		if v.When.Before(from) || v.When.After(to) {
			continue
		}
		n++
	}
	return n, nil
}

// ── Mock TemplateRepository ──

type mockTemplateRepo struct {
	templates map[string]*model.RecurringTaskTemplate
	tasks     *mockTaskRepo
	// staleGreatest 模拟另一实例在读取之后写入任务：总是返回无任务
	staleGreatest bool
}

func newMockTemplateRepo(tasks *mockTaskRepo) *mockTemplateRepo {
	return &mockTemplateRepo{templates: make(map[string]*model.RecurringTaskTemplate), tasks: tasks}
}

func (m *mockTemplateRepo) Create(_ context.Context, t *model.RecurringTaskTemplate) error {
	if t.TemplateID == "" {
		t.TemplateID = "tpl-" + t.ShortDesc
	}
	m.templates[t.TemplateID] = t
	return nil
}

func (m *mockTemplateRepo) GetByID(_ context.Context, id string) (*model.RecurringTaskTemplate, error) {
	if t, ok := m.templates[id]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTemplateRepo) Update(_ context.Context, t *model.RecurringTaskTemplate) error {
	m.templates[t.TemplateID] = t
	return nil
}

func (m *mockTemplateRepo) Delete(_ context.Context, id, _ string) error {
	delete(m.templates, id)
	return nil
}

func (m *mockTemplateRepo) List(_ context.Context, includeSuspended bool) ([]model.RecurringTaskTemplate, error) {
	var result []model.RecurringTaskTemplate
	for _, t := range m.templates {
		if t.Suspended && !includeSuspended {
			continue
		}
		result = append(result, *t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TemplateID < result[j].TemplateID })
	return result, nil
}

func (m *mockTemplateRepo) GreatestScheduledDate(_ context.Context, templateID string) (*time.Time, error) {
	if m.staleGreatest {
		return nil, nil
	}
	var greatest *time.Time
	for _, t := range m.tasks.tasks {
		if t.TemplateID == nil || *t.TemplateID != templateID || t.ScheduledDate == nil {
			continue
		}
		if greatest == nil || t.ScheduledDate.After(*greatest) {
			d := *t.ScheduledDate
			greatest = &d
		}
	}
	return greatest, nil
}

// ── Mock TaskRepository ──

type mockTaskRepo struct {
	tasks         map[string]*model.Task
	seq           int
	nagCandidates []model.Task
	claimed       map[string][]model.Task // key: member_id
}

func newMockTaskRepo() *mockTaskRepo {
	return &mockTaskRepo{tasks: make(map[string]*model.Task), claimed: make(map[string][]model.Task)}
}

func (m *mockTaskRepo) Create(_ context.Context, t *model.Task) error {
	if t.TaskID == "" {
		m.seq++
		t.TaskID = fmt.Sprintf("task-%d", m.seq)
	}
	if t.Version == 0 {
		t.Version = 1
	}
	m.tasks[t.TaskID] = t
	return nil
}

// BatchCreate 与唯一索引 (template_id, scheduled_date) 一致：已存在则跳过
func (m *mockTaskRepo) BatchCreate(ctx context.Context, tasks []model.Task) ([]model.Task, error) {
	var created []model.Task
	for i := range tasks {
		if m.hasTemplateDate(&tasks[i]) {
			continue
		}
		if err := m.Create(ctx, &tasks[i]); err != nil {
			return nil, err
		}
		created = append(created, tasks[i])
	}
	return created, nil
}

func (m *mockTaskRepo) hasTemplateDate(t *model.Task) bool {
	if t.TemplateID == nil || t.ScheduledDate == nil {
		return false
	}
	for _, e := range m.tasks {
		if e.TemplateID != nil && *e.TemplateID == *t.TemplateID &&
			e.ScheduledDate != nil && e.ScheduledDate.Equal(*t.ScheduledDate) {
			return true
		}
	}
	return false
}

func (m *mockTaskRepo) GetByID(_ context.Context, id string) (*model.Task, error) {
	if t, ok := m.tasks[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTaskRepo) Update(_ context.Context, t *model.Task) error {
	stored, ok := m.tasks[t.TaskID]
	if !ok || stored.Version != t.Version {
		return pkgerrors.ErrOptimisticLock
	}
	t.Version++
	cp := *t
	m.tasks[t.TaskID] = &cp
	return nil
}

func (m *mockTaskRepo) Delete(_ context.Context, id, _ string) error {
	delete(m.tasks, id)
	return nil
}

func (m *mockTaskRepo) List(_ context.Context, filter repository.TaskFilter, offset, limit int) ([]model.Task, int64, error) {
	var all []model.Task
	for _, t := range m.tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.TemplateID != "" && (t.TemplateID == nil || *t.TemplateID != filter.TemplateID) {
			continue
		}
		all = append(all, *t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].TaskID < all[j].TaskID })
	total := int64(len(all))
	if offset > len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockTaskRepo) ListNagCandidates(_ context.Context, _ string, _ []string, _ time.Time) ([]model.Task, error) {
	return m.nagCandidates, nil
}

func (m *mockTaskRepo) LastDoneBefore(_ context.Context, templateID string, day time.Time) (*model.Task, error) {
	var last *model.Task
	for _, t := range m.tasks {
		if t.TemplateID == nil || *t.TemplateID != templateID || !t.WorkDone || t.ScheduledDate == nil {
			continue
		}
		if !t.ScheduledDate.Before(day) {
			continue
		}
		if last == nil || t.ScheduledDate.After(*last.ScheduledDate) {
			last = t
		}
	}
	if last == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return last, nil
}

func (m *mockTaskRepo) ListClaimedBy(_ context.Context, memberID string, _, _ time.Time) ([]model.Task, error) {
	return m.claimed[memberID], nil
}

// ── Mock TaskNoteRepository ──

type mockTaskNoteRepo struct {
	notes []model.TaskNote
}

func (m *mockTaskNoteRepo) Create(_ context.Context, note *model.TaskNote) error {
	note.TaskNoteID = fmt.Sprintf("note-%d", len(m.notes)+1)
	m.notes = append(m.notes, *note)
	return nil
}

func (m *mockTaskNoteRepo) ListByTask(_ context.Context, taskID string) ([]model.TaskNote, error) {
	var result []model.TaskNote
	for _, n := range m.notes {
		if n.TaskID == taskID {
			result = append(result, n)
		}
	}
	return result, nil
}

// ── Mock ClaimRepository ──

type mockClaimRepo struct {
	claims        map[string]*model.Claim
	seq           int
	currentForDay map[string][]model.Claim // key: member_id
	reception     *model.Claim
}

func newMockClaimRepo() *mockClaimRepo {
	return &mockClaimRepo{claims: make(map[string]*model.Claim), currentForDay: make(map[string][]model.Claim)}
}

func (m *mockClaimRepo) Create(_ context.Context, c *model.Claim) error {
	if c.ClaimID == "" {
		m.seq++
		c.ClaimID = fmt.Sprintf("claim-%d", m.seq)
	}
	m.claims[c.ClaimID] = c
	return nil
}

func (m *mockClaimRepo) GetByID(_ context.Context, id string) (*model.Claim, error) {
	if c, ok := m.claims[id]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockClaimRepo) Update(_ context.Context, c *model.Claim) error {
	m.claims[c.ClaimID] = c
	return nil
}

func (m *mockClaimRepo) ListByTask(_ context.Context, taskID string) ([]model.Claim, error) {
	var result []model.Claim
	for _, c := range m.claims {
		if c.TaskID == taskID {
			result = append(result, *c)
		}
	}
	return result, nil
}

func (m *mockClaimRepo) ListByMember(_ context.Context, memberID string) ([]model.Claim, error) {
	var result []model.Claim
	for _, c := range m.claims {
		if c.MemberID == memberID {
			result = append(result, *c)
		}
	}
	return result, nil
}

func (m *mockClaimRepo) HasStatus(_ context.Context, taskID, memberID, status string) (bool, error) {
	for _, c := range m.claims {
		if c.TaskID == taskID && c.MemberID == memberID && c.Status == status {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockClaimRepo) ListCurrentForDay(_ context.Context, memberID string, _ time.Time, _ string) ([]model.Claim, error) {
	return m.currentForDay[memberID], nil
}

func (m *mockClaimRepo) FindCurrentByTaskDesc(_ context.Context, _ string, _ time.Time) (*model.Claim, error) {
	if m.reception == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return m.reception, nil
}

// ── Mock WorkRepository ──

type mockWorkRepo struct {
	works map[string]*model.Work
	seq   int
}

func newMockWorkRepo() *mockWorkRepo {
	return &mockWorkRepo{works: make(map[string]*model.Work)}
}

func (m *mockWorkRepo) Create(_ context.Context, w *model.Work) error {
	if w.WorkID == "" {
		m.seq++
		w.WorkID = fmt.Sprintf("work-%d", m.seq)
	}
	m.works[w.WorkID] = w
	return nil
}

func (m *mockWorkRepo) GetByID(_ context.Context, id string) (*model.Work, error) {
	if w, ok := m.works[id]; ok {
		return w, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWorkRepo) Update(_ context.Context, w *model.Work) error {
	m.works[w.WorkID] = w
	return nil
}

func (m *mockWorkRepo) ListByClaim(_ context.Context, claimID string) ([]model.Work, error) {
	var result []model.Work
	for _, w := range m.works {
		if w.ClaimID == claimID {
			result = append(result, *w)
		}
	}
	return result, nil
}

// ── Mock NagRepository ──

type mockNagRepo struct {
	nags map[string]*model.Nag
	seq  int
}

func newMockNagRepo() *mockNagRepo {
	return &mockNagRepo{nags: make(map[string]*model.Nag)}
}

func (m *mockNagRepo) Create(_ context.Context, nag *model.Nag) error {
	if nag.NagID == "" {
		m.seq++
		nag.NagID = fmt.Sprintf("nag-%d", m.seq)
	}
	m.nags[nag.NagID] = nag
	return nil
}

func (m *mockNagRepo) Delete(_ context.Context, id string) error {
	delete(m.nags, id)
	return nil
}

func (m *mockNagRepo) GetByTokenMD5(_ context.Context, digest string) (*model.Nag, error) {
	for _, n := range m.nags {
		if n.AuthTokenMD5 == digest {
			return n, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockNagRepo) ExistsTokenMD5(ctx context.Context, digest string) (bool, error) {
	_, err := m.GetByTokenMD5(ctx, digest)
	return err == nil, nil
}

func (m *mockNagRepo) MarkActed(_ context.Context, id string, at time.Time) error {
	n, ok := m.nags[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	n.ActedAt = &at
	return nil
}

// ── Mock TimeAccountRepository ──

type mockTimeAccountRepo struct {
	entries []model.TimeAccountEntry
}

func (m *mockTimeAccountRepo) Create(_ context.Context, e *model.TimeAccountEntry) error {
	e.EntryID = fmt.Sprintf("entry-%d", len(m.entries)+1)
	m.entries = append(m.entries, *e)
	return nil
}

func (m *mockTimeAccountRepo) DeleteByWork(_ context.Context, workID string) error {
	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.WorkID == nil || *e.WorkID != workID {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	return nil
}

func (m *mockTimeAccountRepo) DeleteByMembership(_ context.Context, membershipID string) error {
	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.MembershipID == nil || *e.MembershipID != membershipID {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	return nil
}

func (m *mockTimeAccountRepo) ListByWorker(_ context.Context, workerID string) ([]model.TimeAccountEntry, error) {
	var result []model.TimeAccountEntry
	for _, e := range m.entries {
		if e.WorkerID == workerID {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].When.Before(result[j].When) })
	return result, nil
}

func (m *mockTimeAccountRepo) Balance(_ context.Context, workerID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range m.entries {
		if e.WorkerID == workerID {
			sum = sum.Add(e.Change)
		}
	}
	return sum, nil
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct {
	items []*model.Notification
}

func (m *mockNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	n.NotificationID = fmt.Sprintf("notif-%d", len(m.items)+1)
	m.items = append(m.items, n)
	return nil
}

func (m *mockNotificationRepo) ListByMember(_ context.Context, memberID string, unreadOnly bool, _, _ int) ([]model.Notification, int64, error) {
	var result []model.Notification
	for _, n := range m.items {
		if n.MemberID != memberID || (unreadOnly && n.IsRead) {
			continue
		}
		result = append(result, *n)
	}
	return result, int64(len(result)), nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, id, memberID string) error {
	for _, n := range m.items {
		if n.NotificationID == id && n.MemberID == memberID {
			n.IsRead = true
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockNotificationRepo) MarkAllRead(_ context.Context, memberID string) error {
	for _, n := range m.items {
		if n.MemberID == memberID {
			n.IsRead = true
		}
	}
	return nil
}

// ── Mock ShowRepository ──

type mockShowRepo struct {
	shows         map[string]*model.Show
	personalities []model.OnAirPersonality
}

func newMockShowRepo() *mockShowRepo {
	return &mockShowRepo{shows: make(map[string]*model.Show)}
}

func (m *mockShowRepo) Create(_ context.Context, show *model.Show) error {
	if show.ShowID == "" {
		show.ShowID = "show-" + show.Title
	}
	m.shows[show.ShowID] = show
	return nil
}

func (m *mockShowRepo) GetByID(_ context.Context, id string) (*model.Show, error) {
	if s, ok := m.shows[id]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockShowRepo) Update(_ context.Context, show *model.Show) error {
	m.shows[show.ShowID] = show
	return nil
}

func (m *mockShowRepo) Delete(_ context.Context, id string) error {
	delete(m.shows, id)
	return nil
}

func (m *mockShowRepo) List(_ context.Context, activeOnly bool) ([]model.Show, error) {
	var result []model.Show
	for _, s := range m.shows {
		if activeOnly && !s.Active {
			continue
		}
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Title < result[j].Title })
	return result, nil
}

func (m *mockShowRepo) CreateShowTime(_ context.Context, st *model.ShowTime) error {
	s, ok := m.shows[st.ShowID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if st.ShowTimeID == "" {
		st.ShowTimeID = fmt.Sprintf("%s-time-%d", st.ShowID, len(s.ShowTimes)+1)
	}
	s.ShowTimes = append(s.ShowTimes, *st)
	return nil
}

func (m *mockShowRepo) DeleteShowTime(_ context.Context, id string) error {
	for _, s := range m.shows {
		kept := s.ShowTimes[:0]
		for _, st := range s.ShowTimes {
			if st.ShowTimeID != id {
				kept = append(kept, st)
			}
		}
		s.ShowTimes = kept
	}
	return nil
}

func (m *mockShowRepo) CreatePersonality(_ context.Context, p *model.OnAirPersonality) error {
	p.PersonalityID = "dj-" + p.Moniker
	m.personalities = append(m.personalities, *p)
	return nil
}

func (m *mockShowRepo) ListPersonalities(_ context.Context) ([]model.OnAirPersonality, error) {
	return m.personalities, nil
}

// ── Mock LibraryRepository ──

type mockLibraryRepo struct {
	tracks        map[string]*model.Track
	episodes      []model.Episode
	episodeTracks map[string]*model.EpisodeTrack
	broadcasts    []model.Broadcast
	playLog       []*model.PlayLogEntry
	ratings       []model.Rating
}

func newMockLibraryRepo() *mockLibraryRepo {
	return &mockLibraryRepo{
		tracks:        make(map[string]*model.Track),
		episodeTracks: make(map[string]*model.EpisodeTrack),
	}
}

func (m *mockLibraryRepo) CreateTrack(_ context.Context, t *model.Track) error {
	if t.TrackID == "" {
		t.TrackID = fmt.Sprintf("track-%d", t.RadioDJID)
	}
	m.tracks[t.TrackID] = t
	return nil
}

func (m *mockLibraryRepo) GetTrack(_ context.Context, id string) (*model.Track, error) {
	if t, ok := m.tracks[id]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockLibraryRepo) ListTracks(_ context.Context, _, _ int) ([]model.Track, int64, error) {
	var result []model.Track
	for _, t := range m.tracks {
		result = append(result, *t)
	}
	return result, int64(len(result)), nil
}

func (m *mockLibraryRepo) CreateEpisode(_ context.Context, e *model.Episode) error {
	e.EpisodeID = fmt.Sprintf("episode-%d", len(m.episodes)+1)
	m.episodes = append(m.episodes, *e)
	return nil
}

func (m *mockLibraryRepo) ListEpisodes(_ context.Context, showID string) ([]model.Episode, error) {
	var result []model.Episode
	for _, e := range m.episodes {
		if showID == "" || (e.ShowID != nil && *e.ShowID == showID) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockLibraryRepo) CreateEpisodeTrack(_ context.Context, et *model.EpisodeTrack) error {
	if et.EpisodeTrackID == "" {
		et.EpisodeTrackID = fmt.Sprintf("et-%d", len(m.episodeTracks)+1)
	}
	m.episodeTracks[et.EpisodeTrackID] = et
	return nil
}

func (m *mockLibraryRepo) GetEpisodeTrack(_ context.Context, id string) (*model.EpisodeTrack, error) {
	if et, ok := m.episodeTracks[id]; ok {
		return et, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockLibraryRepo) CreateBroadcast(_ context.Context, b *model.Broadcast) error {
	b.BroadcastID = fmt.Sprintf("broadcast-%d", len(m.broadcasts)+1)
	m.broadcasts = append(m.broadcasts, *b)
	return nil
}

func (m *mockLibraryRepo) ListBroadcasts(_ context.Context, episodeID string) ([]model.Broadcast, error) {
	var result []model.Broadcast
	for _, b := range m.broadcasts {
		if b.EpisodeID == episodeID {
			result = append(result, b)
		}
	}
	return result, nil
}

func (m *mockLibraryRepo) CreatePlayLog(_ context.Context, p *model.PlayLogEntry) error {
	if p.PlayLogEntryID == "" {
		p.PlayLogEntryID = fmt.Sprintf("play-%d", len(m.playLog)+1)
	}
	m.playLog = append(m.playLog, p)
	return nil
}

func (m *mockLibraryRepo) GetPlayLog(_ context.Context, id string) (*model.PlayLogEntry, error) {
	for _, p := range m.playLog {
		if p.PlayLogEntryID == id {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockLibraryRepo) LatestPlayLog(_ context.Context, before time.Time) (*model.PlayLogEntry, error) {
	var latest *model.PlayLogEntry
	for _, p := range m.playLog {
		if p.Start.After(before) {
			continue
		}
		if latest == nil || p.Start.After(latest.Start) {
			latest = p
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return latest, nil
}

func (m *mockLibraryRepo) ListPlayLog(_ context.Context, from, to time.Time) ([]model.PlayLogEntry, error) {
	var result []model.PlayLogEntry
	for _, p := range m.playLog {
		if !p.Start.Before(from) && !p.Start.After(to) {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockLibraryRepo) CreateRating(_ context.Context, r *model.Rating) error {
	r.RatingID = fmt.Sprintf("rating-%d", len(m.ratings)+1)
	m.ratings = append(m.ratings, *r)
	return nil
}

// ── Mock UnderwritingRepository ──

type mockUnderwritingRepo struct {
	agreements map[string]*model.UnderwritingAgreement
	broadcasts []model.UnderwritingBroadcast
	seq        int
}

func newMockUnderwritingRepo() *mockUnderwritingRepo {
	return &mockUnderwritingRepo{agreements: make(map[string]*model.UnderwritingAgreement)}
}

func (m *mockUnderwritingRepo) CreateAgreement(_ context.Context, a *model.UnderwritingAgreement) error {
	if a.AgreementID == "" {
		a.AgreementID = "uw-" + a.Sponsor
	}
	m.agreements[a.AgreementID] = a
	return nil
}

func (m *mockUnderwritingRepo) GetAgreement(_ context.Context, id string) (*model.UnderwritingAgreement, error) {
	if a, ok := m.agreements[id]; ok {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUnderwritingRepo) UpdateAgreement(_ context.Context, a *model.UnderwritingAgreement) error {
	m.agreements[a.AgreementID] = a
	return nil
}

func (m *mockUnderwritingRepo) ListAgreements(_ context.Context) ([]model.UnderwritingAgreement, error) {
	var result []model.UnderwritingAgreement
	for _, a := range m.agreements {
		result = append(result, *a)
	}
	return result, nil
}

func (m *mockUnderwritingRepo) FindActiveByTrack(_ context.Context, radioDJID int, day time.Time) ([]model.UnderwritingAgreement, error) {
	var result []model.UnderwritingAgreement
	for _, a := range m.agreements {
		if a.TrackID != nil && *a.TrackID == radioDJID && a.Active(day) {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *mockUnderwritingRepo) CountBroadcasts(_ context.Context, ids []string) (map[string]int64, error) {
	result := make(map[string]int64, len(ids))
	for _, b := range m.broadcasts {
		for _, id := range ids {
			if b.AgreementID == id {
				result[id]++
			}
		}
	}
	return result, nil
}

func (m *mockUnderwritingRepo) CreateSchedule(_ context.Context, s *model.UnderwritingSchedule) error {
	a, ok := m.agreements[s.AgreementID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	m.seq++
	s.ScheduleID = fmt.Sprintf("sched-%d", m.seq)
	a.Schedules = append(a.Schedules, *s)
	return nil
}

func (m *mockUnderwritingRepo) DeleteSchedule(_ context.Context, id string) error {
	for _, a := range m.agreements {
		kept := a.Schedules[:0]
		for _, s := range a.Schedules {
			if s.ScheduleID != id {
				kept = append(kept, s)
			}
		}
		a.Schedules = kept
	}
	return nil
}

func (m *mockUnderwritingRepo) UpsertBroadcast(_ context.Context, b *model.UnderwritingBroadcast) error {
	for i := range m.broadcasts {
		if m.broadcasts[i].AgreementID == b.AgreementID && m.broadcasts[i].WhenRead.Equal(b.WhenRead) {
			m.broadcasts[i].ScheduleID = b.ScheduleID
			return nil
		}
	}
	b.UnderwritingBroadcastID = fmt.Sprintf("uwb-%d", len(m.broadcasts)+1)
	m.broadcasts = append(m.broadcasts, *b)
	return nil
}

func (m *mockUnderwritingRepo) ListBroadcasts(_ context.Context, agreementID string) ([]model.UnderwritingBroadcast, error) {
	var result []model.UnderwritingBroadcast
	for _, b := range m.broadcasts {
		if b.AgreementID == agreementID {
			result = append(result, b)
		}
	}
	return result, nil
}

// ── Mock Notifier ──

type mockNotifier struct {
	messages []notify.Message
	fail     bool
}

func (n *mockNotifier) Notify(_ context.Context, msg notify.Message) (bool, error) {
	if n.fail {
		return false, fmt.Errorf("通知写入失败")
	}
	if msg.Recipient == nil {
		return false, nil
	}
	n.messages = append(n.messages, msg)
	return true, nil
}

func (n *mockNotifier) byType(typ string) []notify.Message {
	var result []notify.Message
	for _, m := range n.messages {
		if m.Type == typ {
			result = append(result, m)
		}
	}
	return result
}

// ── Mock Cache / TokenStore ──

type mockCache struct {
	data        map[string][]byte
	blacklisted map[string]bool
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte), blacklisted: make(map[string]bool)}
}

func (c *mockCache) GetCache(_ context.Context, key string) ([]byte, error) {
	if b, ok := c.data[key]; ok {
		return b, nil
	}
	return nil, redis.ErrCacheMiss
}

func (c *mockCache) SetCache(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.data[key] = value
	return nil
}

func (c *mockCache) BlacklistToken(_ context.Context, jti string, _ time.Duration) error {
	c.blacklisted[jti] = true
	return nil
}

func (c *mockCache) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	return c.blacklisted[jti], nil
}

// ── 测试辅助 ──

// testDay 返回 UTC 时区某日零点
func testDay(s string) time.Time {
	d, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return d
}

// testAt 返回 UTC 时区某日某时刻
func testAt(day, clock string) time.Time {
	c, err := recurrence.ParseClock(clock)
	if err != nil {
		panic(err)
	}
	return testDay(day).Add(c)
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// testConfig 单元测试使用的配置，时区固定为 UTC
func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{BaseURL: "http://bzw.test"},
		Auth: config.AuthConfig{
			JWTSecret:       "test-secret-key-for-unit-testing-2026",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
		},
		Tasks: config.TasksConfig{
			HorizonDays:          14,
			VolunteerCoordinator: "coord",
			ReceptionTask:        "Reception",
			VisitDebounce:        30 * time.Minute,
			DayStartHour:         4,
			Timezone:             "UTC",
		},
		Kmkr: config.KmkrConfig{NowPlayingCacheTTL: 5 * time.Second},
	}
}
