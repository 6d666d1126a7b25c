package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Member       MemberRepository
	Tag          TagRepository
	Worker       WorkerRepository
	Membership   MembershipRepository
	Visit        VisitRepository
	Template     TemplateRepository
	Task         TaskRepository
	TaskNote     TaskNoteRepository
	Claim        ClaimRepository
	Work         WorkRepository
	Nag          NagRepository
	TimeAccount  TimeAccountRepository
	Notification NotificationRepository
	Show         ShowRepository
	Library      LibraryRepository
	Underwriting UnderwritingRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Member:       NewMemberRepo(db),
		Tag:          NewTagRepo(db),
		Worker:       NewWorkerRepo(db),
		Membership:   NewMembershipRepo(db),
		Visit:        NewVisitRepo(db),
		Template:     NewTemplateRepo(db),
		Task:         NewTaskRepo(db),
		TaskNote:     NewTaskNoteRepo(db),
		Claim:        NewClaimRepo(db),
		Work:         NewWorkRepo(db),
		Nag:          NewNagRepo(db),
		TimeAccount:  NewTimeAccountRepo(db),
		Notification: NewNotificationRepo(db),
		Show:         NewShowRepo(db),
		Library:      NewLibraryRepo(db),
		Underwriting: NewUnderwritingRepo(db),
	}
}
