package handler

import "bzwops/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth     *AuthHandler
	Member   *MemberHandler
	Task     *TaskHandler
	Kmkr     *KmkrHandler
	Export   *ExportHandler
	Calendar *CalendarHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:     NewAuthHandler(svc.Auth),
		Member:   NewMemberHandler(svc.Member, svc.Membership, svc.Visit, svc.TimeAccount, svc.Notification),
		Task:     NewTaskHandler(svc.Template, svc.Task, svc.Claim, svc.Work, svc.Nag),
		Kmkr:     NewKmkrHandler(svc.Show, svc.Library, svc.Underwriting, svc.NowPlaying),
		Export:   NewExportHandler(svc.Export),
		Calendar: NewCalendarHandler(svc.Calendar),
	}
}
