package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bzwops/internal/dto"
	"bzwops/internal/service"
	"bzwops/pkg/response"
)

// KmkrHandler 电台（节目、曲库、播出日志、赞助、正在播放）HTTP 处理器
type KmkrHandler struct {
	showSvc         service.ShowService
	librarySvc      service.LibraryService
	underwritingSvc service.UnderwritingService
	nowPlayingSvc   service.NowPlayingService
}

// NewKmkrHandler 创建 KmkrHandler
func NewKmkrHandler(
	showSvc service.ShowService,
	librarySvc service.LibraryService,
	underwritingSvc service.UnderwritingService,
	nowPlayingSvc service.NowPlayingService,
) *KmkrHandler {
	return &KmkrHandler{
		showSvc:         showSvc,
		librarySvc:      librarySvc,
		underwritingSvc: underwritingSvc,
		nowPlayingSvc:   nowPlayingSvc,
	}
}

// ════════════════════════════════════════════════════════
// 正在播放（公开）
// ════════════════════════════════════════════════════════

// NowPlaying 单行文本
// GET /kmkr/now-playing
func (h *KmkrHandler) NowPlaying(c *gin.Context) {
	text, err := h.nowPlayingSvc.Text(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "")
		return
	}

	response.Text(c, text)
}

// NowPlayingInfo 结构化信息，字段可能为 null
// GET /kmkr/now-playing-info
func (h *KmkrHandler) NowPlayingInfo(c *gin.Context) {
	info, err := h.nowPlayingSvc.Info(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.RawJSON(c, info)
}

// ════════════════════════════════════════════════════════
// 节目
// ════════════════════════════════════════════════════════

// ListShows 节目列表
// GET /api/v1/kmkr/shows?active=true
func (h *KmkrHandler) ListShows(c *gin.Context) {
	shows, err := h.showSvc.List(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": shows})
}

// GetShow 节目详情
// GET /api/v1/kmkr/shows/:id
func (h *KmkrHandler) GetShow(c *gin.Context) {
	show, err := h.showSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, show)
}

// CreateShow 创建节目
// POST /api/v1/kmkr/shows
func (h *KmkrHandler) CreateShow(c *gin.Context) {
	var req dto.ShowRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	show, err := h.showSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, show)
}

// UpdateShow 更新节目
// PUT /api/v1/kmkr/shows/:id
func (h *KmkrHandler) UpdateShow(c *gin.Context) {
	var req dto.ShowRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	show, err := h.showSvc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, show)
}

// DeleteShow 删除节目
// DELETE /api/v1/kmkr/shows/:id
func (h *KmkrHandler) DeleteShow(c *gin.Context) {
	if err := h.showSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, nil)
}

// AddShowTime 新增播出时段
// POST /api/v1/kmkr/shows/:id/times
func (h *KmkrHandler) AddShowTime(c *gin.Context) {
	var req dto.ShowTimeRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	st, err := h.showSvc.AddShowTime(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, st)
}

// DeleteShowTime 删除播出时段
// DELETE /api/v1/kmkr/show-times/:id
func (h *KmkrHandler) DeleteShowTime(c *gin.Context) {
	if err := h.showSvc.DeleteShowTime(c.Request.Context(), c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, nil)
}

// ListPersonalities 主持人列表
// GET /api/v1/kmkr/personalities
func (h *KmkrHandler) ListPersonalities(c *gin.Context) {
	list, err := h.showSvc.ListPersonalities(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// CreatePersonality 新增主持人
// POST /api/v1/kmkr/personalities
func (h *KmkrHandler) CreatePersonality(c *gin.Context) {
	var req dto.PersonalityRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	p, err := h.showSvc.CreatePersonality(c.Request.Context(), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, p)
}

// ════════════════════════════════════════════════════════
// 曲库与单集
// ════════════════════════════════════════════════════════

// ListTracks 曲目列表（分页）
// GET /api/v1/kmkr/tracks
func (h *KmkrHandler) ListTracks(c *gin.Context) {
	var req dto.PaginationRequest
	if !bindQuery(c, &req) {
		return
	}

	list, total, err := h.librarySvc.ListTracks(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// CreateTrack 新增曲目
// POST /api/v1/kmkr/tracks
func (h *KmkrHandler) CreateTrack(c *gin.Context) {
	var req dto.TrackRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	track, err := h.librarySvc.CreateTrack(c.Request.Context(), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, track)
}

// ListEpisodes 节目的单集
// GET /api/v1/kmkr/shows/:id/episodes
func (h *KmkrHandler) ListEpisodes(c *gin.Context) {
	list, err := h.librarySvc.ListEpisodes(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// CreateEpisode 新增单集
// POST /api/v1/kmkr/episodes
func (h *KmkrHandler) CreateEpisode(c *gin.Context) {
	var req dto.EpisodeRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	ep, err := h.librarySvc.CreateEpisode(c.Request.Context(), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, ep)
}

// AddEpisodeTrack 向单集添加曲目
// POST /api/v1/kmkr/episodes/:id/tracks
func (h *KmkrHandler) AddEpisodeTrack(c *gin.Context) {
	var req dto.EpisodeTrackRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	et, err := h.librarySvc.AddEpisodeTrack(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, et)
}

// ListEpisodeBroadcasts 单集的播出记录
// GET /api/v1/kmkr/episodes/:id/broadcasts
func (h *KmkrHandler) ListEpisodeBroadcasts(c *gin.Context) {
	list, err := h.librarySvc.ListBroadcasts(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// AddEpisodeBroadcast 登记单集播出
// POST /api/v1/kmkr/episodes/:id/broadcasts
func (h *KmkrHandler) AddEpisodeBroadcast(c *gin.Context) {
	var req dto.BroadcastRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	b, err := h.librarySvc.AddBroadcast(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, b)
}

// ════════════════════════════════════════════════════════
// 播出日志
// ════════════════════════════════════════════════════════

// LogPlay 登记播出日志（播出软件回调）
// POST /api/v1/kmkr/playlog
func (h *KmkrHandler) LogPlay(c *gin.Context) {
	var req dto.PlayLogRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := h.librarySvc.LogPlay(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, entry)
}

// ListPlayLog 时间范围内的播出日志
// GET /api/v1/kmkr/playlog?from=&to=
func (h *KmkrHandler) ListPlayLog(c *gin.Context) {
	var req dto.PlayLogListRequest
	if !bindQuery(c, &req) {
		return
	}

	list, err := h.librarySvc.ListPlayLog(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// RatePlay 听众给播出曲目评分
// POST /api/v1/kmkr/playlog/:id/rating
func (h *KmkrHandler) RatePlay(c *gin.Context) {
	var req dto.RatingRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	rating, err := h.librarySvc.Rate(c.Request.Context(), c.Param("id"), callerID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, rating)
}

// ════════════════════════════════════════════════════════
// 赞助协议
// ════════════════════════════════════════════════════════

// ListAgreements 赞助协议列表
// GET /api/v1/kmkr/underwriting
func (h *KmkrHandler) ListAgreements(c *gin.Context) {
	list, err := h.underwritingSvc.List(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// GetAgreement 协议详情（含已播出次数）
// GET /api/v1/kmkr/underwriting/:id
func (h *KmkrHandler) GetAgreement(c *gin.Context) {
	a, err := h.underwritingSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, a)
}

// CreateAgreement 新建赞助协议
// POST /api/v1/kmkr/underwriting
func (h *KmkrHandler) CreateAgreement(c *gin.Context) {
	var req dto.AgreementRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	a, err := h.underwritingSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, a)
}

// UpdateAgreement 更新赞助协议
// PUT /api/v1/kmkr/underwriting/:id
func (h *KmkrHandler) UpdateAgreement(c *gin.Context) {
	var req dto.AgreementRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	a, err := h.underwritingSvc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, a)
}

// AddUnderwritingSchedule 新增协议播出时刻
// POST /api/v1/kmkr/underwriting/:id/schedules
func (h *KmkrHandler) AddUnderwritingSchedule(c *gin.Context) {
	var req dto.UnderwritingScheduleRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	s, err := h.underwritingSvc.AddSchedule(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, s)
}

// DeleteUnderwritingSchedule 删除协议播出时刻
// DELETE /api/v1/kmkr/underwriting-schedules/:id
func (h *KmkrHandler) DeleteUnderwritingSchedule(c *gin.Context) {
	if err := h.underwritingSvc.DeleteSchedule(c.Request.Context(), c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, nil)
}

// ListUnderwritingBroadcasts 协议的播出记录
// GET /api/v1/kmkr/underwriting/:id/broadcasts
func (h *KmkrHandler) ListUnderwritingBroadcasts(c *gin.Context) {
	list, err := h.underwritingSvc.ListBroadcasts(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}
