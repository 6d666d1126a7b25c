package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"bzwops/config"
	"bzwops/internal/api/handler"
	"bzwops/internal/api/middleware"
	"bzwops/internal/model"
	"bzwops/pkg/jwt"
	"bzwops/pkg/redis"
)

const (
	maxBodyBytes     = 1 << 20
	publicRateLimit  = 30
	publicRateWindow = time.Minute

	// 电台网页挂件轮询的公开接口
	kmkrPublicPrefix = "/kmkr/"
)

// Setup 初始化并返回 Gin 路由引擎
//
// rdb 与 db 均可为 nil：rdb 为 nil 时跳过黑名单与限流，db 为 nil 时健康检查不探测数据库。
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, db *gorm.DB, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	var (
		blacklist middleware.Blacklist
		limiter   middleware.RateChecker
	)
	if rdb != nil {
		blacklist = rdb
		limiter = rdb
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger, kmkrPublicPrefix))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins, kmkrPublicPrefix))
	r.Use(middleware.BodyLimit(maxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── 电台公开接口（网页与流媒体元数据轮询）──
	kmkrPublic := r.Group(kmkrPublicPrefix)
	{
		kmkrPublic.GET("/now-playing", h.Kmkr.NowPlaying)
		kmkrPublic.GET("/now-playing-info", h.Kmkr.NowPlayingInfo)
	}

	staff := middleware.RoleAuth(model.RoleAdmin, model.RoleStaff)
	admin := middleware.RoleAuth(model.RoleAdmin)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		auth.Use(middleware.RateLimit(limiter, publicRateLimit, publicRateWindow))
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		// 提醒邮件中的完成链接，凭令牌访问
		v1.GET("/nags/:token/tasks/:task_id/done",
			middleware.RateLimit(limiter, publicRateLimit, publicRateWindow),
			h.Task.CompleteNagTask,
		)

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, blacklist))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.PUT("/auth/password", h.Auth.ChangePassword)

			// 成员模块
			members := authorized.Group("/members")
			{
				members.GET("/me", h.Member.GetMe)
				members.GET("", staff, h.Member.ListMembers)
				members.POST("", staff, h.Member.CreateMember)
				members.GET("/:id", h.Member.GetMember) // staff 或本人（Handler 层鉴权）
				members.PUT("/:id", staff, h.Member.UpdateMember)
				members.DELETE("/:id", admin, h.Member.DeleteMember)
				members.GET("/:id/worker", h.Member.GetWorker)
				members.PUT("/:id/worker", h.Member.UpdateWorker)
				members.GET("/:id/time-account", h.Member.GetTimeAccount)
				members.GET("/:id/memberships", h.Member.ListMemberships)
				members.GET("/:id/claims", h.Task.ListMemberClaims)
			}

			tags := authorized.Group("/tags")
			{
				tags.GET("", h.Member.ListTags)
				tags.POST("", staff, h.Member.CreateTag)
			}

			memberships := authorized.Group("/memberships", staff)
			{
				memberships.POST("", h.Member.CreateMembership)
				memberships.PUT("/:id", h.Member.UpdateMembership)
				memberships.DELETE("/:id", h.Member.DeleteMembership)
			}

			visits := authorized.Group("/visits", staff)
			{
				visits.POST("", h.Member.RecordVisit)
				visits.GET("", h.Member.ListVisits)
			}

			notifications := authorized.Group("/notifications")
			{
				notifications.GET("", h.Member.ListNotifications)
				notifications.PUT("/read-all", h.Member.MarkAllNotificationsRead)
				notifications.PUT("/:id/read", h.Member.MarkNotificationRead)
			}

			// 周期任务模板
			templates := authorized.Group("/templates")
			{
				templates.GET("", h.Task.ListTemplates)
				templates.GET("/:id", h.Task.GetTemplate)
				templates.POST("", staff, h.Task.CreateTemplate)
				templates.PUT("/:id", staff, h.Task.UpdateTemplate)
				templates.DELETE("/:id", staff, h.Task.DeleteTemplate)
				templates.POST("/generate", staff, h.Task.GenerateAll)
				templates.POST("/:id/generate", staff, h.Task.GenerateTasks)
			}

			// 任务
			tasks := authorized.Group("/tasks")
			{
				tasks.GET("", h.Task.ListTasks)
				tasks.GET("/:id", h.Task.GetTask)
				tasks.POST("", staff, h.Task.CreateTask)
				tasks.PUT("/:id", staff, h.Task.UpdateTask)
				tasks.DELETE("/:id", staff, h.Task.DeleteTask)
				tasks.POST("/:id/done", h.Task.MarkTaskDone)
				tasks.GET("/:id/notes", h.Task.ListNotes)
				tasks.POST("/:id/notes", h.Task.AddNote)
				tasks.GET("/:id/claims", h.Task.ListTaskClaims)
			}

			// 认领与工作记录
			claims := authorized.Group("/claims")
			{
				claims.POST("", h.Task.CreateClaim)
				claims.GET("/:id", h.Task.GetClaim)
				claims.PUT("/:id", h.Task.UpdateClaim)
				claims.GET("/:id/works", h.Task.ListWorks)
			}

			works := authorized.Group("/works")
			{
				works.POST("", h.Task.CreateWork)
				works.PUT("/:id", staff, h.Task.UpdateWork)
			}

			// 日历订阅
			calendar := authorized.Group("/calendar")
			{
				calendar.GET("/me.ics", h.Calendar.MyCalendar)
				calendar.GET("/members/:id", h.Calendar.MemberCalendar)
			}

			// 电台模块
			kmkr := authorized.Group("/kmkr")
			{
				kmkr.GET("/shows", h.Kmkr.ListShows)
				kmkr.GET("/shows/:id", h.Kmkr.GetShow)
				kmkr.POST("/shows", staff, h.Kmkr.CreateShow)
				kmkr.PUT("/shows/:id", staff, h.Kmkr.UpdateShow)
				kmkr.DELETE("/shows/:id", staff, h.Kmkr.DeleteShow)
				kmkr.POST("/shows/:id/times", staff, h.Kmkr.AddShowTime)
				kmkr.DELETE("/show-times/:id", staff, h.Kmkr.DeleteShowTime)
				kmkr.GET("/shows/:id/episodes", h.Kmkr.ListEpisodes)

				kmkr.GET("/personalities", h.Kmkr.ListPersonalities)
				kmkr.POST("/personalities", staff, h.Kmkr.CreatePersonality)

				kmkr.GET("/tracks", h.Kmkr.ListTracks)
				kmkr.POST("/tracks", staff, h.Kmkr.CreateTrack)

				kmkr.POST("/episodes", staff, h.Kmkr.CreateEpisode)
				kmkr.POST("/episodes/:id/tracks", staff, h.Kmkr.AddEpisodeTrack)
				kmkr.GET("/episodes/:id/broadcasts", h.Kmkr.ListEpisodeBroadcasts)
				kmkr.POST("/episodes/:id/broadcasts", staff, h.Kmkr.AddEpisodeBroadcast)

				kmkr.POST("/playlog", staff, h.Kmkr.LogPlay)
				kmkr.GET("/playlog", h.Kmkr.ListPlayLog)
				kmkr.POST("/playlog/:id/rating", h.Kmkr.RatePlay)

				kmkr.GET("/underwriting", staff, h.Kmkr.ListAgreements)
				kmkr.GET("/underwriting/:id", staff, h.Kmkr.GetAgreement)
				kmkr.POST("/underwriting", staff, h.Kmkr.CreateAgreement)
				kmkr.PUT("/underwriting/:id", staff, h.Kmkr.UpdateAgreement)
				kmkr.POST("/underwriting/:id/schedules", staff, h.Kmkr.AddUnderwritingSchedule)
				kmkr.GET("/underwriting/:id/broadcasts", staff, h.Kmkr.ListUnderwritingBroadcasts)
				kmkr.DELETE("/underwriting-schedules/:id", staff, h.Kmkr.DeleteUnderwritingSchedule)
			}

			// 导出模块
			export := authorized.Group("/export")
			{
				export.GET("/time-account/:member_id", h.Export.ExportTimeAccount)
				export.GET("/underwriting/:id", staff, h.Export.ExportUnderwriting)
			}
		}
	}

	return r
}
