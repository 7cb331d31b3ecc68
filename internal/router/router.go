package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/supabase-community/auth-go"
	"go.uber.org/zap"

	"github.com/tutorhub/tutorhub/internal/config"
	"github.com/tutorhub/tutorhub/internal/middleware"
	"github.com/tutorhub/tutorhub/internal/modules/handler"
	"github.com/tutorhub/tutorhub/internal/modules/serializer"
)

type RouterDeps struct {
	Config              *config.Config
	Log                 *zap.Logger
	AuthClient          auth.Client
	SessionHandler      *handler.SessionHandler
	NotificationHandler *handler.NotificationHandler
	ChatHandler         *handler.ChatHandler
	SubjectHandler      *handler.SubjectHandler
	ChatbotHandler      *handler.ChatbotHandler
}

func NewRouter(d RouterDeps) *gin.Engine {
	// Initialize logger for serializer package
	serializer.SetLogger(d.Log)

	r := gin.New()
	r.Use(gin.Recovery())

	// Add OpenTelemetry middleware if enabled (using configuration system)
	if d.Config.Telemetry.Enabled && d.Config.Telemetry.OtlpEndpoint != "" {
		r.Use(middleware.OtelTracing(d.Config.App.Name))
		// Add trace ID to response header
		r.Use(middleware.TraceID())
	}

	r.Use(middleware.ZapLogger(d.Log))

	// health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, serializer.Response{Msg: "ok"}) })

	v1 := r.Group("/api/v1")
	{
		v1.Use(middleware.UserAuth(d.AuthClient))

		// ping endpoint
		v1.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, serializer.Response{Msg: "pong"}) })

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", d.SessionHandler.CreateRequest)
			sessions.GET("/mine", d.SessionHandler.ListMine)
			sessions.GET("/participations", d.SessionHandler.ListMyParticipations)
			sessions.POST("/join", d.SessionHandler.Join)

			sessions.GET("/pending", middleware.TeacherOnly(), d.SessionHandler.ListPending)

			sessions.GET("/:session_id", d.SessionHandler.GetSession)
			sessions.GET("/:session_id/participants", d.SessionHandler.ListParticipants)

			sessions.POST("/:session_id/approve", middleware.TeacherOnly(), d.SessionHandler.Approve)
			sessions.POST("/:session_id/reject", middleware.TeacherOnly(), d.SessionHandler.Reject)
			sessions.POST("/:session_id/start", middleware.TeacherOnly(), d.SessionHandler.Start)
			sessions.POST("/:session_id/end", middleware.TeacherOnly(), d.SessionHandler.End)
		}

		notifications := v1.Group("/notifications")
		{
			notifications.GET("", d.NotificationHandler.List)
			notifications.GET("/unread", d.NotificationHandler.ListUnread)
			notifications.GET("/stream", d.NotificationHandler.Stream)
			notifications.POST("/:notification_id/read", d.NotificationHandler.MarkRead)
		}

		chat := v1.Group("/chat/:space")
		{
			chat.POST("/messages", d.ChatHandler.Send)
			chat.GET("/messages", d.ChatHandler.History)
			chat.GET("/stream", d.ChatHandler.Stream)
		}

		subjects := v1.Group("/subjects")
		{
			subjects.GET("", d.SubjectHandler.ListSubjects)
			subjects.POST("", middleware.TeacherOnly(), d.SubjectHandler.CreateSubject)
			subjects.GET("/:subject_id/chapters", d.SubjectHandler.ListChapters)
			subjects.POST("/:subject_id/chapters", middleware.TeacherOnly(), d.SubjectHandler.CreateChapter)
		}

		chapters := v1.Group("/chapters")
		{
			chapters.GET("/:chapter_id/materials", d.SubjectHandler.ListMaterials)
			chapters.POST("/:chapter_id/materials", middleware.TeacherOnly(), d.SubjectHandler.UploadMaterial)
		}

		v1.GET("/materials/:material_id", d.SubjectHandler.GetMaterial)

		chatbot := v1.Group("/chatbot")
		{
			chatbot.POST("/ask", d.ChatbotHandler.Ask)
		}
	}
	return r
}
