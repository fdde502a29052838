// Package main runs the school gate HTTP server with SSE streams, WebSocket
// chat, and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/schoolgate/backend/config"
	"github.com/schoolgate/backend/internal/attendance"
	"github.com/schoolgate/backend/internal/auth"
	"github.com/schoolgate/backend/internal/chat"
	"github.com/schoolgate/backend/internal/events"
	"github.com/schoolgate/backend/internal/middleware"
	"github.com/schoolgate/backend/internal/notifications"
	"github.com/schoolgate/backend/internal/pickup"
	"github.com/schoolgate/backend/internal/schools"
	"github.com/schoolgate/backend/internal/students"
	"github.com/schoolgate/backend/internal/support"
	"github.com/schoolgate/backend/internal/teachers"
	"github.com/schoolgate/backend/internal/worker"
	"github.com/schoolgate/backend/pkg/database"
	"github.com/schoolgate/backend/pkg/queue"
	"github.com/schoolgate/backend/pkg/redis"
	"github.com/schoolgate/backend/pkg/response"
	"github.com/schoolgate/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewSystemPool(ctx, cfg.Database.SystemDSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	tenants := database.NewTenants(cfg.Database, logger)

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ReceiptsBucket:       cfg.AWS.ReceiptsBucket,
			AttachmentsBucket:    cfg.AWS.AttachmentsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth and directory
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)
	schoolRepo := schools.NewRepository(pool)
	schoolHandler := schools.NewHandler(schoolRepo, logger)

	// Students
	studentRepo := students.NewRepository(tenants)
	studentHandler := students.NewHandler(studentRepo, authRepo, schoolRepo, logger)

	// Attendance
	attendanceRepo := attendance.NewRepository(tenants)
	attendanceHandler := attendance.NewHandler(attendanceRepo, schoolRepo, jobQueue, logger)

	// Events
	eventRepo := events.NewRepository(tenants)
	eventService := events.NewService(eventRepo, studentRepo, authRepo, schoolRepo, logger)
	eventHandler := events.NewHandler(eventRepo, eventService, s3Client, logger)

	// Notifications
	notificationRepo := notifications.NewRepository(tenants)
	engine := notifications.NewEngine(notificationRepo, eventService, authRepo, schoolRepo,
		time.Duration(cfg.Streams.NotificationIntervalSec)*time.Second,
		time.Duration(cfg.Streams.EventsIntervalSec)*time.Second,
		logger)
	streamRegistry := notifications.NewStreamRegistry()
	notificationHandler := notifications.NewHandler(engine, notificationRepo, authRepo, schoolRepo, streamRegistry, logger)

	// Chat
	chatRepo := chat.NewRepository(tenants)
	chatPubSub := chat.NewRedisPubSub(rdb.Client, logger)
	chatHub := chat.NewHub(logger, chatPubSub, chatPubSub)
	chatHandler := chat.NewHandler(chatRepo, chatHub, s3Client, logger)

	// Pickups
	pickupRepo := pickup.NewRepository(tenants)
	pickupHandler := pickup.NewHandler(pickupRepo, logger)

	// Teachers
	teacherRepo := teachers.NewRepository(pool)
	teacherHandler := teachers.NewHandler(teacherRepo, logger)

	// Support tickets
	supportRepo := support.NewRepository(pool)
	supportHandler := support.NewHandler(supportRepo, logger)

	// Alert worker (in-process; the standalone binary covers scaled deployments)
	dispatcher := worker.NewAlertDispatcher(pool, jobQueue, cfg.Alerts.GatewayURL, cfg.Alerts.Token, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		response.OK(c, gin.H{"status": "ok", "streams": streamRegistry.Total()})
	})

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/guardian/register", authHandler.RegisterGuardian)
		authGroup.POST("/guardian/login", authHandler.LoginGuardian)
		authGroup.POST("/school/register", authHandler.RegisterSchool)
		authGroup.POST("/school/login", authHandler.LoginSchool)
		authGroup.POST("/admin/login", authHandler.LoginAdmin)
	}

	// School directory (public; feeds the guardian linking flow)
	router.GET("/schools", schoolHandler.List)
	router.GET("/schools/search", schoolHandler.Search)
	router.GET("/schools/:schoolId", schoolHandler.Get)
	router.GET("/schools/:schoolId/settings", schoolHandler.Settings)
	router.GET("/schools/:schoolId/classes", studentHandler.ClassesInSchool)
	router.GET("/schools/:schoolId/students/search", studentHandler.SearchInSchool)

	// Guardian side (JWT, guardian role)
	guardian := router.Group("/guardian")
	guardian.Use(middleware.JWT(jwtService), middleware.RequireRole(auth.RoleGuardian))
	{
		guardian.GET("/students", studentHandler.Linked)
		guardian.POST("/students/link", studentHandler.Link)
		guardian.GET("/events", eventHandler.Feed)
		guardian.POST("/schools/:schoolId/events/:eventId/confirm", eventHandler.Confirm)

		guardian.GET("/notifications/check", notificationHandler.Check)
		guardian.GET("/notifications/history", notificationHandler.History)
		guardian.GET("/streams/notifications", notificationHandler.StreamNotifications)
		guardian.GET("/streams/events", notificationHandler.StreamEvents)

		guardian.GET("/schools/:schoolId/students/:studentId/attendance", attendanceHandler.Month)
		guardian.POST("/schools/:schoolId/pickups", pickupHandler.Create)
		guardian.GET("/schools/:schoolId/pickups", pickupHandler.Mine)
	}

	// School side (JWT, school role)
	school := router.Group("/school")
	school.Use(middleware.JWT(jwtService), middleware.RequireRole(auth.RoleSchool))
	{
		school.PUT("/settings", schoolHandler.UpdateSettings)

		// GET /school/students?q= searches; without q it lists everyone.
		school.GET("/students", func(c *gin.Context) {
			if c.Query("q") != "" {
				studentHandler.Search(c)
				return
			}
			studentHandler.List(c)
		})
		school.POST("/students", studentHandler.Enroll)
		school.GET("/students/:studentId", studentHandler.Get)
		school.PUT("/students/:studentId", studentHandler.Update)
		school.DELETE("/students/:studentId", studentHandler.Delete)
		school.PUT("/students/:studentId/face", studentHandler.UpdateFace)
		school.GET("/students/:studentId/guardians", studentHandler.Guardians)
		school.GET("/students/:studentId/attendance", attendanceHandler.Month)

		school.GET("/classes", studentHandler.Classes)
		school.POST("/classes", studentHandler.CreateClass)
		school.GET("/classes/:classId/students", studentHandler.ClassStudents)

		school.POST("/attendance", attendanceHandler.Record)
		school.POST("/attendance/arrival", attendanceHandler.Arrival)
		school.POST("/attendance/departure", attendanceHandler.Departure)
		school.GET("/attendance", attendanceHandler.Recent)

		school.POST("/events", eventHandler.Create)
		school.GET("/events", eventHandler.List)
		school.PUT("/events/:eventId", eventHandler.Update)
		school.DELETE("/events/:eventId", eventHandler.Delete)
		school.GET("/events/:eventId/participants", eventHandler.Participants)
		school.POST("/events/:eventId/participants", eventHandler.SetParticipation)
		school.GET("/events/:eventId/participants/:studentId/receipt", eventHandler.ReceiptDownloadURL)

		school.GET("/teachers", teacherHandler.List)
		school.POST("/teachers", teacherHandler.Create)
		school.GET("/teachers/search", teacherHandler.Search)
		school.POST("/teachers/link", teacherHandler.Link)
		school.POST("/teachers/:teacherId/unlink", teacherHandler.Unlink)

		school.POST("/chat/broadcast", chatHandler.Broadcast)

		school.GET("/pickups", pickupHandler.Queue)
		school.PATCH("/pickups/:requestId", pickupHandler.Update)
	}

	// Chat (JWT; both roles, access checked per room)
	chatGroup := router.Group("/chat")
	chatGroup.Use(middleware.JWT(jwtService))
	{
		chatGroup.GET("/:schoolId/:studentId/messages", chatHandler.History)
		chatGroup.POST("/:schoolId/:studentId/messages", chatHandler.Post)
		chatGroup.POST("/:schoolId/:studentId/read", chatHandler.MarkRead)
		chatGroup.POST("/:schoolId/:studentId/attachment", chatHandler.UploadAttachment)
		// WebSocket (token in query; no Authorization header required)
		chatGroup.GET("/:schoolId/:studentId/ws", chatHandler.ServeWs)
	}

	// Support tickets: any authenticated account can open and follow its own
	// tickets; the admin queue and moderation endpoints are admin only.
	supportGroup := router.Group("/support")
	supportGroup.Use(middleware.JWT(jwtService))
	{
		supportGroup.POST("/tickets", supportHandler.Create)
		supportGroup.GET("/tickets", supportHandler.Mine)
		supportGroup.GET("/tickets/:ticketId/messages", supportHandler.Messages)
		supportGroup.POST("/tickets/:ticketId/messages", supportHandler.PostMessage)

		admin := supportGroup.Group("", middleware.RequireRole(auth.RoleAdmin))
		admin.GET("/admin/tickets", supportHandler.All)
		admin.PATCH("/tickets/:ticketId/status", supportHandler.UpdateStatus)
		admin.DELETE("/tickets/:ticketId", supportHandler.Delete)
	}

	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     router,
		ReadTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		// WriteTimeout stays 0 by default so SSE streams are not cut off.
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go dispatcher.Run(workerCtx)
	logger.Info("alert worker started")

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
