package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"uncommon.org/progresstrack/internal/config"
	"uncommon.org/progresstrack/internal/middleware"
	"uncommon.org/progresstrack/pkg/storage"

	attachmentRepo "uncommon.org/progresstrack/internal/modules/attachment/repository"
	attachmentService "uncommon.org/progresstrack/internal/modules/attachment/service"

	notifHttp "uncommon.org/progresstrack/internal/modules/notification/delivery/http"
	notifService "uncommon.org/progresstrack/internal/modules/notification/service"

	searchService "uncommon.org/progresstrack/internal/modules/search/service"

	studentHttp "uncommon.org/progresstrack/internal/modules/student/delivery/http"
	studentRepo "uncommon.org/progresstrack/internal/modules/student/repository"
	studentService "uncommon.org/progresstrack/internal/modules/student/service"

	userHttp "uncommon.org/progresstrack/internal/modules/user/delivery/http"
	userRepo "uncommon.org/progresstrack/internal/modules/user/repository"
	userService "uncommon.org/progresstrack/internal/modules/user/service"
)

// Dependencies are the connections the server is built from. Exactly one of
// DB and Mongo is set. Redis and Meili are optional.
type Dependencies struct {
	Config  *config.Config
	DB      *gorm.DB
	Mongo   *mongo.Database
	Redis   *redis.Client
	Meili   meilisearch.ServiceManager
	Storage storage.AttachmentStore
	Logger  *slog.Logger
}

type Server struct {
	engine  *gin.Engine
	cleanup attachmentService.CleanupService
	cfg     *config.Config
	logger  *slog.Logger
}

func NewServer(deps Dependencies) (*Server, error) {
	cfg := deps.Config
	logger := deps.Logger

	var (
		students studentRepo.StudentRepository
		users    userRepo.UserRepository
	)
	if deps.Mongo != nil {
		students = studentRepo.NewMongoStudentRepository(deps.Mongo)
		users = userRepo.NewMongoUserRepository(deps.Mongo)
	} else {
		students = studentRepo.NewGormStudentRepository(deps.DB)
		users = userRepo.NewUserRepository(deps.DB)
	}

	opts := studentService.Options{
		Profile:        cfg.Student.Profile,
		MaxUploadBytes: cfg.Student.MaxUploadBytes,
		Logger:         logger,
	}

	var cleanupSvc attachmentService.CleanupService
	if deps.Redis != nil {
		cleanupSvc = attachmentService.NewCleanupService(attachmentRepo.NewPendingDeleteRepository(deps.Redis), deps.Storage, logger)
		opts.Cleanup = cleanupSvc
		opts.Cache = studentRepo.NewRedisDistinctCache(deps.Redis, cfg.Student.DistinctCacheTTL)
		opts.Events = notifService.NewNotificationService(deps.Redis)
	}

	var tokenIssuer userService.SearchTokenIssuer
	if deps.Meili != nil {
		meiliSvc := searchService.NewMeiliSearchService(deps.Meili, logger)
		opts.Search = meiliSvc
		tokenIssuer = meiliSvc
	}

	studentSvc, err := studentService.NewStudentService(students, deps.Storage, opts)
	if err != nil {
		return nil, err
	}
	studentHandler := studentHttp.NewStudentHandler(studentSvc)

	authSvc := userService.NewAuthService(users, deps.Redis, tokenIssuer, userService.AuthConfig{
		Secret:         cfg.Auth.JWTSecret,
		TokenTTL:       cfg.Auth.TokenTTL,
		LoginRateLimit: cfg.Auth.LoginRateLimit,
	}, logger)
	authHandler := userHttp.NewAuthHandler(authSvc)

	notificationHandler := notifHttp.NewNotificationHandler(deps.Redis, cfg.Origins(), logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	setupCORS(router, cfg.Origins())

	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz"},
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.Storage.Driver == storage.DriverFilesystem {
		router.Static(cfg.Storage.PublicURL, cfg.Storage.BasePath)
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.Auth.JWTSecret)

	api := router.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.GET("/profile", authMiddleware.RequireAuth(), authHandler.Profile)
	}

	// Reads are public, writes need a mentor token.
	studentsGroup := api.Group("/students")
	{
		studentsGroup.GET("", studentHandler.GetAllStudents)
		studentsGroup.GET("/filter", studentHandler.FilterStudents)
		studentsGroup.POST("/filter", studentHandler.FilterStudents)
		studentsGroup.GET("/hubs", studentHandler.GetHubs)
		studentsGroup.GET("/schools", studentHandler.GetSchools)
		studentsGroup.GET("/genders", studentHandler.GetGenders)
		studentsGroup.GET("/events", notificationHandler.HandleStudentEvents)
		studentsGroup.GET("/:id", studentHandler.GetStudent)
	}

	protected := studentsGroup.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		protected.POST("", studentHandler.CreateStudent)
		protected.PUT("/:id", studentHandler.UpdateStudent)
		protected.PATCH("/:id", studentHandler.UpdateStudent)
		protected.DELETE("/:id", studentHandler.DeleteStudent)
	}

	return &Server{
		engine:  router,
		cleanup: cleanupSvc,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Handler exposes the router for http.Server and tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// StartBackground launches the attachment cleanup worker when the pending
// queue is available. It stops when ctx is cancelled.
func (s *Server) StartBackground(ctx context.Context) {
	if s.cleanup == nil {
		s.logger.Info("attachment cleanup worker disabled (no redis)")
		return
	}
	go s.cleanup.StartCleanupWorker(ctx, s.cfg.Student.CleanupInterval)
}

func setupCORS(router *gin.Engine, origins []string) {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
