package app

import (
	"context"
	"lms_backend/internal/config"
	"lms_backend/internal/controller"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/service"
	"lms_backend/internal/util"
	"lms_backend/pkg/configwatcher"
	"lms_backend/pkg/database"
	"lms_backend/pkg/errreport"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"
	"lms_backend/pkg/security"
	"lms_backend/pkg/tracing"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	limiters        *limiters
	cron            *cron.Cron
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user        *repository.UserRepository
	course      *repository.CourseRepository
	enrollment  *repository.EnrollmentRepository
	payment     *repository.PaymentRepository
	progress    *repository.ProgressRepository
	certificate *repository.CertificateRepository
	assignment  *repository.AssignmentRepository
	submission  *repository.SubmissionRepository
	feedback    *repository.FeedbackRepository
	settings    *repository.SettingsRepository
}

type services struct {
	auth         *service.AuthService
	storage      *service.StorageService
	notification *service.NotificationService
	settings     *service.SettingsService
	cascade      *service.CascadeService
	course       *service.CourseService
	enrollment   *service.EnrollmentService
	payment      *service.PaymentService
	certificate  *service.CertificateService
	progress     *service.ProgressService
	assignment   *service.AssignmentService
	feedback     *service.FeedbackService
}

type controllers struct {
	auth        *controller.AuthController
	course      *controller.CourseController
	enrollment  *controller.EnrollmentController
	progress    *controller.ProgressController
	certificate *controller.CertificateController
	assignment  *controller.AssignmentController
	admin       *controller.AdminController
	health      *controller.HealthController
}

type limiters struct {
	global   *security.KeyedLimiter
	progress *security.KeyedLimiter
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, cfg *config.Config) *repositories {
	return &repositories{
		user:        repository.NewUserRepository(db),
		course:      repository.NewCourseRepository(db),
		enrollment:  repository.NewEnrollmentRepository(db),
		payment:     repository.NewPaymentRepository(db),
		progress:    repository.NewProgressRepository(db),
		certificate: repository.NewCertificateRepository(db),
		assignment:  repository.NewAssignmentRepository(db),
		submission:  repository.NewSubmissionRepository(db),
		feedback:    repository.NewFeedbackRepository(db),
		settings: repository.NewSettingsRepository(db, model.PlatformSettings{
			PlatformName: cfg.Certificate.IssuerName,
			SupportEmail: cfg.Mail.FromAddress,
		}),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.notification = service.NewNotificationService(service.NewMailer(&cfg.Mail))
	s.auth = service.NewAuthService(repos.user, cfg)
	s.settings = service.NewSettingsService(repos.settings)
	s.cascade = service.NewCascadeService(db)

	s.course = service.NewCourseService(
		repos.course,
		repos.enrollment,
		repos.user,
		repos.feedback,
		s.storage,
		s.cascade,
		filepath.Join(cfg.Storage.LocalPath, "temp"),
	)

	// Redis 不可用时不缓存待支付订单，验签仍可进行
	var orders service.OrderCache
	if rdb != nil {
		orders = repository.NewRedisOrderCache(rdb, time.Duration(cfg.Payment.OrderTTLMinutes)*time.Minute)
	}

	s.enrollment = service.NewEnrollmentService(
		db,
		repos.course,
		repos.enrollment,
		repos.user,
		service.NewRazorpayGateway(&cfg.Payment),
		orders,
		s.notification,
		service.PaymentOptionsFromConfig(&cfg.Payment),
	)
	s.payment = service.NewPaymentService(
		service.NewSignatureVerifier(cfg.Payment.KeySecret),
		s.enrollment,
		repos.payment,
	)

	s.certificate = service.NewCertificateService(
		repos.certificate,
		repos.course,
		repos.user,
		repos.progress,
		s.settings,
		service.NewPDFCertificateRenderer(&cfg.Certificate),
		s.storage,
		s.notification,
		&cfg.Certificate,
	)
	s.progress = service.NewProgressService(db, repos.course, repos.enrollment, repos.progress, s.certificate)

	s.assignment = service.NewAssignmentService(repos.assignment, repos.submission, repos.course, repos.enrollment, s.storage)
	s.feedback = service.NewFeedbackService(repos.feedback, repos.course, repos.enrollment)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:        controller.NewAuthController(s.auth),
		course:      controller.NewCourseController(s.course, s.feedback),
		enrollment:  controller.NewEnrollmentController(s.enrollment, s.payment),
		progress:    controller.NewProgressController(s.progress),
		certificate: controller.NewCertificateController(s.certificate),
		assignment:  controller.NewAssignmentController(s.assignment),
		admin:       controller.NewAdminController(s.settings, s.cascade),
		health:      controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(a.limiters.global.Middleware(func(c *gin.Context) string {
		return c.ClientIP()
	}))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func rateWindow(cfg *config.RateLimitConfig) time.Duration {
	if cfg.WindowMinutes <= 0 {
		return time.Minute
	}
	return time.Duration(cfg.WindowMinutes) * time.Minute
}

// registerHotReload 支付下单参数与限流阈值支持热更新
func (a *App) registerHotReload() {
	a.RegisterConfigCallback(func(cfg *config.Config) {
		a.services.enrollment.SetOptions(service.PaymentOptionsFromConfig(&cfg.Payment))
		a.limiters.global.Update(cfg.RateLimit.MaxRequests, rateWindow(&cfg.RateLimit))
		a.limiters.progress.Update(cfg.RateLimit.ProgressPerMinute, time.Minute)
		logger.Log.Info("runtime settings reloaded",
			zap.Int64("min_order_amount", cfg.Payment.MinOrderAmount),
			zap.Int64("unit_multiplier", cfg.Payment.UnitMultiplier),
			zap.Int("progress_per_minute", cfg.RateLimit.ProgressPerMinute),
		)
	})
}

func (a *App) startBackgroundTasks(ctx context.Context, s *services) {
	spec := a.Config.Certificate.ReconcileCron
	if spec != "" {
		a.cron = cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
		_, err := a.cron.AddFunc(spec, func() {
			jobCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
			defer cancel()
			if _, err := s.certificate.Reconcile(jobCtx, 100); err != nil {
				logger.Log.Error("certificate reconcile error", zap.Error(err))
			}
		})
		if err != nil {
			logger.Log.Error("invalid certificate reconcile schedule", zap.String("spec", spec), zap.Error(err))
		} else {
			a.cron.Start()
		}
	}

	dir := a.Config.ConfigDir
	if dir == "" {
		dir = "configs"
	}
	err := configwatcher.Watch(ctx, dir, func(cfg *config.Config) {
		for _, cb := range a.configCallbacks {
			cb(cfg)
		}
	})
	if err != nil {
		logger.Log.Warn("config watcher disabled", zap.Error(err))
	}
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	errreport.Init(cfg.Rollbar.Token, cfg.Rollbar.Environment)

	db, err := database.InitDB(&cfg.Database, !cfg.IsRelease())
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}

	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Warn("Redis unavailable, pending orders will not be cached", zap.Error(err))
		rdb = nil
	}
	app.Redis = rdb

	repos := app.initRepositories(db, cfg)
	services := app.initServices(repos, cfg, db, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	if err := services.auth.SeedAdmin(context.Background()); err != nil {
		logger.Log.Error("Failed to seed admin account", zap.Error(err))
	}

	// 监控初始化
	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(&cfg.Tracing, cfg.Server.Mode)
		if err != nil {
			logger.Log.Error("Failed to initialize tracing", zap.Error(err))
		} else {
			app.tracer = tp
		}
	}

	app.limiters = &limiters{
		global:   security.NewKeyedLimiter(cfg.RateLimit.MaxRequests, rateWindow(&cfg.RateLimit)),
		progress: security.NewKeyedLimiter(cfg.RateLimit.ProgressPerMinute, time.Minute),
	}

	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.registerHotReload()
	return app
}

func (a *App) Run() {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	a.startBackgroundTasks(ctx, a.services)

	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	stop()
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
	a.limiters.global.Stop()
	a.limiters.progress.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
