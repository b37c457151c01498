package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lms_backend/internal/config"
	"lms_backend/internal/controller"
	"lms_backend/internal/repository"
	"lms_backend/internal/service"
	"lms_backend/internal/util"
	"lms_backend/pkg/database"
	"lms_backend/pkg/kvstore"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"
	"lms_backend/pkg/security"
	"lms_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user          *repository.UserRepository
	course        *repository.CourseRepository
	progress      *repository.ProgressRepository
	order         *repository.OrderRepository
	studentCourse *repository.StudentCourseRepository
	approval      *repository.CertificateApprovalRepository
	notification  *repository.NotificationRepository
	liveSession   *repository.LiveSessionRepository
}

type services struct {
	auth         *service.AuthService
	storage      *service.StorageService
	course       *service.CourseService
	progress     *service.ProgressService
	order        *service.OrderService
	certificate  *service.CertificateService
	liveSession  *service.LiveSessionService
	notification *service.NotificationService
}

type controllers struct {
	auth         *controller.AuthController
	course       *controller.CourseController
	progress     *controller.ProgressController
	order        *controller.OrderController
	notification *controller.NotificationController
	liveSession  *controller.LiveSessionController
	media        *controller.MediaController
	user         *controller.UserController
	health       *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig 配置热更新入口，依次执行注册的回调
func (a *App) ApplyConfig(cfg *config.Config) {
	a.Config = cfg
	for _, callback := range a.configCallbacks {
		callback(cfg)
	}
	logger.Log.Info("Config reloaded")
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:          repository.NewUserRepository(db),
		course:        repository.NewCourseRepository(db),
		progress:      repository.NewProgressRepository(db),
		order:         repository.NewOrderRepository(db),
		studentCourse: repository.NewStudentCourseRepository(db),
		approval:      repository.NewCertificateApprovalRepository(db),
		notification:  repository.NewNotificationRepository(db),
		liveSession:   repository.NewLiveSessionRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}

	mailer := service.NewMailer(&cfg.Mail)

	// 短生命周期状态：有 Redis 用 Redis，否则退回进程内存储
	var otpStore kvstore.TTLStore
	if rdb != nil {
		otpStore = kvstore.NewRedisStore(rdb, "otp:")
	} else {
		otpStore = kvstore.NewMemoryStore()
	}

	s.storage = service.NewStorageService(cfg)
	s.notification = service.NewNotificationService(repos.notification, repos.user, mailer)
	s.auth = service.NewAuthService(repos.user, otpStore, mailer, cfg)
	s.course = service.NewCourseService(repos.course, repos.studentCourse, s.notification)
	s.progress = service.NewProgressService(repos.progress, repos.course, repos.studentCourse, s.notification)
	s.certificate = service.NewCertificateService(repos.progress, repos.course, repos.user, repos.approval, &cfg.Certificate)
	s.order = service.NewOrderService(
		repos.order,
		repos.course,
		repos.studentCourse,
		repos.user,
		service.NewRazorpayGateway(&cfg.Payment),
		s.notification,
		db,
	)
	s.liveSession = service.NewLiveSessionService(repos.liveSession, repos.course, repos.studentCourse, s.notification)

	return s
}

func (a *App) initControllers(s *services, repos *repositories, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:         controller.NewAuthController(s.auth),
		course:       controller.NewCourseController(s.course, s.certificate),
		progress:     controller.NewProgressController(s.progress, s.certificate),
		order:        controller.NewOrderController(s.order, &a.Config.Payment),
		notification: controller.NewNotificationController(repos.notification),
		liveSession:  controller.NewLiveSessionController(s.liveSession),
		media:        controller.NewMediaController(s.storage),
		user:         controller.NewUserController(repos.user),
		health:       controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config, rdb *redis.Client) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 10000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	var limiterStore security.LimiterStore
	if rdb != nil {
		limiterStore = security.NewRedisLimiterStore(rdb, maxRequests, window)
	} else {
		limiterStore = security.NewMemoryLimiterStore(maxRequests, window)
	}
	router.Use(security.RateLimiter(limiterStore))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 定时任务：过期未支付订单清理 + 定时发布课程
func (a *App) startBackgroundTasks(s *services) {
	expireAfter := time.Duration(a.Config.Payment.OrderExpireMinutes) * time.Minute

	go func() {
		ticker := time.NewTicker(time.Minute)
		for range ticker.C {
			if err := s.order.ExpireStaleOrders(expireAfter); err != nil {
				logger.Log.Error("stale order sweep error", zap.Error(err))
			}
			if err := s.course.PublishScheduled(); err != nil {
				logger.Log.Error("scheduled publish error", zap.Error(err))
			}
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// release 模式默认跳过迁移，--migrate / --migrate-only 强制执行
	if cfg.Server.Mode != "release" || cfg.ForceMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
		logger.Log.Info("Database migration completed")
	}

	// 仅迁移模式不初始化路由与后台任务
	if cfg.MigrateOnly {
		return &App{Config: cfg, DB: db}
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// Redis 缺席时降级到进程内实现，不阻塞启动
		logger.Log.Warn("Failed to initialize redis, using in-process fallbacks", zap.Error(err))
		rdb = nil
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, db, rdb)
	app.services = services
	controllers := app.initControllers(services, repos, db, rdb)

	// 证书签发参数支持热更新，其余配置改动仍需重启
	app.RegisterConfigCallback(func(c *config.Config) {
		services.certificate.UpdateConfig(&c.Certificate)
	})

	// 监控初始化
	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg, rdb)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("course-platform", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
			}
		}()
	}

	app.registerRoutes(router, controllers, repos, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
