package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/yourusername/examprep-api/internal/config"
	"github.com/yourusername/examprep-api/internal/handler"
	"github.com/yourusername/examprep-api/internal/handler/dto"
	"github.com/yourusername/examprep-api/internal/middleware"
	pgRepo "github.com/yourusername/examprep-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/examprep-api/internal/repository/redis"
	"github.com/yourusername/examprep-api/internal/service"
	"github.com/yourusername/examprep-api/internal/service/attemptmanager"
	ws "github.com/yourusername/examprep-api/internal/websocket"
	"github.com/yourusername/examprep-api/pkg/auth"
	"github.com/yourusername/examprep-api/pkg/database"
)

func main() {
	// .env нужен только локально, в контейнере переменные приходят из окружения
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	isProduction := gin.Mode() == gin.ReleaseMode

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), !isProduction)
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if err := database.MigrateDB(db, migrationsPath); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Контекст жизненного цикла фоновых горутин
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient, err := database.NewUniversalRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}

	// Инициализируем репозитории
	studentRepo := pgRepo.NewStudentRepo(db)
	testRepo := pgRepo.NewTestRepo(db)
	questionRepo := pgRepo.NewQuestionRepo(db)
	attemptRepo := pgRepo.NewAttemptRepo(db)
	enrollmentRepo := pgRepo.NewEnrollmentRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.ExpirationHrs, cfg.JWT.WSTicketExpirySec)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	// Настройки движка попыток
	attemptConfig := attemptmanager.DefaultConfig()
	attemptConfig.ViolationThreshold = cfg.Attempt.ViolationThreshold
	attemptConfig.SetSweepInterval(cfg.Attempt.SweepInterval())
	if cfg.Attempt.TestCacheTTLSec > 0 {
		attemptConfig.TestCacheTTL = time.Duration(cfg.Attempt.TestCacheTTLSec) * time.Second
	}
	if cfg.Attempt.StatsCacheTTLSec > 0 {
		attemptConfig.StatsCacheTTL = time.Duration(cfg.Attempt.StatsCacheTTLSec) * time.Second
	}

	// Инициализируем сервисы
	sessionService := service.NewSessionService(cacheRepo, time.Duration(cfg.Auth.SessionTTLHrs)*time.Hour)
	authService, err := service.NewAuthService(studentRepo, jwtService, sessionService, cfg.Auth.AdminEmails)
	if err != nil {
		log.Printf("Failed to initialize AuthService: %v", err)
		os.Exit(1)
	}
	catalogService := service.NewCatalogService(testRepo, questionRepo, cacheRepo, attemptConfig.TestCacheTTL)
	accessService := service.NewAccessService(enrollmentRepo)
	attemptService := service.NewAttemptService(attemptRepo, catalogService, accessService, cacheRepo, attemptConfig)

	var emailService service.EmailService = &service.NoopEmailService{}
	if cfg.Email.Enabled {
		resendService, errEmail := service.NewResendEmailService(cfg.Email.APIKey, cfg.Email.From)
		if errEmail != nil {
			log.Printf("Failed to initialize email service: %v", errEmail)
			os.Exit(1)
		}
		emailService = resendService
	}
	attemptService.SetResultNotifier(service.NewResultNotificationService(studentRepo, emailService))

	dto.RegisterGinValidators()

	// --- Инициализация WebSocket ---
	hub := ws.NewHub(ws.HubConfig{
		RegisterBuffer:    cfg.WebSocket.Buffers.RegisterBuffer,
		UnregisterBuffer:  cfg.WebSocket.Buffers.UnregisterBuffer,
		CleanupInterval:   time.Duration(cfg.WebSocket.Limits.CleanupInterval) * time.Second,
		InactivityTimeout: time.Duration(cfg.WebSocket.Limits.InactivityTimeout) * time.Second,
	})
	go hub.Run(ctx)
	wsManager := ws.NewManager(hub)

	var pubSubProvider ws.PubSubProvider = &ws.NoOpPubSub{}
	if cfg.WebSocket.Cluster.Enabled {
		log.Println("Инициализация Redis PubSub для событий попыток между экземплярами...")
		redisProvider, errProv := ws.NewRedisPubSub(redisClient)
		if errProv != nil {
			log.Printf("Ошибка при создании Redis PubSub провайдера: %v. Кластеризация WS будет неактивна.", errProv)
		} else {
			pubSubProvider = redisProvider
		}
	}
	clusterBus := ws.NewClusterBus(pubSubProvider, cfg.WebSocket.Cluster.AttemptEvents, cfg.WebSocket.Cluster.InstanceID)

	clientConfig := ws.DefaultClientConfig()
	if cfg.WebSocket.Buffers.ClientSendBuffer > 0 {
		clientConfig.BufferSize = cfg.WebSocket.Buffers.ClientSendBuffer
	}
	if cfg.WebSocket.Ping.Interval > 0 {
		clientConfig.PingInterval = time.Duration(cfg.WebSocket.Ping.Interval) * time.Second
	}
	if cfg.WebSocket.Limits.PongWait > 0 {
		clientConfig.PongWait = time.Duration(cfg.WebSocket.Limits.PongWait) * time.Second
	}
	if cfg.WebSocket.Limits.WriteWait > 0 {
		clientConfig.WriteWait = time.Duration(cfg.WebSocket.Limits.WriteWait) * time.Second
	}
	if cfg.WebSocket.Limits.MaxMessageSize > 0 {
		clientConfig.MaxMessageSize = int64(cfg.WebSocket.Limits.MaxMessageSize)
	}

	wsHandler := handler.NewWSHandler(ctx, hub, wsManager, attemptService, sessionService, jwtService, clusterBus, handler.WSHandlerConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Client:         clientConfig,
	})
	attemptService.SetEventPublisher(wsHandler)

	go func() {
		if err := wsHandler.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Attempt event listener stopped: %v", err)
		}
	}()
	// --- Конец инициализации WebSocket ---

	// Фоновое закрытие просроченных попыток, до которых не дошел таймер соединения
	sweeper := attemptmanager.NewSweeper(attemptConfig, attemptService, cacheRepo)
	go sweeper.Run(ctx)

	// Инициализируем обработчики
	authHandler := handler.NewAuthHandler(authService, handler.AuthHandlerConfig{
		TokenTTL:     jwtService.TokenTTL(),
		TicketTTL:    jwtService.TicketTTL(),
		SecureCookie: isProduction,
	})
	attemptHandler := handler.NewAttemptHandler(attemptService)
	testHandler := handler.NewTestHandler(catalogService, accessService, wsManager)

	// Инициализируем middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtService, sessionService)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Инициализируем роутер Gin
	router := gin.Default()

	// В production не доверяем прокси-заголовкам (защита от IP spoofing)
	trustedProxies := []string{"127.0.0.1", "::1"}
	if isProduction {
		trustedProxies = nil
	}
	if err := router.SetTrustedProxies(trustedProxies); err != nil {
		log.Printf("Warning: failed to set trusted proxies: %v", err)
	}

	allowedOrigins := cfg.Server.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": attemptService.Now()})
	})

	// Настраиваем маршруты API
	api := router.Group("/api")
	{
		// Аутентификация
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", rateLimiter.Limit(middleware.StrictAuthRateLimitConfig()), authHandler.Register)
			authGroup.POST("/login", rateLimiter.Limit(middleware.StrictAuthRateLimitConfig()), authHandler.Login)

			authedAuth := authGroup.Group("")
			authedAuth.Use(authMiddleware.RequireAuth())
			{
				authedAuth.POST("/logout", authHandler.Logout)
				authedAuth.POST("/ws-ticket", authHandler.GenerateWsTicket)
				authedAuth.GET("/me", authHandler.GetMe)
			}
		}

		// Тесты
		tests := api.Group("/tests/:id")
		tests.Use(middleware.ExtractUintParam("id", "testID"))
		{
			tests.GET("", testHandler.GetTest)
			tests.GET("/stats", attemptHandler.GetTestStats)

			authedTests := tests.Group("")
			authedTests.Use(authMiddleware.RequireAuth())
			{
				authedTests.POST("/launch", rateLimiter.LimitByStudent(middleware.AttemptWriteRateLimitConfig()), attemptHandler.LaunchAttempt)
				authedTests.GET("/attempts", attemptHandler.GetStudentAttempts)
			}
		}

		// Попытки
		attempts := api.Group("/attempts/:id")
		attempts.Use(middleware.ExtractUintParam("id", "attemptID"), authMiddleware.RequireAuth())
		{
			attempts.GET("", attemptHandler.GetAttempt)
			attempts.GET("/time", attemptHandler.GetAttemptTime)
			attempts.GET("/review", attemptHandler.GetAttemptReview)
			attempts.POST("/expire-check", attemptHandler.ExpireCheck)

			writes := attempts.Group("")
			writes.Use(rateLimiter.LimitByStudent(middleware.AttemptWriteRateLimitConfig()))
			{
				writes.PUT("/answers", attemptHandler.SaveAnswer)
				writes.POST("/submit", attemptHandler.SubmitAttempt)
				writes.POST("/violations", attemptHandler.RecordViolation)
			}
		}

		// Администрирование
		admin := api.Group("/admin")
		admin.Use(authMiddleware.RequireAuth(), authMiddleware.AdminOnly())
		{
			admin.POST("/tests", testHandler.CreateTest)
			admin.POST("/tests/:id/questions", middleware.ExtractUintParam("id", "testID"), testHandler.AddQuestions)
			admin.DELETE("/tests/:id/cache", middleware.ExtractUintParam("id", "testID"), testHandler.InvalidateTestCache)
			admin.POST("/tests/:id/ranks", middleware.ExtractUintParam("id", "testID"), attemptHandler.RecalculateRanks)
			admin.POST("/enrollments", testHandler.GrantEnrollment)
			admin.GET("/ws/metrics", testHandler.GetWSMetrics)
		}
	}

	// WebSocket маршрут
	router.GET("/ws", wsHandler.HandleConnection)

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Останавливаем таймеры попыток, фоновую проверку и подписку кластера
	cancel()
	wsHandler.Stop()
	hub.Close()

	if err := pubSubProvider.Close(); err != nil {
		log.Printf("Error closing PubSub provider: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}

	log.Println("Server exited properly")
}
