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

	"github.com/yourusername/storefront-api/internal/config"
	"github.com/yourusername/storefront-api/internal/handler"
	"github.com/yourusername/storefront-api/internal/middleware"
	pgRepo "github.com/yourusername/storefront-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/storefront-api/internal/repository/redis"
	"github.com/yourusername/storefront-api/internal/service"
	ws "github.com/yourusername/storefront-api/internal/websocket"
	"github.com/yourusername/storefront-api/pkg/database"
)

func main() {
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

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	userRepo := pgRepo.NewUserRepo(db)
	otpChallengeRepo := pgRepo.NewOtpChallengeRepo(db)
	addressRepo := pgRepo.NewAddressRepo(db)
	productRepo := pgRepo.NewProductRepo(db)
	orderRepo := pgRepo.NewOrderRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	isProduction := gin.Mode() == gin.ReleaseMode

	// SMS-провайдер: Twilio на проде, noop при пустых кредах в dev
	var smsService service.SMSService
	if cfg.SMS.AccountSID != "" && cfg.SMS.AuthToken != "" {
		smsService, err = service.NewTwilioSMSService(
			cfg.SMS.AccountSID,
			cfg.SMS.AuthToken,
			cfg.SMS.FromNumber,
			time.Duration(cfg.SMS.TimeoutSec)*time.Second,
		)
		if err != nil {
			log.Printf("Failed to initialize Twilio SMS service: %v", err)
			os.Exit(1)
		}
	} else {
		log.Println("ВНИМАНИЕ: SMS-провайдер не сконфигурирован, отправка кодов отключена (dev режим)")
		smsService = &service.NoopSMSService{}
	}

	// Транзакционная почта: Resend при наличии ключа, иначе noop
	var emailService service.EmailService
	if cfg.Email.APIKey != "" {
		emailService, err = service.NewResendEmailService(cfg.Email.APIKey, cfg.Email.From)
		if err != nil {
			log.Printf("Failed to initialize Resend email service: %v", err)
			os.Exit(1)
		}
	} else {
		log.Println("Email-провайдер не сконфигурирован, письма-подтверждения отключены")
		emailService = &service.NoopEmailService{}
	}

	// Корневой контекст приложения для фоновых горутин
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// WebSocket hub живой ленты заказов
	hub := ws.NewHub()
	go hub.Run()

	// Инициализируем сервисы
	otpService, err := service.NewOtpService(
		otpChallengeRepo,
		smsService,
		cfg.SMS.CountryPrefix,
		cfg.OTP.TTL,
		cfg.OTP.ResendCooldown,
		cfg.OTP.MaxAttempts,
		cfg.OTP.CodePepper,
		time.Duration(cfg.SMS.TimeoutSec)*time.Second,
	)
	if err != nil {
		log.Printf("Failed to initialize OtpService: %v", err)
		os.Exit(1)
	}
	addressService := service.NewAddressService(addressRepo)
	productService := service.NewProductService(productRepo, cacheRepo)
	orderService := service.NewOrderService(orderRepo, productRepo, addressRepo, emailService, hub)

	// Фоновая очистка истекших и использованных OTP-челленджей
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		log.Println("Запуск периодической очистки OTP-челленджей (каждый час)")

		for {
			select {
			case <-ticker.C:
				removed, err := otpService.PurgeExpired()
				if err != nil {
					log.Printf("Ошибка при очистке OTP-челленджей: %v", err)
				} else if removed > 0 {
					log.Printf("Очистка OTP-челленджей: удалено %d записей", removed)
				}
			case <-ctx.Done():
				log.Println("Завершение работы горутины очистки OTP-челленджей")
				return
			}
		}
	}()

	allowedOrigins := []string{
		"https://storefront.example.com",
		"https://admin.storefront.example.com",
		"http://localhost:3000",
		"http://localhost:5173",
	}

	// Инициализируем обработчики
	otpHandler := handler.NewOtpHandler(otpService, userRepo, cfg.Auth.TokenSecret, cfg.Auth.CookieName, isProduction)
	profileHandler := handler.NewProfileHandler(userRepo)
	addressHandler := handler.NewAddressHandler(addressService)
	productHandler := handler.NewProductHandler(productService)
	orderHandler := handler.NewOrderHandler(orderService)
	wsHandler := handler.NewWSHandler(hub, allowedOrigins)

	// Инициализируем middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.Auth.TokenSecret, cfg.Auth.CookieName)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Инициализируем роутер Gin
	router := gin.Default()

	// Настройка доверенных прокси для корректной работы c.ClientIP()
	if isProduction {
		// Production: не доверять прокси-заголовкам
		// Если используете load balancer, замените nil на []string{"IP_БАЛАНСИРОВЩИКА"}
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Настраиваем маршруты API
	api := router.Group("/api")
	{
		// OTP-аутентификация: строгий лимит против перебора кодов и SMS-флуда
		authGroup := api.Group("/auth")
		authGroup.Use(rateLimiter.Limit(middleware.StrictOtpRateLimitConfig()))
		{
			authGroup.POST("/send-otp", otpHandler.SendOtp)
			authGroup.POST("/verify-otp", otpHandler.VerifyOtp)
		}

		// Профиль текущего покупателя
		profile := api.Group("/profile")
		profile.Use(authMiddleware.RequireAuth())
		{
			profile.GET("", profileHandler.Me)
			profile.PUT("", profileHandler.Update)
		}

		// Адреса доставки (только свой пользователь)
		addresses := api.Group("/addresses")
		addresses.Use(authMiddleware.RequireAuth())
		{
			addresses.GET("", addressHandler.List)
			addresses.POST("", addressHandler.Create)

			addressWithID := addresses.Group("/:id")
			addressWithID.Use(middleware.ExtractUintParam("id", "addressID"))
			{
				addressWithID.GET("", addressHandler.Get)
				addressWithID.PUT("", addressHandler.Update)
				addressWithID.PUT("/default", addressHandler.SetDefault)
				addressWithID.DELETE("", addressHandler.Delete)
			}
		}

		// Каталог: чтение публичное, запись только для администраторов
		products := api.Group("/products")
		{
			products.GET("", productHandler.List)

			productWithID := products.Group("/:id")
			productWithID.Use(middleware.ExtractUintParam("id", "productID"))
			{
				productWithID.GET("", productHandler.Get)
			}

			adminProducts := products.Group("")
			adminProducts.Use(authMiddleware.RequireAuth(), authMiddleware.AdminOnly())
			{
				adminProducts.POST("", productHandler.Create)

				adminProductWithID := adminProducts.Group("/:id")
				adminProductWithID.Use(middleware.ExtractUintParam("id", "productID"))
				{
					adminProductWithID.PUT("", productHandler.Update)
					adminProductWithID.DELETE("", productHandler.Delete)
				}
			}
		}

		// Заказы пользователя
		orders := api.Group("/orders")
		orders.Use(authMiddleware.RequireAuth())
		orders.Use(rateLimiter.LimitByIP(middleware.DefaultAPIRateLimitConfig()))
		{
			orders.POST("", orderHandler.Create)
			orders.GET("", orderHandler.List)

			orderWithID := orders.Group("/:id")
			orderWithID.Use(middleware.ExtractUintParam("id", "orderID"))
			{
				orderWithID.GET("", orderHandler.Get)
			}
		}

		// Админ-панель заказов
		adminOrders := api.Group("/admin/orders")
		adminOrders.Use(authMiddleware.RequireAuth(), authMiddleware.AdminOnly())
		{
			adminOrders.GET("", orderHandler.AdminList)
			adminOrders.GET("/stats", orderHandler.Stats)
			adminOrders.GET("/export", orderHandler.Export)

			adminOrderWithID := adminOrders.Group("/:id")
			adminOrderWithID.Use(middleware.ExtractUintParam("id", "orderID"))
			{
				adminOrderWithID.GET("", orderHandler.AdminGet)
				adminOrderWithID.PUT("/status", orderHandler.UpdateStatus)
			}
		}
	}

	// WebSocket маршрут живой ленты заказов (только админ)
	router.GET("/ws/orders", authMiddleware.RequireAuth(), authMiddleware.AdminOnly(), wsHandler.HandleOrderFeed)

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Отправляем сигнал завершения для всех горутин
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
