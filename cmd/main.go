package main

import (
	"context"
	"database/sql"
	"fashion-backend/config"
	"fashion-backend/internal/api/admin"
	"fashion-backend/internal/api/order"
	"fashion-backend/internal/api/payment"
	"fashion-backend/internal/api/user"
	"fashion-backend/internal/carrier"
	"fashion-backend/internal/gateway"
	"fashion-backend/internal/lock"
	"fashion-backend/internal/messaging"
	"fashion-backend/internal/middleware"
	"fashion-backend/internal/repository/mysql"
	"fashion-backend/internal/scheduler"
	"fashion-backend/internal/service"
	"fashion-backend/internal/storage"
	"fashion-backend/internal/util"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			util.Logger.Error("程序发生严重错误", zap.Any("error", r))
		}
	}()

	// 初始化配置
	config.Init()

	// 初始化日志
	util.InitLogger(config.AppConfig.LogLevel)
	defer util.Logger.Sync()

	util.Logger.Info("应用程序启动")

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		config.AppConfig.DBUser,
		config.AppConfig.DBPassword,
		config.AppConfig.DBHost,
		config.AppConfig.DBPort,
		config.AppConfig.DBName)

	// 连接数据库
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		util.Logger.Fatal("连接数据库失败", zap.Error(err))
	}
	defer db.Close()

	if err = db.Ping(); err != nil {
		util.Logger.Fatal("数据库连接测试失败", zap.Error(err))
	}
	util.Logger.Info("数据库连接成功")

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	util.Logger.Info("数据库连接池配置完成")

	// 注册自定义验证器
	util.RegisterValidators()

	ensureUploadsFolder()

	// 分布式锁，未配置 Redis 时退化为进程内锁
	var locker lock.Locker
	if config.AppConfig.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     config.AppConfig.RedisAddr,
			Password: config.AppConfig.RedisPassword,
		})
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb)
		util.Logger.Info("使用 Redis 分布式锁", zap.String("addr", config.AppConfig.RedisAddr))
	} else {
		locker = lock.NewMemoryLocker()
		util.Logger.Warn("未配置 Redis，使用进程内锁")
	}

	publisher := messaging.New(config.AppConfig.KafkaBrokers)

	carriers, err := carrier.NewFactory(
		carrier.NewGHN(carrier.GHNConfig{
			BaseURL:   config.AppConfig.GHNBaseURL,
			Token:     config.AppConfig.GHNToken,
			ShopID:    config.AppConfig.GHNShopID,
			RateLimit: config.AppConfig.CarrierRateLimit,
		}),
		carrier.NewGHTK(carrier.GHTKConfig{
			BaseURL:      config.AppConfig.GHTKBaseURL,
			Token:        config.AppConfig.GHTKToken,
			RateLimit:    config.AppConfig.CarrierRateLimit,
			PickName:     config.AppConfig.PickupName,
			PickTel:      config.AppConfig.PickupPhone,
			PickAddress:  config.AppConfig.PickupAddress,
			PickProvince: config.AppConfig.PickupProvince,
			PickDistrict: config.AppConfig.PickupDistrict,
		}),
	)
	if err != nil {
		util.Logger.Fatal("初始化承运商失败", zap.Error(err))
	}
	util.Logger.Info("承运商注册完成", zap.Strings("carriers", carriers.Names()))

	stripeGateway := gateway.NewStripeGateway(gateway.StripeConfig{
		SecretKey:     config.AppConfig.StripeSecretKey,
		WebhookSecret: config.AppConfig.StripeWebhookSecret,
		SuccessURL:    config.AppConfig.CheckoutSuccessURL,
		CancelURL:     config.AppConfig.CheckoutCancelURL,
	})

	// 退款凭证存储
	evidenceStorage, err := storage.New(context.Background(), storage.Config{
		Driver:             config.AppConfig.StorageDriver,
		LocalPath:          config.AppConfig.LocalStoragePath,
		S3Region:           config.AppConfig.S3Region,
		S3Bucket:           config.AppConfig.S3Bucket,
		GCSProjectID:       config.AppConfig.GCSProjectID,
		GCSBucketName:      config.AppConfig.GCSBucketName,
		GCSCredentialsFile: config.AppConfig.GCSCredentialsFile,
	})
	if err != nil {
		util.Logger.Fatal("初始化存储失败", zap.Error(err))
	}

	shippingFee, err := decimal.NewFromString(config.AppConfig.ShippingFee)
	if err != nil {
		util.Logger.Fatal("运费配置无效", zap.Error(err), zap.String("shipping_fee", config.AppConfig.ShippingFee))
	}

	// 初始化存储库
	userRepo := mysql.NewUserRepository(db)
	orderRepo := mysql.NewOrderRepository(db)
	catalogRepo := mysql.NewCatalogRepository(db)
	paymentRepo := mysql.NewPaymentRepository(db)
	shipmentRepo := mysql.NewShipmentRepository(db)
	refundRepo := mysql.NewRefundRepository(db)
	reportRepo := mysql.NewReportRepository(db)
	voucherExpirations := mysql.NewVoucherExpirationRepository(db)
	promotionExpirations := mysql.NewPromotionExpirationRepository(db)

	// 初始化服务
	emailService := service.NewEmailService()
	userService := service.NewUserService(userRepo)
	orderService := service.NewOrderService(orderRepo, catalogRepo, carriers, service.OrderPricing{
		Currency:       config.AppConfig.Currency,
		ShippingFee:    shippingFee,
		DefaultCarrier: config.AppConfig.DefaultCarrier,
	})
	shipmentService := service.NewShipmentService(shipmentRepo, orderRepo, carriers, locker, publisher)
	paymentService := service.NewPaymentService(
		orderRepo,
		paymentRepo,
		userRepo,
		stripeGateway,
		shipmentService,
		emailService,
		publisher,
	)
	refundService := service.NewRefundService(
		orderRepo,
		paymentRepo,
		refundRepo,
		stripeGateway,
		locker,
		evidenceStorage,
		publisher,
	)
	expirationService := service.NewExpirationService(voucherExpirations, promotionExpirations)
	reportService := service.NewReportService(reportRepo, emailService)

	// 初始化错误监控
	errorMonitor := middleware.NewErrorMonitor()

	// 初始化处理器
	authHandler := user.NewAuthHandler(userService)
	userHandler := user.NewUserHandler(userService)
	orderHandler := order.NewOrderHandler(orderService, paymentService, shipmentService)
	paymentHandler := payment.NewPaymentHandler(paymentService)
	refundHandler := payment.NewRefundHandler(refundService)
	adminHandler := admin.NewAdminHandler(shipmentService, expirationService, errorMonitor)
	reportHandler := admin.NewReportHandler(reportService)

	// 定时任务
	jobs := scheduler.New(locker)
	refreshInterval := time.Duration(config.AppConfig.TrackingRefreshIntervalMS) * time.Millisecond
	jobs.AddInterval("tracking-refresh", refreshInterval, refreshInterval, func(ctx context.Context) error {
		_, err := shipmentService.RefreshActiveShipments(ctx)
		return err
	})
	if err := jobs.AddCron("expiration-sweep", config.AppConfig.ExpirationSweepCron, 10*time.Minute, func(ctx context.Context) error {
		_, err := expirationService.SweepExpired(ctx)
		return err
	}); err != nil {
		util.Logger.Fatal("注册过期清理任务失败", zap.Error(err), zap.String("spec", config.AppConfig.ExpirationSweepCron))
	}
	jobs.Start()

	r := gin.Default()
	r.MaxMultipartMemory = 8 << 20

	// 错误监控在外层，才能统计恢复后的 panic
	r.Use(middleware.ErrorMonitorMiddleware(errorMonitor))
	r.Use(middleware.RecoveryMiddleware())

	// 配置 CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{config.AppConfig.FrontendURL}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Length",
		"Content-Type",
		"Authorization",
	}
	corsConfig.ExposeHeaders = []string{
		"Content-Length",
		"Content-Type",
		"Access-Control-Allow-Origin",
	}
	r.Use(cors.New(corsConfig))

	// 静态文件的 CORS
	r.Use(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/uploads/") {
			c.Header("Access-Control-Allow-Origin", config.AppConfig.FrontendURL)
			c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type")

			if c.Request.Method == "OPTIONS" {
				c.AbortWithStatus(200)
				return
			}
		}
		c.Next()
	})

	if config.AppConfig.StorageDriver == "local" {
		r.Static("/uploads", config.AppConfig.LocalStoragePath)
	}

	authRequired := middleware.AuthMiddleware(userService)
	adminRequired := middleware.AdminMiddleware(userService)

	api := r.Group("/api")
	{
		api.POST("/login", authHandler.Login)
		api.POST("/refresh-token", authHandler.RefreshToken)
		api.POST("/payments/webhook", paymentHandler.Webhook)

		authorized := api.Group("/")
		authorized.Use(authRequired)
		{
			authorized.POST("/logout", authHandler.Logout)
			authorized.GET("/users/me", userHandler.GetCurrentUser)

			// 订单
			authorized.POST("/orders", orderHandler.CreateOrder)
			authorized.GET("/orders", orderHandler.ListOrders)
			authorized.GET("/orders/:id", orderHandler.GetOrder)
			authorized.POST("/orders/:id/cancel", orderHandler.CancelOrder)
			authorized.POST("/orders/:id/checkout", orderHandler.Checkout)
			authorized.GET("/orders/:id/tracking", orderHandler.GetTracking)

			// 退款
			authorized.POST("/orders/:id/refund", refundHandler.RequestRefund)
			authorized.GET("/orders/:id/refund", refundHandler.GetRefundStatus)
		}

		adminRoutes := api.Group("/admin")
		adminRoutes.Use(authRequired, adminRequired)
		{
			refundAdmin := adminRoutes.Group("/refunds")
			{
				refundAdmin.GET("", refundHandler.ListRefundRequests)            // 退款列表
				refundAdmin.PUT("/:id/status", refundHandler.UpdateRefundStatus) // 审核退款
			}

			adminRoutes.POST("/shipments/:id/refresh", adminHandler.RefreshShipment)
			adminRoutes.POST("/sweeps/expirations", adminHandler.SweepExpirations)
			adminRoutes.GET("/stats/errors", adminHandler.GetErrorStats)
		}

		reports := api.Group("/reports")
		reports.Use(authRequired, adminRequired)
		{
			reports.POST("/daily", reportHandler.SendDailyReport)
		}
	}

	if config.AppConfig.Debug {
		util.Logger.Info("已注册的路由列表：")
		for _, route := range r.Routes() {
			util.Logger.Info("路由",
				zap.String("method", route.Method),
				zap.String("path", route.Path),
				zap.String("handler", route.Handler))
		}
	}

	srv := &http.Server{
		Addr:    config.AppConfig.ServerAddr,
		Handler: r,
	}

	go func() {
		util.Logger.Info("服务器正在启动", zap.String("addr", config.AppConfig.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			util.Logger.Fatal("启动服务器失败", zap.Error(err))
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	util.Logger.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		util.Logger.Error("服务器强制关闭", zap.Error(err))
	}

	jobs.Stop(ctx)

	if err := publisher.Close(); err != nil {
		util.Logger.Error("关闭事件发布器失败", zap.Error(err))
	}

	util.Logger.Info("服务器已优雅关闭")
}

// 确保上传文件夹存在
func ensureUploadsFolder() {
	uploadsPath := config.AppConfig.LocalStoragePath
	if err := os.MkdirAll(uploadsPath, 0755); err != nil {
		util.Logger.Fatal("创建上传文件夹失败", zap.Error(err), zap.String("path", uploadsPath))
	}
	util.Logger.Info("上传文件夹已创建或已存在", zap.String("path", uploadsPath))
}
