package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// Config 结构体用于存储应用程序的配置信息
type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	JWTSecret  string
	LogLevel   string
	ServerAddr string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FrontendURL  string

	// 支付
	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string
	Currency            string
	ShippingFee         string

	// 物流
	DefaultCarrier   string
	GHNBaseURL       string
	GHNToken         string
	GHNShopID        string
	GHTKBaseURL      string
	GHTKToken        string
	CarrierRateLimit int // 每秒请求数

	// GHTK 取件地址
	PickupName     string
	PickupPhone    string
	PickupAddress  string
	PickupProvince string
	PickupDistrict string

	// 定时任务
	TrackingRefreshIntervalMS int
	ExpirationSweepCron       string

	// 基础设施
	RedisAddr     string
	RedisPassword string
	KafkaBrokers  []string

	// 退款凭证存储
	StorageDriver      string // local | s3 | gcs
	LocalStoragePath   string
	S3Region           string
	S3Bucket           string
	GCSProjectID       string
	GCSBucketName      string
	GCSCredentialsFile string

	Debug bool // 是否开启调试模式
}

// AppConfig 是全局配置变量
var AppConfig Config

// Init 函数用于初始化配置
func Init() {
	// 加载 .env 文件
	err := godotenv.Load()
	if err != nil {
		log.Printf("警告：无法加载 .env 文件: %v", err)
	}

	// 从环境变量中读取配置
	AppConfig = Config{
		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnv("DB_PORT", ""),
		DBUser:     getEnv("DB_USER", ""),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", ""),
		JWTSecret:  getEnv("JWT_SECRET", ""),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),

		SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 465),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		FrontendURL:  getEnv("FRONTEND_URL", "http://localhost:5173"),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		CheckoutSuccessURL:  getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:5173/checkout/success"),
		CheckoutCancelURL:   getEnv("CHECKOUT_CANCEL_URL", "http://localhost:5173/checkout/cancel"),
		Currency:            strings.ToLower(getEnv("CURRENCY", "usd")),
		ShippingFee:         getEnv("SHIPPING_FEE", "5.00"),

		DefaultCarrier:   getEnv("DEFAULT_CARRIER", "ghn"),
		GHNBaseURL:       getEnv("GHN_BASE_URL", "https://online-gateway.ghn.vn"),
		GHNToken:         getEnv("GHN_TOKEN", ""),
		GHNShopID:        getEnv("GHN_SHOP_ID", ""),
		GHTKBaseURL:      getEnv("GHTK_BASE_URL", "https://services.giaohangtietkiem.vn"),
		GHTKToken:        getEnv("GHTK_TOKEN", ""),
		CarrierRateLimit: getEnvAsInt("CARRIER_RATE_LIMIT", 5),

		PickupName:     getEnv("PICKUP_NAME", ""),
		PickupPhone:    getEnv("PICKUP_PHONE", ""),
		PickupAddress:  getEnv("PICKUP_ADDRESS", ""),
		PickupProvince: getEnv("PICKUP_PROVINCE", ""),
		PickupDistrict: getEnv("PICKUP_DISTRICT", ""),

		TrackingRefreshIntervalMS: getEnvAsInt("TRACKING_REFRESH_INTERVAL_MS", 300000),
		ExpirationSweepCron:       getEnv("EXPIRATION_SWEEP_CRON", "0 59 23 * * *"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:  getEnvAsList("KAFKA_BROKERS"),

		StorageDriver:      getEnv("STORAGE_DRIVER", "local"),
		LocalStoragePath:   getEnv("LOCAL_STORAGE_PATH", "./uploads"),
		S3Region:           getEnv("S3_REGION", "us-west-2"),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		GCSProjectID:       getEnv("GCS_PROJECT_ID", ""),
		GCSBucketName:      getEnv("GCS_BUCKET_NAME", ""),
		GCSCredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),

		Debug: getEnvAsBool("DEBUG", false),
	}

	validateConfig()

	if AppConfig.Debug {
		gin.SetMode(gin.DebugMode)
		log.Println("应用程序运行在调试模式")
	} else {
		gin.SetMode(gin.ReleaseMode)
		log.Println("应用程序运行在生产模式")
	}

	log.Printf("配置加载完成。数据库：%s:%s", AppConfig.DBHost, AppConfig.DBPort)
	log.Printf("物流配置：默认承运商=%s，刷新间隔=%dms", AppConfig.DefaultCarrier, AppConfig.TrackingRefreshIntervalMS)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultVal int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	valStr := getEnv(key, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validateConfig() {
	if AppConfig.DBHost == "" || AppConfig.DBPort == "" || AppConfig.DBUser == "" || AppConfig.DBPassword == "" || AppConfig.DBName == "" {
		log.Fatal("错误：数据库配置不完整")
	}
	if AppConfig.JWTSecret == "" {
		log.Fatal("错误：JWT密钥未设置")
	}
	if AppConfig.StripeSecretKey == "" || AppConfig.StripeWebhookSecret == "" {
		log.Fatal("错误：Stripe配置不完整")
	}
	if AppConfig.TrackingRefreshIntervalMS <= 0 {
		log.Fatal("错误：物流刷新间隔必须大于0")
	}
}
