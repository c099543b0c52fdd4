package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Billing  BillingConfig
	Jobs     JobsConfig
	SMTP     SMTPConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type BillingConfig struct {
	MidtransServerKey    string
	MidtransIsProduction bool
	MaxPaymentAttempts   int
	GracePeriodDays      int
	MaxActivePerCustomer int
}

type JobsConfig struct {
	// Cron expressions for the three periodic jobs.
	DailyBillingSpec string
	RetrySpec        string
	GraceSweepSpec   string

	WorkerPoolSize int
	// RunBudgetSeconds bounds one job run; subscriptions not reached are
	// picked up by the next trigger.
	RunBudgetSeconds int
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Billing: BillingConfig{
			MidtransServerKey:    getEnv("MIDTRANS_SERVER_KEY", ""),
			MidtransIsProduction: getEnv("MIDTRANS_IS_PRODUCTION", "false") == "true",
			MaxPaymentAttempts:   getEnvAsInt("BILLING_MAX_PAYMENT_ATTEMPTS", 3),
			GracePeriodDays:      getEnvAsInt("BILLING_GRACE_PERIOD_DAYS", 7),
			MaxActivePerCustomer: getEnvAsInt("BILLING_MAX_ACTIVE_PER_CUSTOMER", 10),
		},
		Jobs: JobsConfig{
			DailyBillingSpec: getEnv("JOB_DAILY_BILLING_SPEC", "0 2 * * *"),
			RetrySpec:        getEnv("JOB_RETRY_SPEC", "0 */6 * * *"),
			GraceSweepSpec:   getEnv("JOB_GRACE_SWEEP_SPEC", "30 2 * * *"),
			WorkerPoolSize:   getEnvAsInt("JOB_WORKER_POOL_SIZE", 8),
			RunBudgetSeconds: getEnvAsInt("JOB_RUN_BUDGET_SECONDS", 1800),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "Billing"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
