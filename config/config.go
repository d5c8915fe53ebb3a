package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"leadcadence/models"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB        *gorm.DB
	AppConfig Config

	validate = validator.New()
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type Config struct {
	Environment string `json:"environment"`

	DBHost         string `json:"db_host" validate:"required"`
	DBPort         string `json:"db_port" validate:"required"`
	DBUser         string `json:"db_user" validate:"required"`
	DBPassword     string `json:"-" validate:"required"`
	DBName         string `json:"db_name" validate:"required"`
	DBSSLMode      string `json:"db_ssl_mode"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`

	Redis RedisConfig `json:"redis"`

	SentryDSN string `json:"-"`

	// Cadence settings
	DefaultTimezone string `json:"default_timezone"`
	DailySendLimit  int    `json:"daily_send_limit"`
	SenderName      string `json:"sender_name"`
	CalendarLink    string `json:"calendar_link"`

	// Pipeline stages that exclude a lead from any further outreach
	ExcludedStages []string `json:"excluded_stages"`

	WorkerInterval  time.Duration `json:"worker_interval"`
	WorkerBatchSize int           `json:"worker_batch_size"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
}

func LoadConfig() error {
	AppConfig = Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "leadcadence"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ENABLED", "false") == "true",
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},

		SentryDSN: getEnv("SENTRY_DSN", ""),

		DefaultTimezone: getEnv("DEFAULT_TIMEZONE", "America/New_York"),
		DailySendLimit:  getEnvAsInt("DAILY_SEND_LIMIT", 500),
		SenderName:      getEnv("SENDER_NAME", ""),
		CalendarLink:    getEnv("CALENDAR_LINK", ""),

		ExcludedStages: splitCSV(getEnv("EXCLUDED_STAGES", "closed,lost,do_not_contact,unsubscribed")),

		WorkerInterval:  getEnvAsDuration("WORKER_INTERVAL", time.Minute),
		WorkerBatchSize: getEnvAsInt("WORKER_BATCH_SIZE", 200),
	}

	if err := validate.Struct(AppConfig); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         AppConfig.SentryDSN,
			Environment: AppConfig.Environment,
		}); err != nil {
			logrus.WithError(err).Warn("sentry init failed, error reporting disabled")
			AppConfig.SentryDSN = ""
		}
	}

	logConfig()
	return nil
}

func ConnectDB() error {
	logrus.Info("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	logrus.Info("Using connection string: ", maskPassword(dsn))

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	logrus.Info("✅ Successfully connected to the database")
	logrus.Info("🔄 Starting database migration...")
	if err := migrateDB(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	logrus.Info("✅ Database migration completed")
	return nil
}

// NewRedisClient builds the shared redis connection, or nil when redis is
// disabled.
func NewRedisClient() *redis.Client {
	if !AppConfig.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     AppConfig.Redis.Address,
		Password: AppConfig.Redis.Password,
		DB:       AppConfig.Redis.DB,
	})
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	d, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	logrus.Info("🔧 Loaded configuration:")
	logrus.Infof("Environment: %s", AppConfig.Environment)
	logrus.Infof("Database: %s@%s:%s/%s",
		AppConfig.DBUser,
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBName)
	logrus.Infof("Redis enabled: %t", AppConfig.Redis.Enabled)
	logrus.Infof("Excluded stages: %v", AppConfig.ExcludedStages)
}

func migrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Lead{},
		&models.Conversation{},
		&models.ScheduledMessage{},
		&models.TenantFeature{},
	)
}
