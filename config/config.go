package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/funcdude/crm-webhook/models"
)

var (
	DB        *gorm.DB
	AppConfig Config
)

type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"-"`
}

type MailgunConfig struct {
	Domain string `json:"domain"`
	APIKey string `json:"-"`
}

type Config struct {
	Environment string `json:"environment"`
	ServerPort  string `json:"server_port"`

	DBHost         string `json:"db_host"`
	DBPort         string `json:"db_port"`
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"-"`
	DBName         string `json:"db_name"`
	DBSSLMode      string `json:"db_ssl_mode"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`

	// Outbound mail
	MailProvider string        `json:"mail_provider"` // smtp or mailgun
	FromEmail    string        `json:"from_email"`
	ReplyTo      string        `json:"reply_to"`
	SMTP         SMTPConfig    `json:"smtp"`
	Mailgun      MailgunConfig `json:"mailgun"`

	// Webhook ingress
	WebhookSecret string `json:"-"` // empty disables signature verification
	CacheAPIKey   string `json:"-"` // empty disables the X-API-Key check

	EventCacheSize          int `json:"event_cache_size"`
	DispatchIntervalMinutes int `json:"dispatch_interval_minutes"` // 0 disables the background worker
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
}

func LoadConfig() error {
	AppConfig = Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		ServerPort:     getEnv("SERVER_PORT", "5000"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "crm"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		MailProvider: getEnv("MAIL_PROVIDER", "smtp"),
		FromEmail:    getEnv("FROM_EMAIL", ""),
		ReplyTo:      getEnv("REPLY_TO_EMAIL", ""),
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
		},
		Mailgun: MailgunConfig{
			Domain: getEnv("MAILGUN_DOMAIN", ""),
			APIKey: getEnv("MAILGUN_API_KEY", ""),
		},

		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
		CacheAPIKey:   getEnv("CACHE_API_KEY", ""),

		EventCacheSize:          getEnvAsInt("EVENT_CACHE_SIZE", 10000),
		DispatchIntervalMinutes: getEnvAsInt("DISPATCH_INTERVAL_MINUTES", 0),
	}

	// Validate required configurations
	if AppConfig.FromEmail == "" {
		return fmt.Errorf("FROM_EMAIL is required")
	}
	if AppConfig.MailProvider == "mailgun" {
		if AppConfig.Mailgun.APIKey == "" || AppConfig.Mailgun.Domain == "" {
			return fmt.Errorf("MAILGUN_API_KEY and MAILGUN_DOMAIN are required when MAIL_PROVIDER=mailgun")
		}
	}
	if AppConfig.WebhookSecret == "" {
		log.Println("⚠️ WEBHOOK_SECRET not set; webhook signature verification is disabled")
	}

	logConfig()
	return nil
}

func ConnectDB() error {
	log.Println("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	log.Println("Using connection string:", maskPassword(dsn))

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

	log.Println("✅ Successfully connected to the database")
	log.Println("🔄 Starting database migration...")
	if err := MigrateDB(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Println("✅ Database migration completed")
	return nil
}

// MigrateDB creates the schema idempotently
func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Contact{},
		&models.ContactTag{},
		&models.Sequence{},
		&models.SequenceStep{},
		&models.Enrollment{},
		&models.SentEmail{},
		&models.InboundEvent{},
	)
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
	log.Println("🔧 Loaded configuration:")
	log.Printf("Environment: %s", AppConfig.Environment)
	log.Printf("Server Port: %s", AppConfig.ServerPort)
	log.Printf("Database: %s@%s:%s/%s",
		AppConfig.DBUser,
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBName)
	log.Printf("Mail provider: %s (from %s)", AppConfig.MailProvider, AppConfig.FromEmail)
}
