package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	ServerAddr string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string

	UploadsDir string

	TaskMaxAttempts  int
	TaskBackoff      time.Duration
	OracleTimeout    time.Duration
	ExtractorTimeout time.Duration
}

func Load() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "procured_payment"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),

		UploadsDir: getEnv("UPLOADS_DIR", "uploads"),

		TaskMaxAttempts:  getEnvInt("TASK_MAX_ATTEMPTS", 3),
		TaskBackoff:      getEnvDuration("TASK_BACKOFF", time.Minute),
		OracleTimeout:    getEnvDuration("ORACLE_TIMEOUT", 10*time.Second),
		ExtractorTimeout: getEnvDuration("EXTRACTOR_TIMEOUT", 60*time.Second),
	}
}

// InitDB opens the postgres connection. TranslateError is required so
// the approval ledger's unique index violation surfaces as
// gorm.ErrDuplicatedKey.
func (c *Config) InitDB() *gorm.DB {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
