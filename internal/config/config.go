package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Storage drivers.
const (
	StorageDriverFS    = "fs"
	StorageDriverMinIO = "minio"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// Enabled reports whether a database has been configured.
// The account endpoints are only mounted when it is.
func (c DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// Validate validates the database configuration. An unset host is allowed.
func (c DatabaseConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required, is.Digit),
		validation.Field(&c.User, validation.Required),
		validation.Field(&c.Name, validation.Required),
	)
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Validate validates the MinIO configuration.
func (c MinIOConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Endpoint, validation.Required),
		validation.Field(&c.AccessKey, validation.Required),
		validation.Field(&c.SecretKey, validation.Required),
		validation.Field(&c.Bucket, validation.Required),
	)
}

// StorageConfig selects and configures the uploads backend.
type StorageConfig struct {
	Driver      string
	UploadsDir  string
	MaxUploadMB int
}

// AuthConfig holds token and sign-up settings.
type AuthConfig struct {
	JWTSecret   string
	TokenTTL    time.Duration
	EmailDomain string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost     string
	Port        string
	BaseURL     string
	CORSOrigins string
	Timezone    string
	LogLevel    string
	Storage     StorageConfig
	Database    DatabaseConfig
	MinIO       MinIOConfig
	Auth        AuthConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	port := getEnv("PORT", "8080")
	return &AppConfig{
		AppHost:     getEnv("APP_HOST", "localhost:"+port),
		Port:        port,
		BaseURL:     strings.TrimRight(getEnv("BASE_URL", "http://localhost:"+port), "/"),
		CORSOrigins: getEnv("CORS_ALLOW_ORIGINS", "http://localhost:4200"),
		Timezone:    getEnv("APP_TIMEZONE", "UTC"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Storage: StorageConfig{
			Driver:      getEnv("STORAGE_DRIVER", StorageDriverFS),
			UploadsDir:  getEnv("UPLOADS_DIR", "uploads"),
			MaxUploadMB: getEnvInt("MAX_UPLOAD_MB", 50),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Auth: AuthConfig{
			JWTSecret:   getEnv("JWT_SECRET", ""),
			TokenTTL:    time.Duration(getEnvInt("JWT_TTL_HOURS", 24)) * time.Hour,
			EmailDomain: getEnv("AUTH_EMAIL_DOMAIN", "janaagraha.org"),
		},
	}
}

// Validate checks the loaded configuration before anything is wired.
func (c *AppConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, is.Digit),
		validation.Field(&c.BaseURL, validation.Required, is.RequestURL),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
	); err != nil {
		return err
	}
	if err := validation.ValidateStruct(&c.Storage,
		validation.Field(&c.Storage.Driver, validation.Required, validation.In(StorageDriverFS, StorageDriverMinIO)),
		validation.Field(&c.Storage.UploadsDir, validation.Required),
		validation.Field(&c.Storage.MaxUploadMB, validation.Min(1)),
	); err != nil {
		return err
	}
	if c.Storage.Driver == StorageDriverMinIO {
		if err := c.MinIO.Validate(); err != nil {
			return err
		}
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if c.Database.Enabled() {
		return validation.ValidateStruct(&c.Auth,
			validation.Field(&c.Auth.JWTSecret, validation.Required, validation.Length(16, 0)),
			validation.Field(&c.Auth.EmailDomain, validation.Required, is.Domain),
		)
	}
	return nil
}

// Location resolves the configured timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
