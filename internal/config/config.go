package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// AppEnv is the running environment (development/production).
	AppEnv string
	// ServerPort is the HTTP port to listen on.
	ServerPort string
	// Driver selects the read backend: "mysql", "postgres" or "mongo".
	Driver string
	// DatabaseDSN is the connection string for SQL backends.
	DatabaseDSN string
	// MongoURI is the connection string for the mongo backend.
	MongoURI string
	// DefaultBatchSize bounds fetched row batches when the request does not
	// set one; 0 reads in a single batch.
	DefaultBatchSize int
	// AWSRegion is the AWS region for S3 uploads.
	AWSRegion string
	// S3Bucket is the target S3 bucket name.
	S3Bucket string
	// S3Endpoint is an optional custom endpoint (for non-AWS S3 providers like MinIO).
	S3Endpoint string
	// S3PathStyle enables path-style addressing (required for some S3 providers).
	S3PathStyle bool
	// StorageType determines where snapshots go: "local" or "s3".
	StorageType string
	// LocalStoragePath is the directory for local snapshots.
	LocalStoragePath string
	// SMTP settings for email notifications.
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	// WorkerCount is the number of concurrent read jobs allowed.
	WorkerCount int
	// MaxDBConcurrency restricts the global number of concurrent reads.
	MaxDBConcurrency int64
	// DefaultTimeout is the maximum duration for a read job.
	DefaultTimeout time.Duration
	// Compression enables gzip compression for snapshots.
	Compression bool
	// AttachFile enables sending the snapshot as an email attachment (if small enough).
	AttachFile bool
	// APISecret is the shared secret for HMAC-SHA256 request signing.
	APISecret string
	// JWTSecret signs dashboard session tokens.
	JWTSecret string
	// AllowedOrigins is a list of CORS allowed domains.
	AllowedOrigins []string
}

func Load() *Config {
	return &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		AllowedOrigins:   getEnvSlice("ALLOWED_ORIGINS", []string{"*"}),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		Driver:           getEnv("DB_DRIVER", "mysql"),
		DatabaseDSN:      getEnv("DATABASE_DSN", "user:password@tcp(localhost:3306)/dbname?parseTime=true"),
		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DefaultBatchSize: getEnvInt("DEFAULT_BATCH_SIZE", 0),
		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:         getEnv("S3_BUCKET", "frame-snapshots"),
		S3Endpoint:       getEnv("S3_ENDPOINT", ""),
		S3PathStyle:      getEnvBool("S3_PATH_STYLE", false),
		StorageType:      getEnv("STORAGE_TYPE", "s3"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./snapshots"),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getEnvInt("SMTP_PORT", 587),
		SMTPUser:         getEnv("SMTP_USER", ""),
		SMTPPassword:     getEnv("SMTP_PASS", ""),
		SMTPFrom:         getEnv("SMTP_FROM", "noreply@example.com"),
		WorkerCount:      getEnvInt("WORKER_COUNT", 5),
		MaxDBConcurrency: int64(getEnvInt("MAX_DB_CONCURRENCY", 3)),
		DefaultTimeout:   getEnvDuration("DEFAULT_TIMEOUT", 15*time.Minute),
		Compression:      getEnvBool("COMPRESSION", false),
		AttachFile:       getEnvBool("EMAIL_ATTACH_FILE", false),
		APISecret:        getEnv("API_SECRET", ""),
		JWTSecret:        getEnv("JWT_SECRET", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
