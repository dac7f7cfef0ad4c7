package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port     string
	MongoURI string
	DBName   string

	// Azure Read API (OCR)
	AzureEndpoint   string
	AzureKey        string
	OCRPollInterval time.Duration
	OCRMaxAttempts  uint
	OCRCacheSize    int

	// Gemini (metadata extraction)
	GeminiAPIKey string
	GeminiModel  string

	// Optional S3 archive for uploaded page scans
	S3Bucket      string
	S3Region      string
	S3AccessKeyID string
	S3SecretKey   string

	// Optional auth; API is open when JWTSecret is empty
	JWTSecret string
	AuthEmail string
	AuthPass  string

	MaxUploadMB int64

	WorkerCount     int
	WorkerQueueSize int
	JobTimeout      time.Duration

	LogLevel  string
	LogFormat string // console or json
}

func Load() (*Config, error) {
	maxMB := int64(20)
	if v := getEnv("MAX_UPLOAD_MB", "20"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			maxMB = n
		}
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		MongoURI:        getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DBName:          getEnv("MONGODB_DB", "katalogbuku"),
		AzureEndpoint:   getEnv("AZURE_ENDPOINT", ""),
		AzureKey:        getEnv("AZURE_KEY", ""),
		OCRPollInterval: getDuration("OCR_POLL_INTERVAL", time.Second),
		OCRMaxAttempts:  uint(getInt("OCR_MAX_ATTEMPTS", 10)),
		OCRCacheSize:    getInt("OCR_CACHE_SIZE", 128),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.5-flash-lite"),
		S3Bucket:        getEnv("AWS_S3_BUCKET", ""),
		S3Region:        getEnv("AWS_REGION", "us-east-1"),
		S3AccessKeyID:   getEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:     getEnv("AWS_SECRET_ACCESS_KEY", ""),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		AuthEmail:       getEnv("AUTH_EMAIL", ""),
		AuthPass:        getEnv("AUTH_PASSWORD", ""),
		MaxUploadMB:     maxMB,
		WorkerCount:     getInt("EXTRACTION_WORKERS", 2),
		WorkerQueueSize: getInt("EXTRACTION_QUEUE_SIZE", 32),
		JobTimeout:      getDuration("EXTRACTION_JOB_TIMEOUT", 2*time.Minute),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "console"),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
