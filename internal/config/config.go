package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Environment    string // ENV: production, development, etc.
	Port           string
	Host           string // Raw HOST env (e.g. https://api.repohub.app)
	AllowedHost    string // Hostname only for strict host check (production only)
	FrontendURL    string
	AllowedOrigins []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL(s)
	AppName        string

	StoreBackend string // mongo | memory
	MongoURI     string
	MongoDB      string
	RedisURI     string // empty disables Redis-backed features

	JWTSecret         string
	SessionTTL        time.Duration
	TwoFATTL          time.Duration
	ResetTokenTTL     time.Duration
	InvitationTTL     time.Duration
	ResendWindow      time.Duration
	ResendMaxAttempts int
	ResendMinInterval time.Duration
	ResendStore       string // mongo | redis | memory

	SMTP    SMTPConfig
	Storage StorageConfig
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Enabled reports whether outbound mail can be delivered over SMTP.
func (c SMTPConfig) Enabled() bool {
	return strings.TrimSpace(c.Host) != ""
}

type StorageConfig struct {
	Backend        string // gridfs | s3 | minio | gcs | cloudinary
	MaxUploadBytes int64
	GridFSBucket   string
	S3             S3Config
	Minio          MinioConfig
	GCS            GCSConfig
	Cloudinary     CloudinaryConfig
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))
	host := getEnv("HOST", "http://localhost:8080")

	// AllowedHost is only set in production; host check is skipped in development
	var allowedHost string
	if env == "production" {
		allowedHost = hostname(host)
	}

	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		for _, u := range []string{getEnv("FRONTEND_URL", "http://localhost:3000"), getEnv("FRONTEND_URL_2", ""), getEnv("FRONTEND_URL_3", "")} {
			u = strings.TrimSpace(u)
			if u != "" && !containsOrigin(allowedOrigins, u) {
				allowedOrigins = append(allowedOrigins, u)
			}
		}
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}

	return &Config{
		Environment:    env,
		Port:           getEnv("PORT", "8080"),
		Host:           host,
		AllowedHost:    allowedHost,
		FrontendURL:    strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		AllowedOrigins: allowedOrigins,
		AppName:        getEnv("APP_NAME", "RepoHub"),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "mongo")),
		MongoURI:     getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017/repohub")),
		MongoDB:      getEnv("MONGO_DB", ""),
		RedisURI:     getEnv("REDIS_URI", ""),

		JWTSecret:         getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		SessionTTL:        time.Duration(getEnvInt("SESSION_TTL_HOURS", 24)) * time.Hour,
		TwoFATTL:          time.Duration(getEnvInt("TWOFA_TTL_MIN", 5)) * time.Minute,
		ResetTokenTTL:     time.Duration(getEnvInt("RESET_TOKEN_TTL_MIN", 20)) * time.Minute,
		InvitationTTL:     time.Duration(getEnvInt("INVITATION_TTL_HOURS", 168)) * time.Hour,
		ResendWindow:      time.Duration(getEnvInt("RESEND_WINDOW_SEC", 600)) * time.Second,
		ResendMaxAttempts: getEnvInt("RESEND_MAX_PER_WINDOW", 3),
		ResendMinInterval: time.Duration(getEnvInt("RESEND_MIN_INTERVAL_SEC", 60)) * time.Second,
		ResendStore:       strings.ToLower(getEnv("RESEND_STORE", "mongo")),

		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", getEnv("SMTP_USER", "no-reply@repohub.local")),
		},

		Storage: StorageConfig{
			Backend:        strings.ToLower(getEnv("STORAGE_BACKEND", "gridfs")),
			MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_MB", 25)) << 20,
			GridFSBucket:   getEnv("GRIDFS_BUCKET", "uploads"),
			S3: S3Config{
				Bucket:    getEnv("S3_BUCKET", ""),
				Region:    getEnv("S3_REGION", "us-east-1"),
				Endpoint:  getEnv("S3_ENDPOINT", ""),
				AccessKey: getEnv("S3_ACCESS_KEY", ""),
				SecretKey: getEnv("S3_SECRET_KEY", ""),
			},
			Minio: MinioConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", "repohub"),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
			GCS: GCSConfig{
				Bucket:          getEnv("GCS_BUCKET", ""),
				ProjectID:       getEnv("GCS_PROJECT_ID", ""),
				CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
			},
			Cloudinary: CloudinaryConfig{
				CloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
				APIKey:    getEnv("CLOUDINARY_API_KEY", ""),
				APISecret: getEnv("CLOUDINARY_API_SECRET", ""),
				Folder:    getEnv("CLOUDINARY_FOLDER", "repohub"),
			},
		},
	}
}

// hostname strips scheme, path and port from a URL-ish HOST value.
func hostname(host string) string {
	for _, prefix := range []string{"https://", "http://"} {
		host = strings.TrimPrefix(host, prefix)
	}
	if idx := strings.Index(host, "/"); idx != -1 {
		host = host[:idx]
	}
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return strings.TrimSpace(host)
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func containsOrigin(list []string, o string) bool {
	o = strings.TrimSpace(strings.ToLower(o))
	for _, v := range list {
		if strings.TrimSpace(strings.ToLower(v)) == o {
			return true
		}
	}
	return false
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "production"
}

// IsDevelopment gates error detail in API responses.
func (c *Config) IsDevelopment() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
