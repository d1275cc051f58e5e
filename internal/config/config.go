package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	RequestTimeout time.Duration

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	StoreBackend   string // "dynamo" | "memory"
	StorageBackend string // "s3" | "minio"
	S3BucketName   string
	MinIO          MinIOConfig
	MaxUploadBytes int64
	FileURLTTL     time.Duration

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	SessionTTL        time.Duration

	OTPSecret         string
	OTPTTL            time.Duration
	OTPResendCooldown time.Duration
	OTPNotifier       string // "smtp" | "sns" | "log"

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion   string
	SNSTopicARN string

	OTelEndpoint    string
	OTelProtocol    string // "http/protobuf" | "grpc"
	OTelServiceName string

	AllowedOrigins []string // CORS allowed origins
	TrustedProxies []string // CIDRs or addresses whose X-Forwarded-For is believed
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users          string
	OtpChallenges  string
	Documents      string
	DocumentGrants string
}

// MinIOConfig configures the S3-compatible MinIO storage backend.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "5000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:          getEnv("DYNAMO_TABLE_USERS", "users"),
			OtpChallenges:  getEnv("DYNAMO_TABLE_OTP_CHALLENGES", "otp_challenges"),
			Documents:      getEnv("DYNAMO_TABLE_DOCUMENTS", "documents"),
			DocumentGrants: getEnv("DYNAMO_TABLE_DOCUMENT_GRANTS", "document_grants"),
		},

		StoreBackend:   getEnv("STORE_BACKEND", "dynamo"),
		StorageBackend: getEnv("STORAGE_BACKEND", "s3"),
		S3BucketName:   getEnv("S3_BUCKET_NAME", "docshare-files"),
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "docshare-files"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),
		FileURLTTL:     getEnvDuration("FILE_URL_TTL", 15*time.Minute),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		SessionTTL:        getEnvDuration("SESSION_TTL", 24*time.Hour),

		OTPSecret:         getEnv("OTP_SECRET", ""),
		OTPTTL:            getEnvDuration("OTP_TTL", 10*time.Minute),
		OTPResendCooldown: getEnvDuration("OTP_RESEND_COOLDOWN", 60*time.Second),
		OTPNotifier:       getEnv("OTP_NOTIFIER", "smtp"),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SNSRegion:   getEnv("SNS_REGION", "us-east-1"),
		SNSTopicARN: getEnv("SNS_TOPIC_ARN", ""),

		OTelEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTelProtocol:    getEnv("OTEL_EXPORTER_OTLP_PROTOCOL", "http/protobuf"),
		OTelServiceName: getEnv("OTEL_SERVICE_NAME", "docshare"),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		TrustedProxies: strings.Split(getEnv("TRUSTED_PROXIES", ""), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "24h").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
