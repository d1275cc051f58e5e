package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-docshare/internal/application/otp"
	"github.com/go-docshare/internal/config"
	"github.com/go-docshare/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-docshare/internal/infrastructure/jwt"
	"github.com/go-docshare/internal/infrastructure/lognotify"
	"github.com/go-docshare/internal/infrastructure/memory"
	minioinfra "github.com/go-docshare/internal/infrastructure/minio"
	s3infra "github.com/go-docshare/internal/infrastructure/s3"
	"github.com/go-docshare/internal/infrastructure/smtp"
	"github.com/go-docshare/internal/infrastructure/sns"
	"github.com/go-docshare/internal/infrastructure/tracing"
	transporthttp "github.com/go-docshare/internal/transport/http"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	ctx := context.Background()

	if cfg.OTPSecret == "" {
		if cfg.AppEnv == "production" {
			log.Fatal("OTP_SECRET must be set in production")
		}
		cfg.OTPSecret = randomSecret()
		log.Println("WARN: OTP_SECRET not set, using a per-process secret")
	}

	shutdownTracing, err := tracing.Init(ctx, cfg)
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("JWT provider: %v", err)
	}

	deps := &transporthttp.Deps{JWTProvider: jwtProvider}

	switch cfg.StoreBackend {
	case "memory":
		log.Println("WARN: using in-memory stores, data is lost on restart")
		deps.UserRepo = memory.NewUserStore()
		deps.ChallengeRepo = memory.NewChallengeStore()
		deps.DocumentRepo = memory.NewDocumentStore()
	case "dynamo":
		// Bootstrap DynamoDB tables (creates them if they don't exist).
		dynamoClient := dynamo.NewClient(cfg)
		dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)
		deps.UserRepo = dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)
		deps.ChallengeRepo = dynamo.NewChallengeRepo(dynamoClient, cfg.DynamoTables.OtpChallenges)
		deps.DocumentRepo = dynamo.NewDocumentRepo(dynamoClient, cfg.DynamoTables.Documents, cfg.DynamoTables.DocumentGrants)
	default:
		log.Fatalf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	switch cfg.StorageBackend {
	case "s3":
		deps.Objects = s3infra.NewStore(s3infra.NewClient(cfg), cfg.S3BucketName)
	case "minio":
		store, err := minioinfra.NewStore(ctx, cfg.MinIO)
		if err != nil {
			log.Fatalf("minio: %v", err)
		}
		deps.Objects = store
	case "memory":
		deps.Objects = memory.NewObjectStore()
	default:
		log.Fatalf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	deps.Notifier, err = newNotifier(cfg)
	if err != nil {
		log.Fatalf("notifier: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	deps.Registry = reg

	router, err := transporthttp.NewRouter(cfg, deps)
	if err != nil {
		log.Fatalf("router: %v", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s store=%s storage=%s notifier=%s)",
			cfg.AppPort, cfg.AppEnv, cfg.StoreBackend, cfg.StorageBackend, cfg.OTPNotifier)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
	log.Println("Server stopped")
}

func newNotifier(cfg *config.Config) (otp.Notifier, error) {
	switch cfg.OTPNotifier {
	case "smtp":
		return smtp.NewOTPNotifier(smtp.NewMailer(cfg), cfg.OTPTTL), nil
	case "sns":
		return sns.NewOTPPublisher(cfg)
	case "log":
		return lognotify.New(slog.Default()), nil
	}
	return nil, fmt.Errorf("unknown OTP_NOTIFIER %q", cfg.OTPNotifier)
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		log.Fatalf("generate OTP secret: %v", err)
	}
	return hex.EncodeToString(b)
}
