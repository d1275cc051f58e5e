package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-docshare/internal/application/auth"
	"github.com/go-docshare/internal/application/document"
	"github.com/go-docshare/internal/application/otp"
	"github.com/go-docshare/internal/application/user"
	"github.com/go-docshare/internal/config"
	"github.com/go-docshare/internal/transport/http/handler"
	appmiddleware "github.com/go-docshare/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) (http.Handler, error) {
	if deps.JWTProvider == nil {
		return nil, fmt.Errorf("router: JWT provider is required")
	}
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	metrics, err := appmiddleware.NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("router: register metrics: %w", err)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(metrics.Handler)
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}

	proxies, err := appmiddleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}

	authMw := appmiddleware.Auth(deps.JWTProvider)

	// 5 requests/second, burst of 10 per client IP on the unauthenticated auth endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10).TrustProxies(proxies)

	otpSvc := otp.NewService(otp.ServiceDeps{
		ChallengeRepo:  deps.ChallengeRepo,
		Notifier:       deps.Notifier,
		Secret:         cfg.OTPSecret,
		TTL:            cfg.OTPTTL,
		ResendCooldown: cfg.OTPResendCooldown,
	})
	authSvc := auth.NewService(auth.ServiceDeps{UserRepo: deps.UserRepo, OTP: otpSvc, Tokens: deps.JWTProvider})
	userSvc := user.NewService(user.ServiceDeps{UserRepo: deps.UserRepo})
	docSvc := document.NewService(document.ServiceDeps{
		DocumentRepo:   deps.DocumentRepo,
		UserRepo:       deps.UserRepo,
		Objects:        deps.Objects,
		MaxUploadBytes: cfg.MaxUploadBytes,
		FileURLTTL:     cfg.FileURLTTL,
	})

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	userH := handler.NewUserHandler(userSvc)
	docH := handler.NewDocumentHandler(docSvc, cfg.MaxUploadBytes)

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health", healthH.Health)
		r.Group(func(r chi.Router) {
			r.Use(sensitiveRL.Limit)
			r.Post("/auth/register", authH.Register)
			r.Post("/auth/verify-otp", authH.VerifyOTP)
			r.Post("/auth/resend-otp", authH.ResendOTP)
			r.Post("/auth/login", authH.Login)
		})

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/auth/me", authH.Me)
			r.Put("/users/profile", userH.UpdateProfile)
			r.Put("/users/password", userH.ChangePassword)

			r.Get("/documents", docH.List)
			r.Post("/documents", docH.Upload)
			r.Get("/documents/shared", docH.ListShared)
			r.Get("/documents/{id}", docH.Get)
			r.Put("/documents/{id}", docH.Update)
			r.Delete("/documents/{id}", docH.Delete)
			r.Post("/documents/{id}/share", docH.Share)
			r.Put("/documents/{id}/share/{userId}", docH.UpdateAccess)
			r.Delete("/documents/{id}/share/{userId}", docH.Revoke)
		})
	})

	return otelhttp.NewHandler(r, cfg.OTelServiceName), nil
}
