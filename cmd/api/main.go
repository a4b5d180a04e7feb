package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"natours/internal/config"
	apihttp "natours/internal/http"
	"natours/internal/metrics"
	"natours/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	userRepo, closeStore, err := newUserRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("credential store", zap.Error(err))
	}
	defer closeStore()

	emailSender, err := newEmailSender(cfg, logger)
	if err != nil {
		logger.Fatal("email sender", zap.Error(err))
	}

	hasher, err := service.NewPasswordHasher(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		logger.Fatal("password hasher", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	authMetrics := metrics.NewMetrics(registry)

	tokens := service.NewTokenIssuer(service.TokenConfig{
		Secret: cfg.JWTSecret,
		TTL:    cfg.JWTExpiresIn,
	})
	authSvc := service.NewAuthService(logger, userRepo, hasher, tokens, emailSender, authMetrics, service.AuthConfig{
		ResetTTL:         cfg.PasswordResetTTL(),
		ResetURLBase:     cfg.ResetURLBase,
		AllowAdminSignup: cfg.AllowAdminSignup,
	})
	guard := service.NewSessionGuard(logger, tokens, userRepo, authMetrics)
	cookies := apihttp.NewCookieHelper(apihttp.CookieConfig{
		Secure: cfg.IsProduction(),
		MaxAge: cfg.CookieTTL(),
	})

	router := apihttp.NewRouter(apihttp.RouterDeps{
		Logger:     logger,
		Metrics:    authMetrics,
		Production: cfg.IsProduction(),
		Users:      apihttp.NewUserHandler(logger, authSvc, cookies),
		Guard:      guard,
		Cookies:    cookies,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.String("env", cfg.Environment),
		zap.String("store", cfg.StoreDriver),
		zap.String("email", cfg.EmailDriver),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}
