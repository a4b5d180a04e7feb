package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"natours/internal/config"
	"natours/internal/db"
	"natours/internal/email"
	"natours/internal/repository"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// newUserRepository abre el Credential Store elegido por STORE_DRIVER.
func newUserRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.UserRepository, func(), error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StoreDriver)) {
	case "", "postgres":
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.Ping(ctxPing, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres ping: %w", err)
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("postgres credential store ready")
		return repository.NewPgUserRepository(pool), pool.Close, nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, nil, fmt.Errorf("REDIS_ADDR is required for STORE_DRIVER=redis")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(ctxPing).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		logger.Info("redis credential store ready", zap.String("addr", cfg.RedisAddr))
		return repository.NewRedisUserRepository(client), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

// newEmailSender elige el backend segun EMAIL_DRIVER.
func newEmailSender(cfg *config.Config, logger *zap.Logger) (email.Sender, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.EmailDriver)) {
	case "", "log":
		if cfg.IsProduction() {
			logger.Warn("log email driver in production; reset emails will not be delivered")
			return email.NewDisabledSender("email sender not configured"), nil
		}
		return email.NewLogSender(logger), nil
	case "smtp":
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.EmailFrom, cfg.EmailFromName, cfg.SMTPUseTLS)
		if err != nil {
			return nil, err
		}
		return sender, nil
	case "mailersend":
		sender, err := email.NewMailerSendSender(cfg.MailerSendAPIKey, cfg.EmailFrom, cfg.EmailFromName)
		if err != nil {
			return nil, err
		}
		return sender, nil
	case "disabled":
		return email.NewDisabledSender("email sender disabled"), nil
	default:
		return nil, fmt.Errorf("unknown EMAIL_DRIVER %q", cfg.EmailDriver)
	}
}
