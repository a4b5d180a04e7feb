package main

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"natours/internal/config"
	"natours/internal/email"
	"natours/internal/repository"
)

func TestNewEmailSender(t *testing.T) {
	logger := zap.NewNop()

	sender, err := newEmailSender(&config.Config{EmailDriver: "log"}, logger)
	if err != nil {
		t.Fatalf("log driver: %v", err)
	}
	if _, ok := sender.(*email.LogSender); !ok {
		t.Fatalf("expected log sender, got %T", sender)
	}

	sender, err = newEmailSender(&config.Config{EmailDriver: "log", Environment: "production"}, logger)
	if err != nil {
		t.Fatalf("log driver in production: %v", err)
	}
	if err := sender.Send(context.Background(), email.Message{To: "a@b.io"}); err == nil {
		t.Fatalf("expected disabled sender in production")
	}

	if _, err := newEmailSender(&config.Config{EmailDriver: "mailersend"}, logger); err == nil {
		t.Fatalf("expected error without MAILERSEND_API_KEY")
	}
	if _, err := newEmailSender(&config.Config{EmailDriver: "pigeon"}, logger); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestNewUserRepository_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	repo, closeStore, err := newUserRepository(context.Background(), &config.Config{StoreDriver: "redis", RedisAddr: mr.Addr()}, zap.NewNop())
	if err != nil {
		t.Fatalf("redis store: %v", err)
	}
	defer closeStore()
	if _, ok := repo.(*repository.RedisUserRepository); !ok {
		t.Fatalf("expected redis repository, got %T", repo)
	}
}

func TestNewUserRepository_Rejections(t *testing.T) {
	ctx := context.Background()
	if _, _, err := newUserRepository(ctx, &config.Config{StoreDriver: "redis"}, zap.NewNop()); err == nil {
		t.Fatalf("expected error without REDIS_ADDR")
	}
	if _, _, err := newUserRepository(ctx, &config.Config{StoreDriver: "postgres"}, zap.NewNop()); err == nil {
		t.Fatalf("expected error without DATABASE_URL")
	}
	if _, _, err := newUserRepository(ctx, &config.Config{StoreDriver: "mongo"}, zap.NewNop()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
