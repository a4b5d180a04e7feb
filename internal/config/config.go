package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	Environment string `env:"APP_ENV" envDefault:"development"`

	StoreDriver   string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret            string        `env:"JWT_SECRET,required,notEmpty"`
	JWTExpiresIn         time.Duration `env:"JWT_EXPIRES_IN" envDefault:"90d"`
	JWTCookieExpiresDays int           `env:"JWT_COOKIE_EXPIRES_IN" envDefault:"90"`

	PasswordHasher          string `env:"PASSWORD_HASHER" envDefault:"bcrypt"`
	BcryptCost              int    `env:"BCRYPT_COST" envDefault:"12"`
	PasswordResetTTLMinutes int    `env:"PASSWORD_RESET_TTL_MINUTES" envDefault:"10"`
	ResetURLBase            string `env:"RESET_URL_BASE" envDefault:"http://localhost:8080"`
	AllowAdminSignup        bool   `env:"ALLOW_ADMIN_SIGNUP" envDefault:"false"`

	EmailDriver      string `env:"EMAIL_DRIVER" envDefault:"log"`
	EmailFrom        string `env:"EMAIL_FROM" envDefault:"hello@natours.io"`
	EmailFromName    string `env:"EMAIL_FROM_NAME" envDefault:"Natours"`
	SMTPHost         string `env:"SMTP_HOST"`
	SMTPPort         int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser         string `env:"SMTP_USER"`
	SMTPPass         string `env:"SMTP_PASS"`
	SMTPUseTLS       bool   `env:"SMTP_USE_TLS" envDefault:"false"`
	MailerSendAPIKey string `env:"MAILERSEND_API_KEY"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	opts := env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(time.Duration(0)): parseLifetime,
		},
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// parseLifetime acepta duraciones de Go ("2160h") y dias enteros ("90d").
func parseLifetime(raw string) (interface{}, error) {
	raw = strings.TrimSpace(raw)
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid day duration %q", raw)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(raw)
}

// IsProduction indica si las cookies deben ser seguras y los errores opacos.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func (c *Config) PasswordResetTTL() time.Duration {
	return time.Duration(c.PasswordResetTTLMinutes) * time.Minute
}

func (c *Config) CookieTTL() time.Duration {
	return time.Duration(c.JWTCookieExpiresDays) * 24 * time.Hour
}
