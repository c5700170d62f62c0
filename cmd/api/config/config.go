package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	AuthDev    = "dev"
	AuthStatic = "static"
)

var (
	ErrUnknownDriver    = errors.New("STORE_DRIVER must be postgres or memory")
	ErrMissingDBURL     = errors.New("DATABASE_URL is required by the postgres driver")
	ErrUnknownAuthMode  = errors.New("AUTH_MODE must be dev or static")
	ErrMissingTokenFile = errors.New("AUTH_TOKENS_FILE is required by the static auth mode")
	ErrUnknownLogFormat = errors.New("LOG_FORMAT must be text or json")
	ErrMissingNotifyURL = errors.New("NOTIFICATIONS_URL is required when notifications are enabled")
)

type Config struct {
	StoreDriver string

	DatabaseURL          string
	MigrationsPath       string
	DBMaxOpenConns       int
	DBMaxIdleConns       int
	DBConnMaxLifetime    time.Duration
	StorageTimeout       time.Duration
	HTTPPort             int
	HTTPRequestTimeout   time.Duration
	RedisAddr            string
	OrderGuardTTL        time.Duration
	ObjectStorePath      string
	ObjectStoreBaseURL   string
	NotificationsEnabled bool
	NotificationsURL     string
	NotificationsTimeout time.Duration
	NotificationsSender  string
	ApprovalRecipients   []string
	AuthMode             string
	AuthTokensFile       string
	LogLevel             logrus.Level
	LogFormat            string
}

/* Reads the configuration from the process environment. */
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	r := reader{getenv: getenv}
	cfg := Config{
		StoreDriver:          r.str("STORE_DRIVER", DriverPostgres),
		DatabaseURL:          getenv("DATABASE_URL"),
		MigrationsPath:       r.str("DATABASE_MIGRATIONS_PATH", "migrations"),
		DBMaxOpenConns:       r.integer("DATABASE_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:       r.integer("DATABASE_MAX_IDLE_CONNS", 25),
		DBConnMaxLifetime:    r.duration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		StorageTimeout:       r.duration("STORAGE_TIMEOUT", 5*time.Second),
		HTTPPort:             r.integer("HTTP_PORT", 8080),
		HTTPRequestTimeout:   r.duration("HTTP_REQUEST_TIMEOUT", 10*time.Second),
		RedisAddr:            getenv("REDIS_ADDR"),
		OrderGuardTTL:        r.duration("ORDER_GUARD_TTL", 30*time.Second),
		ObjectStorePath:      getenv("OBJECT_STORE_PATH"),
		ObjectStoreBaseURL:   r.str("OBJECT_STORE_BASE_URL", "http://localhost:8080/objects"),
		NotificationsEnabled: r.boolean("NOTIFICATIONS_ENABLED", false),
		NotificationsURL:     getenv("NOTIFICATIONS_URL"),
		NotificationsTimeout: r.duration("NOTIFICATIONS_TIMEOUT", 2*time.Second),
		NotificationsSender:  r.str("NOTIFICATIONS_SENDER", "notifications@books.local"),
		ApprovalRecipients:   r.list("APPROVAL_RECIPIENTS"),
		AuthMode:             r.str("AUTH_MODE", AuthStatic),
		AuthTokensFile:       getenv("AUTH_TOKENS_FILE"),
		LogFormat:            r.str("LOG_FORMAT", "text"),
	}

	level, err := logrus.ParseLevel(r.str("LOG_LEVEL", "info"))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	cfg.LogLevel = level

	if err := errors.Join(r.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return ErrMissingDBURL
		}
	case DriverMemory:
	default:
		return fmt.Errorf("%w, got %q", ErrUnknownDriver, cfg.StoreDriver)
	}

	switch cfg.AuthMode {
	case AuthStatic:
		if cfg.AuthTokensFile == "" {
			return ErrMissingTokenFile
		}
	case AuthDev:
	default:
		return fmt.Errorf("%w, got %q", ErrUnknownAuthMode, cfg.AuthMode)
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("%w, got %q", ErrUnknownLogFormat, cfg.LogFormat)
	}
	if cfg.NotificationsEnabled && cfg.NotificationsURL == "" {
		return ErrMissingNotifyURL
	}
	return nil
}

// reader collects every malformed variable so start-up reports them all at once.
type reader struct {
	getenv func(string) string
	errs   []error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) integer(key string, def int) int {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		r.errs = append(r.errs, fmt.Errorf("%s must be a non negative integer, got %q", key, v))
		return def
	}
	return n
}

//This ENV must be written with a unit suffix, like 5s
func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	if d < 0 {
		r.errs = append(r.errs, fmt.Errorf("%s must not be negative, got %q", key, v))
		return def
	}
	return d
}

func (r *reader) boolean(key string, def bool) bool {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (r *reader) list(key string) []string {
	var items []string
	for _, item := range strings.Split(r.getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
