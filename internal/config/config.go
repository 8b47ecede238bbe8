// Package config конфигурация сервиса из переменных окружения и Docker Secrets.
package config

import (
	"fmt"
	"time"

	"gamebook-server/internal/utils"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

const (
	BackendModeMemory = "memory"
	BackendModeHTTP   = "http"
)

// Config содержит конфигурацию gamebook-server.
type Config struct {
	// Сервер
	Port            string        `envconfig:"GAMEBOOK_SERVER_PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	CORSOrigins     []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	WSOrigins       []string      `envconfig:"WS_ALLOWED_ORIGINS"`

	// Логирование
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`
	LogOutput   string `envconfig:"LOG_OUTPUT"`

	// Внешний бэкенд историй
	BackendMode    string        `envconfig:"BACKEND_MODE" default:"memory"`
	BackendURL     string        `envconfig:"BACKEND_URL"`
	BackendTimeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"10s"`
	MemorySeedFile string        `envconfig:"MEMORY_SEED_FILE"`
	// Секретное поле без envconfig тега
	BackendToken string `ignored:"true"`

	// Редактор и автосохранение
	AutosaveDelay          time.Duration `envconfig:"AUTOSAVE_DELAY" default:"1500ms"`
	AutosaveMaxParallel    int           `envconfig:"AUTOSAVE_MAX_PARALLEL" default:"8"`
	SaveOnEditorClose      bool          `envconfig:"SAVE_ON_EDITOR_CLOSE" default:"true"`
	EnforceEndingInvariant bool          `envconfig:"ENFORCE_ENDING_INVARIANT" default:"true"`

	// Прохождение
	DicePrecedence  string `envconfig:"DICE_PRECEDENCE" default:"explicit"`
	DiceSeed        int64  `envconfig:"DICE_SEED"`
	MarkupCacheSize int    `envconfig:"MARKUP_CACHE_SIZE" default:"4096"`

	// PostgreSQL (журнал черновиков). Пустой DB_HOST отключает журнал.
	DBHost           string        `envconfig:"DB_HOST"`
	DBPort           string        `envconfig:"DB_PORT" default:"5432"`
	DBUser           string        `envconfig:"DB_USER" default:"gamebook"`
	DBName           string        `envconfig:"DB_NAME" default:"gamebook"`
	DBSSLMode        string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns       int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout    time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	JournalRetention time.Duration `envconfig:"JOURNAL_RETENTION" default:"720h"`
	// Секретное поле без envconfig тега
	DBPassword string `ignored:"true"`

	// Redis (раскладка узлов). Пустой URL - раскладка в памяти.
	RedisURL  string        `envconfig:"REDIS_URL"`
	LayoutTTL time.Duration `envconfig:"LAYOUT_TTL"`

	// RabbitMQ (события прохождения). Пустой URL - события не публикуются.
	RabbitMQURL     string `envconfig:"RABBITMQ_URL"`
	PlayEventsQueue string `envconfig:"PLAY_EVENTS_QUEUE" default:"play_events"`
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// JournalEnabled - настроен PostgreSQL для журнала черновиков.
func (c *Config) JournalEnabled() bool {
	return c.DBHost != ""
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	switch c.BackendMode {
	case BackendModeMemory:
	case BackendModeHTTP:
		if c.BackendURL == "" {
			return fmt.Errorf("BACKEND_URL is required when BACKEND_MODE=%s", BackendModeHTTP)
		}
	default:
		return fmt.Errorf("unknown BACKEND_MODE %q", c.BackendMode)
	}
	if c.AutosaveDelay <= 0 {
		return fmt.Errorf("AUTOSAVE_DELAY must be positive, got %s", c.AutosaveDelay)
	}
	if c.AutosaveMaxParallel < 1 {
		return fmt.Errorf("AUTOSAVE_MAX_PARALLEL must be at least 1, got %d", c.AutosaveMaxParallel)
	}
	return nil
}

// LoadConfig загружает конфигурацию из переменных окружения и необязательных секретов.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации gamebook-server: %w", err)
	}

	var err error
	if cfg.BackendToken, err = utils.ReadOptionalSecret("backend_token", ""); err != nil {
		return nil, err
	}
	if cfg.JournalEnabled() {
		if cfg.DBPassword, err = utils.ReadOptionalSecret("db_password", ""); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LogSummary пишет итоговую конфигурацию без секретов.
func (c *Config) LogSummary(logger *zap.Logger) {
	logger.Info("Конфигурация загружена",
		zap.String("port", c.Port),
		zap.String("backend_mode", c.BackendMode),
		zap.String("backend_url", c.BackendURL),
		zap.Bool("backend_token", c.BackendToken != ""),
		zap.Duration("autosave_delay", c.AutosaveDelay),
		zap.Int("autosave_max_parallel", c.AutosaveMaxParallel),
		zap.String("dice_precedence", c.DicePrecedence),
		zap.Bool("journal", c.JournalEnabled()),
		zap.Bool("redis_layout", c.RedisURL != ""),
		zap.Bool("play_events", c.RabbitMQURL != ""),
	)
}
