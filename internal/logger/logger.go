// Package logger сборка *zap.Logger из настроек окружения.
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultService = "gamebook-server"

// Config содержит настройки для логгера.
type Config struct {
	Level       string // debug, info, warn, error
	Encoding    string // json или console
	OutputPath  string // путь к файлу лога, пусто - stdout
	Service     string // значение поля service, пусто - gamebook-server
	Development bool   // caller и стектрейсы для warn и выше
}

// New создает zap.Logger по конфигурации. Неизвестный уровень заменяется на info,
// о чем логгер сам пишет первой записью.
func New(cfg Config) (*zap.Logger, error) {
	level, levelErr := parseLevel(cfg.Level)

	sink, _, err := zap.Open(outputPath(cfg.OutputPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open log output %q: %w", cfg.OutputPath, err)
	}

	core := zapcore.NewCore(newEncoder(cfg.Encoding), sink, zap.NewAtomicLevelAt(level))
	opts := []zap.Option{zap.ErrorOutput(zapcore.Lock(os.Stderr))}
	if cfg.Development {
		opts = append(opts, zap.AddCaller(), zap.AddStacktrace(zapcore.WarnLevel), zap.Development())
	}

	service := cfg.Service
	if service == "" {
		service = defaultService
	}
	logger := zap.New(core, opts...).With(zap.String("service", service))
	if levelErr != nil {
		logger.Warn("Invalid log level, using info", zap.String("requested", cfg.Level), zap.Error(levelErr))
	}
	return logger, nil
}

func parseLevel(raw string) (zapcore.Level, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return zapcore.InfoLevel, nil
	}
	level, err := zapcore.ParseLevel(strings.ToLower(raw))
	if err != nil {
		return zapcore.InfoLevel, err
	}
	return level, nil
}

// newEncoder json по умолчанию, console с цветными уровнями для локального запуска.
func newEncoder(encoding string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeDuration = zapcore.StringDurationEncoder

	if strings.EqualFold(strings.TrimSpace(encoding), "console") {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(encoderCfg)
}

func outputPath(path string) string {
	if strings.TrimSpace(path) == "" {
		return "stdout"
	}
	return path
}
