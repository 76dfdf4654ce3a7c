package logging

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents logging level
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
	LevelFatal LogLevel = "fatal"
)

// Logger wraps zerolog with additional functionality
type Logger struct {
	logger  zerolog.Logger
	service string
}

// Config holds logger configuration
type Config struct {
	Level       LogLevel
	Service     string
	Environment string
	Version     string
	Output      io.Writer
	PrettyLog   bool
	AddCaller   bool
}

// DefaultConfig returns default logger configuration
func DefaultConfig(service string) *Config {
	environment := getEnv("ENVIRONMENT", "development")
	return &Config{
		Level:       LogLevel(getEnv("LOG_LEVEL", string(LevelInfo))),
		Service:     service,
		Environment: environment,
		Version:     getEnv("SERVICE_VERSION", "unknown"),
		Output:      os.Stderr,
		PrettyLog:   environment == "development",
		AddCaller:   environment != "development",
	}
}

// NewLogger creates a new structured logger
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig("unknown")
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	if config.PrettyLog {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: "15:04:05.000",
		}
	}

	logger := zerolog.New(output).
		Level(parseLevel(config.Level)).
		With().
		Timestamp().
		Str("service", config.Service).
		Str("environment", config.Environment).
		Str("version", config.Version).
		Logger()

	if config.AddCaller {
		logger = logger.With().Caller().Logger()
	}

	return &Logger{
		logger:  logger,
		service: config.Service,
	}
}

// NewNop returns a logger that discards everything. Used by tests.
func NewNop() *Logger {
	return &Logger{logger: zerolog.Nop(), service: "nop"}
}

// WithContext creates a logger with correlation values carried by ctx
func (l *Logger) WithContext(ctx context.Context) *Logger {
	builder := l.logger.With()

	if correlationID := GetCorrelationID(ctx); correlationID != "" {
		builder = builder.Str("correlation_id", correlationID)
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		builder = builder.Str("request_id", requestID)
	}
	if attemptID := GetAttemptID(ctx); attemptID != "" {
		builder = builder.Str("attempt_id", attemptID)
	}
	if address := GetAddress(ctx); address != "" {
		builder = builder.Str("address", address)
	}

	return &Logger{logger: builder.Logger(), service: l.service}
}

// WithField adds a field to the logger
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{
		logger:  l.logger.With().Interface(key, value).Logger(),
		service: l.service,
	}
}

// WithFields adds multiple fields to the logger
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{
		logger:  l.logger.With().Fields(fields).Logger(),
		service: l.service,
	}
}

// WithError adds an error to the logger
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}

	newLogger := l.logger.With().
		Err(err).
		Str("error_type", fmt.Sprintf("%T", err)).
		Logger()

	if l.logger.GetLevel() <= zerolog.DebugLevel {
		if stack := getStackTrace(2); len(stack) > 0 {
			newLogger = newLogger.With().Strs("stack", stack).Logger()
		}
	}

	return &Logger{logger: newLogger, service: l.service}
}

func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

func (l *Logger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *Logger) Error(msg string) {
	l.logger.Error().Msg(msg)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string) {
	l.logger.Fatal().Msg(msg)
}

// Audit logs an audit event
func (l *Logger) Audit(event string, fields map[string]interface{}) {
	auditLogger := l.logger.With().
		Str("audit_event", event).
		Time("audit_timestamp", time.Now()).
		Fields(fields).
		Logger()

	auditLogger.Info().Msg("AUDIT")
}

// Performance logs a performance metric
func (l *Logger) Performance(operation string, duration time.Duration, fields map[string]interface{}) {
	perfLogger := l.logger.With().
		Str("operation", operation).
		Dur("duration_ms", duration).
		Fields(fields).
		Logger()

	// Log as warning if operation is slow
	if duration > 5*time.Second {
		perfLogger.Warn().Msg("SLOW_OPERATION")
	} else {
		perfLogger.Debug().Msg("PERFORMANCE")
	}
}

// Security logs a security event
func (l *Logger) Security(event string, severity string, fields map[string]interface{}) {
	secLogger := l.logger.With().
		Str("security_event", event).
		Str("severity", severity).
		Time("security_timestamp", time.Now()).
		Fields(fields).
		Logger()

	switch severity {
	case "critical", "high":
		secLogger.Error().Msg("SECURITY")
	case "medium":
		secLogger.Warn().Msg("SECURITY")
	default:
		secLogger.Info().Msg("SECURITY")
	}
}

// RedactToken keeps a short prefix of a bearer-like secret plus its length.
// Full identity tokens must never reach the logs.
func RedactToken(token string) string {
	if token == "" {
		return "<absent>"
	}
	const keep = 10
	if len(token) <= keep {
		return fmt.Sprintf("<redacted len=%d>", len(token))
	}
	return fmt.Sprintf("%s...<len=%d>", token[:keep], len(token))
}

// Fingerprint returns a short, stable digest of a secret so log lines can be correlated
// without revealing the value.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:6])
}

func parseLevel(level LogLevel) zerolog.Level {
	switch LogLevel(strings.ToLower(string(level))) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelFatal:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getStackTrace(skip int) []string {
	var stack []string
	for i := skip; i < skip+5; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn != nil {
			stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		}
	}
	return stack
}
