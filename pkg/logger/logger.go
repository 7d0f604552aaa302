package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/noah-isme/voice-attendance-api/pkg/config"
	"github.com/noah-isme/voice-attendance-api/pkg/middleware/requestid"
)

// ServiceName tags every log line emitted by the ledger.
const ServiceName = "voice-attendance"

// New builds the process logger. Production uses zap's sampled production
// preset; every other env gets the development preset. Each entry carries
// the service name, env and the configured voiceprint match backend.
func New(cfg *config.Config) (*zap.Logger, error) {
	return zapConfig(cfg).Build()
}

func zapConfig(cfg *config.Config) zap.Config {
	var zapCfg zap.Config
	if cfg.Env == config.EnvProduction {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Log.Format {
	case "console":
		zapCfg.Encoding = "console"
	default:
		zapCfg.Encoding = "json"
	}

	if cfg.Log.Level != "" {
		if err := zapCfg.Level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
	}

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.InitialFields = map[string]interface{}{
		"service":       ServiceName,
		"env":           cfg.Env,
		"match_backend": cfg.Voice.MatchBackend,
	}
	return zapCfg
}

// GinMiddleware logs one "http_request" entry per request. The route field is
// the matched pattern (empty for 404s) and error_code is set when the handler
// answered with an error envelope.
func GinMiddleware(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if reqID := requestid.Value(c); reqID != "" {
			fields = append(fields, zap.String("request_id", reqID))
		}
		if code, ok := c.Get(ErrorCodeKey); ok {
			fields = append(fields, zap.Any("error_code", code))
		}

		switch {
		case status >= 500:
			l.Error("http_request", fields...)
		case status >= 400:
			l.Warn("http_request", fields...)
		default:
			l.Info("http_request", fields...)
		}
	}
}

// ErrorCodeKey is the gin context key under which the error code of a failed
// response is stored for request logging.
const ErrorCodeKey = "error_code"
