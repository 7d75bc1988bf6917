// Package logging 封装 zerolog：统一的初始化配置和 context 透传。
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config 是日志配置。
type Config struct {
	// Level: trace, debug, info, warn, error, disabled，默认 info
	Level string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error disabled"`
	// Format: json 或 console，默认 json
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	// Caller 输出调用位置
	Caller bool `koanf:"caller"`
}

// New 按配置创建 logger，w 为 nil 时写 stderr。
func New(cfg Config, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	ctx := zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp()
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// ParseLevel 解析日志级别，无法识别时返回 info。
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Nop 返回不输出任何内容的 logger。
func Nop() zerolog.Logger { return zerolog.Nop() }

// WithContext 把 logger 放进 ctx。
func WithContext(ctx context.Context, l zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}

// FromContext 取出 ctx 中的 logger；没有时返回禁用的 logger。
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}
