package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/linemk/sweet-shop/internal/lib/logger/handlers/slogpretty"
)

// окружения, от которых зависит формат вывода
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Options параметры логгера из конфига
type Options struct {
	Env     string
	Service string
	// Level переопределяет уровень окружения: debug, info, warn, error
	Level string
}

// SetupLogger собирает логгер сервиса: local пишет цветной текст, dev/prod пишут JSON.
// Каждая запись несёт имя сервиса и окружение.
func SetupLogger(opts Options) *slog.Logger {
	return newLogger(os.Stdout, opts)
}

func newLogger(w io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: resolveLevel(opts)}

	var handler slog.Handler
	if opts.Env == EnvLocal {
		color.NoColor = false
		handler = slogpretty.PrettyHandlerOptions{SlogOpts: handlerOpts}.NewPrettyHandler(w)
	} else {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}

	attrs := []slog.Attr{slog.String("env", opts.Env)}
	if opts.Service != "" {
		attrs = append(attrs, slog.String("service", opts.Service))
	}
	return slog.New(handler.WithAttrs(attrs))
}

// resolveLevel берёт уровень из конфига, при пустом или неверном значении уровень окружения
func resolveLevel(opts Options) slog.Level {
	if opts.Level != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(strings.TrimSpace(opts.Level))); err == nil {
			return lvl
		}
	}

	switch opts.Env {
	case EnvLocal, EnvDev:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
