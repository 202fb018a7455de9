package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"

	"github.com/alissayuxuan/OMNI-SYS/internal/shared/config"
)

var (
	Logger *slog.Logger
	level  = new(slog.LevelVar)
)

// Init configures the process logger. In "debug" server mode every record
// carries its source location; otherwise only warn and above do.
func Init(cfg *config.LoggerConfig, serverMode string) error {
	level.Set(parseLevel(cfg.Level))

	w, err := openOutput(cfg.OutputPath)
	if err != nil {
		return err
	}

	sourceLevel := slog.LevelWarn
	if serverMode == "debug" {
		sourceLevel = slog.LevelDebug
	}

	Logger = slog.New(newSourceHandler(newHandler(w, cfg.Format), sourceLevel))
	slog.SetDefault(Logger)
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openOutput(path string) (io.Writer, error) {
	switch strings.ToLower(path) {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// newHandler builds a JSON handler for format "json" and a tint text
// handler otherwise. Color is used only when w is a terminal.
func newHandler(w io.Writer, format string) slog.Handler {
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return tint.NewHandler(w, &tint.Options{
		Level:       level,
		TimeFormat:  time.DateTime,
		NoColor:     !isTerminal(w),
		ReplaceAttr: tintErrors,
	})
}

// tintErrors renders error attributes with tint's error styling.
func tintErrors(groups []string, a slog.Attr) slog.Attr {
	if a.Key == "error" && a.Value.Kind() == slog.KindAny {
		if err, ok := a.Value.Any().(error); ok {
			return tint.Err(err)
		}
	}
	return a
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func SetLevel(l slog.Level) {
	level.Set(l)
}

// Get returns the process logger, defaulting to info-level text on stdout
// when Init has not run.
func Get() *slog.Logger {
	if Logger == nil {
		Logger = slog.New(newSourceHandler(newHandler(os.Stdout, "text"), slog.LevelWarn))
		slog.SetDefault(Logger)
	}
	return Logger
}

func Debug(msg string, args ...any) { Get().Debug(msg, args...) }
func Info(msg string, args ...any)  { Get().Info(msg, args...) }
func Warn(msg string, args ...any)  { Get().Warn(msg, args...) }
func Error(msg string, args ...any) { Get().Error(msg, args...) }

// Sync is a no-op kept for deferred calls at process exit.
func Sync() error {
	return nil
}

func WithComponent(component string) Interface {
	return FromSlog(Get().With("component", component))
}
