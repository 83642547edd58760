package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the process logger the solve path writes to
var Logger *logrus.Logger

// Options configures a logger. Empty fields fall back to LOG_LEVEL and
// LOG_FORMAT, then to debug text in development and info JSON otherwise.
type Options struct {
	Level       string
	Format      string // "json" or "text"
	Development bool
	Output      io.Writer
}

// New builds a logger without touching the process logger
func New(opts Options) *logrus.Logger {
	log := logrus.New()

	level := firstSet(opts.Level, os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
		if opts.Development {
			level = "debug"
		}
	}
	if parsed, err := logrus.ParseLevel(strings.ToLower(level)); err == nil {
		log.SetLevel(parsed)
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.WithField("invalid_level", level).Warn("Invalid LOG_LEVEL, using INFO")
	}

	format := strings.ToLower(firstSet(opts.Format, os.Getenv("LOG_FORMAT")))
	if format == "" {
		format = "json"
		if opts.Development {
			format = "text"
		}
	}
	if format == "text" {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	if opts.Output != nil {
		log.SetOutput(opts.Output)
	} else {
		log.SetOutput(os.Stdout)
	}
	return log
}

// Init builds a logger from opts and installs it as the process logger
func Init(opts Options) *logrus.Logger {
	Logger = New(opts)
	return Logger
}

// InitLogger installs a stdout logger at logLevel
func InitLogger(logLevel string, isDevelopment bool) *logrus.Logger {
	return Init(Options{Level: logLevel, Development: isDevelopment})
}

// GetLogger returns the process logger, installing an info JSON one if needed
func GetLogger() *logrus.Logger {
	if Logger == nil {
		return InitLogger("info", false)
	}
	return Logger
}

func WithService(serviceName string) *logrus.Entry {
	return GetLogger().WithField("service", serviceName)
}

// WithSolveContext tags every line of one solve with its id and objective mode
func WithSolveContext(solveID, mode string) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields{
		"solve_id": solveID,
		"mode":     mode,
	})
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
