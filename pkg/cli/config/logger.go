package config

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/masq"
	"github.com/urfave/cli/v3"
)

// Logger holds logger configuration
type Logger struct {
	Level string
	JSON  bool

	output  io.Writer
	secrets []string
}

// Flags returns CLI flags for logger configuration
func (c *Logger) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &c.Level,
			Sources:     cli.EnvVars("DEPLOYER_LOG_LEVEL"),
		},
		&cli.BoolFlag{
			Name:        "log-json",
			Usage:       "Output logs in JSON format",
			Value:       false,
			Destination: &c.JSON,
			Sources:     cli.EnvVars("DEPLOYER_LOG_JSON"),
		},
	}
}

// SetOutput replaces the log destination, os.Stdout by default
func (c *Logger) SetOutput(w io.Writer) {
	c.output = w
}

// AddSecrets registers values masked by every logger built afterwards
func (c *Logger) AddSecrets(secrets ...string) {
	for _, s := range secrets {
		if s != "" {
			c.secrets = append(c.secrets, s)
		}
	}
}

// Configure builds a logger that masks fields tagged `masq:"secret"` and any
// attribute containing a registered secret or one of secrets
func (c *Logger) Configure(secrets ...string) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, goerr.New("invalid log level", goerr.V("level", c.Level))
	}

	maskOpts := []masq.Option{masq.WithTag("secret")}
	for _, s := range append(c.secrets[:len(c.secrets):len(c.secrets)], secrets...) {
		if s != "" {
			maskOpts = append(maskOpts, masq.WithContain(s))
		}
	}
	filter := masq.New(maskOpts...)

	w := c.output
	if w == nil {
		w = os.Stdout
	}

	var handler slog.Handler
	if c.JSON {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: filter,
		})
	} else {
		handler = clog.New(
			clog.WithWriter(w),
			clog.WithLevel(level),
			clog.WithReplaceAttr(filter),
			clog.WithColor(w == os.Stdout),
		)
	}

	return slog.New(handler), nil
}
