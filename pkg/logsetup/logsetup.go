// Package logsetup configures the process-wide zerolog logger from the
// [logging] configuration section: a console sink on stderr and an
// optional syslog sink, each with its own severity threshold.
package logsetup

import (
	"fmt"
	"io"
	"log/syslog"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/graftwork/graft/pkg/config"
)

// ConsoleEnv names the environment variable that overrides the console
// log level. It is honored before the configuration file is loaded, so
// the bootstrap path can be debugged.
const ConsoleEnv = "GRAFT_CONSOLE"

// Tag is the syslog identification string.
const Tag = "graft"

// disabledLevel marks a sink as turned off.
const disabledLevel = zerolog.Disabled

// Configure installs the global logger. A nil or unloaded cfg applies
// the documented defaults (console at INFO, syslog off). Calling it
// again reconfigures the logger; the run command does exactly that once
// the configuration file is available.
func Configure(cfg *config.Config) error {
	lc := &config.LoggingConfig{
		Console:        "INFO",
		Syslog:         config.Disabled,
		SyslogFacility: "user",
	}
	if cfg != nil && cfg.Loaded() {
		resolved, err := cfg.Logging()
		if err != nil {
			return err
		}
		lc = resolved
	}
	if env := os.Getenv(ConsoleEnv); env != "" {
		lc.Console = env
	}

	consoleLevel, err := ParseLevel(lc.Console)
	if err != nil {
		return err
	}
	syslogLevel, err := ParseLevel(lc.Syslog)
	if err != nil {
		return err
	}

	var writers []io.Writer
	if consoleLevel != disabledLevel {
		console := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			NoColor:    !isTerminal(os.Stderr),
		}
		writers = append(writers, &zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: console},
			Level:  consoleLevel,
		})
	}
	if syslogLevel != disabledLevel {
		facility, err := ParseFacility(lc.SyslogFacility)
		if err != nil {
			return err
		}
		sw, err := syslog.New(facility|syslog.LOG_INFO, Tag)
		if err != nil {
			return fmt.Errorf("logsetup: cannot open syslog: %w", err)
		}
		writers = append(writers, &zerolog.FilteredLevelWriter{
			Writer: zerolog.SyslogLevelWriter(sw),
			Level:  syslogLevel,
		})
	}

	if len(writers) == 0 {
		log.Logger = zerolog.Nop()
		return nil
	}

	level := consoleLevel
	if syslogLevel < level {
		level = syslogLevel
	}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Logger()
	return nil
}

// ParseLevel maps a configured severity name to a zerolog level. Names
// are matched case-insensitively; DISABLED turns the sink off.
func ParseLevel(name string) (zerolog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return zerolog.DebugLevel, nil
	case "INFO":
		return zerolog.InfoLevel, nil
	case "WARNING", "WARN":
		return zerolog.WarnLevel, nil
	case "ERROR":
		return zerolog.ErrorLevel, nil
	case "CRITICAL", "FATAL":
		return zerolog.FatalLevel, nil
	case config.Disabled:
		return disabledLevel, nil
	}
	return disabledLevel, &config.ConfigurationError{
		Section: "logging",
		Reason:  fmt.Sprintf("unknown log level %q", name),
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
