// Package config loads and serves the graft INI configuration. A single
// file describes the bootstrap artifact, logging sinks, and every payload
// the instance should be specialized with; the rest of the system reads
// its options exclusively through this package.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-ini/ini"
	"github.com/go-playground/validator/v10"
)

const (
	// DefaultPath is where instance images install the system configuration.
	DefaultPath = "/etc/graft.ini"

	// PathEnv names the environment variable that overrides DefaultPath.
	PathEnv = "GRAFT_INI"

	// payloadPrefix marks the sections that declare payloads.
	payloadPrefix = "payload:"
)

// Config wraps a parsed INI file. A Config loads at most once; constructing
// one is cheap, so each process builds exactly one and hands it down
// explicitly rather than sharing hidden global state.
type Config struct {
	file     *ini.File
	path     string
	validate *validator.Validate
}

// New returns an empty, unloaded Config.
func New() *Config {
	return &Config{validate: validator.New()}
}

// ResolvePath returns the configuration file path to load: the PathEnv
// environment variable when set, DefaultPath otherwise.
func ResolvePath() string {
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	return DefaultPath
}

// Load parses the INI file at path. An empty path resolves via ResolvePath.
// Loading an already-loaded Config is a ConfigurationError.
func (c *Config) Load(path string) error {
	if c.file != nil {
		return &ConfigurationError{
			Path:   c.path,
			Reason: "configuration already loaded",
		}
	}
	if path == "" {
		path = ResolvePath()
	}
	f, err := ini.Load(path)
	if err != nil {
		return &ConfigurationError{Path: path, Reason: "cannot read configuration", Err: err}
	}
	c.file = f
	c.path = path
	return nil
}

// LoadData parses configuration from an in-memory INI document. Used by the
// dev command and tests; the single-load rule applies all the same.
func (c *Config) LoadData(data []byte) error {
	if c.file != nil {
		return &ConfigurationError{
			Path:   c.path,
			Reason: "configuration already loaded",
		}
	}
	f, err := ini.Load(data)
	if err != nil {
		return &ConfigurationError{Reason: "cannot parse configuration", Err: err}
	}
	c.file = f
	c.path = "<inline>"
	return nil
}

// Loaded reports whether Load or LoadData has succeeded.
func (c *Config) Loaded() bool {
	return c.file != nil
}

// Path returns the path of the loaded configuration file.
func (c *Config) Path() string {
	return c.path
}

// HasSection reports whether the named section appears in the file.
func (c *Config) HasSection(name string) bool {
	if c.file == nil {
		return false
	}
	_, err := c.file.GetSection(name)
	return err == nil
}

// Value returns the string value of key in section, or "" when absent.
func (c *Config) Value(section, key string) string {
	if c.file == nil {
		return ""
	}
	s, err := c.file.GetSection(section)
	if err != nil {
		return ""
	}
	return s.Key(key).String()
}

// Absorb resolves the option set of a section. Every key named in required
// must be present, otherwise a ConfigurationError identifies the first one
// missing. Each key in defaults that is absent from the section is written
// back into it, so later readers of the section observe the resolved value.
// The returned map holds all required and defaulted options.
func (c *Config) Absorb(section string, required []string, defaults map[string]string) (map[string]string, error) {
	if c.file == nil {
		return nil, &ConfigurationError{Section: section, Reason: "configuration not loaded"}
	}
	s := c.file.Section(section)
	opts := make(map[string]string, len(required)+len(defaults))
	for _, key := range required {
		if !s.HasKey(key) {
			return nil, &ConfigurationError{
				Section: section,
				Key:     key,
				Reason:  "required option missing",
			}
		}
		opts[key] = s.Key(key).String()
	}
	for key, def := range defaults {
		if !s.HasKey(key) {
			if _, err := s.NewKey(key, def); err != nil {
				return nil, &ConfigurationError{Section: section, Key: key, Reason: "cannot set default", Err: err}
			}
		}
		opts[key] = s.Key(key).String()
	}
	return opts, nil
}

// PayloadNames returns the payloads declared in the configuration, in file
// order. A payload is any section named "payload:<name>"; deeper sections
// such as "payload:<name>:<method>" carry acquirer options and map back to
// the same payload, so each name is reported once.
func (c *Config) PayloadNames() []string {
	if c.file == nil {
		return nil
	}
	var names []string
	seen := make(map[string]bool)
	for _, s := range c.file.Sections() {
		if !strings.HasPrefix(s.Name(), payloadPrefix) {
			continue
		}
		name, _, _ := strings.Cut(strings.TrimPrefix(s.Name(), payloadPrefix), ":")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// PayloadSection returns the section name declaring the named payload.
func PayloadSection(name string) string {
	return payloadPrefix + name
}

// MethodSection returns the section name holding acquirer options for the
// named payload and acquisition method.
func MethodSection(name, method string) string {
	return fmt.Sprintf("%s%s:%s", payloadPrefix, name, method)
}
