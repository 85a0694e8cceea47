package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every setting when read from the environment,
// e.g. PORTRELAY_CONNECT_TIMEOUT for connect-timeout
const EnvPrefix = "PORTRELAY"

// Setting keys, shared by flags, environment variables and defaults
const (
	KeyRoutesFile      = "config"
	KeyLogLevel        = "log-level"
	KeyLogFormat       = "log-format"
	KeyJSON            = "json"
	KeyVerbose         = "verbose"
	KeyListenHost      = "listen-host"
	KeyTargetHost      = "target-host"
	KeyConnectTimeout  = "connect-timeout"
	KeyShutdownTimeout = "shutdown-timeout"
)

// Defaults applied when neither a flag nor an environment variable is set
const (
	DefaultRoutesFile      = "portrelay.conf"
	DefaultLogLevel        = "info"
	DefaultHost            = "127.0.0.1"
	DefaultConnectTimeout  = 5 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)

// Config holds the process-wide settings for portrelay.
// It is built once at startup and treated as read-only afterwards.
type Config struct {
	// RoutesFile is the path of the route file
	RoutesFile string

	// LogLevel controls logging verbosity (debug, info, warn, error)
	LogLevel string

	// LogFormat selects console or JSON log lines
	LogFormat LogFormat

	// ListenHost is the host every source port is bound on
	ListenHost string

	// TargetHost is the host every destination port is dialed on
	TargetHost string

	// ConnectTimeout bounds a single destination connect attempt; zero means no bound
	ConnectTimeout time.Duration

	// ShutdownTimeout bounds how long in-flight relays are drained on shutdown
	ShutdownTimeout time.Duration
}

// Load builds a Config from flags, PORTRELAY_* environment variables and
// defaults, in that order of precedence. flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyRoutesFile, DefaultRoutesFile)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, string(LogFormatConsole))
	v.SetDefault(KeyListenHost, DefaultHost)
	v.SetDefault(KeyTargetHost, DefaultHost)
	v.SetDefault(KeyConnectTimeout, DefaultConnectTimeout)
	v.SetDefault(KeyShutdownTimeout, DefaultShutdownTimeout)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	cfg := &Config{
		RoutesFile:      v.GetString(KeyRoutesFile),
		LogLevel:        v.GetString(KeyLogLevel),
		LogFormat:       LogFormat(strings.ToLower(v.GetString(KeyLogFormat))),
		ListenHost:      v.GetString(KeyListenHost),
		TargetHost:      v.GetString(KeyTargetHost),
		ConnectTimeout:  v.GetDuration(KeyConnectTimeout),
		ShutdownTimeout: v.GetDuration(KeyShutdownTimeout),
	}

	// Shortcut flags win over their long forms
	if v.GetBool(KeyJSON) {
		cfg.LogFormat = LogFormatJSON
	}
	if v.GetBool(KeyVerbose) {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

// Validate checks that the settings are usable
func (c *Config) Validate() error {
	var problems []string

	if !c.LogFormat.IsValid() {
		problems = append(problems, fmt.Sprintf("%s must be console or json, got %q", KeyLogFormat, c.LogFormat))
	}
	if strings.TrimSpace(c.ListenHost) == "" {
		problems = append(problems, KeyListenHost+" must not be empty")
	}
	if strings.TrimSpace(c.TargetHost) == "" {
		problems = append(problems, KeyTargetHost+" must not be empty")
	}
	if c.ConnectTimeout < 0 {
		problems = append(problems, KeyConnectTimeout+" must not be negative")
	}
	if c.ShutdownTimeout < 0 {
		problems = append(problems, KeyShutdownTimeout+" must not be negative")
	}
	if strings.TrimSpace(c.RoutesFile) == "" {
		problems = append(problems, KeyRoutesFile+" must not be empty")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return nil
}
