package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the daemon reads.
const EnvPrefix = "CONTAINER_COPIER"

// Setting keys. They double as flag names.
const (
	KeyConfig        = "config"
	KeyVerbose       = "verbose"
	KeyBackend       = "backend"
	KeyLogLevel      = "log-level"
	KeyLogFormat     = "log-format"
	KeyLogFile       = "log-file"
	KeyLogMaxSize    = "log-max-size"
	KeyLogMaxBackups = "log-max-backups"
	KeyLogMaxAge     = "log-max-age"
	KeyMetricsAddr   = "metrics-addr"
)

// Settings controls how the daemon runs, as opposed to what it copies.
type Settings struct {
	ConfigPath string
	Verbose    int
	Backend    string

	LogLevel      string
	LogFormat     string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	MetricsAddr string
}

// NewViper returns a viper instance with defaults and environment
// binding applied. Flags are bound by the caller.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyConfig, DefaultPath)
	v.SetDefault(KeyVerbose, 0)
	v.SetDefault(KeyBackend, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyLogMaxSize, 10)
	v.SetDefault(KeyLogMaxBackups, 3)
	v.SetDefault(KeyLogMaxAge, 28)
	v.SetDefault(KeyMetricsAddr, "")
	return v
}

// SettingsFrom reads Settings out of v.
func SettingsFrom(v *viper.Viper) (Settings, error) {
	s := Settings{
		ConfigPath:    v.GetString(KeyConfig),
		Verbose:       v.GetInt(KeyVerbose),
		Backend:       v.GetString(KeyBackend),
		LogLevel:      v.GetString(KeyLogLevel),
		LogFormat:     v.GetString(KeyLogFormat),
		LogFile:       v.GetString(KeyLogFile),
		LogMaxSizeMB:  v.GetInt(KeyLogMaxSize),
		LogMaxBackups: v.GetInt(KeyLogMaxBackups),
		LogMaxAgeDays: v.GetInt(KeyLogMaxAge),
		MetricsAddr:   v.GetString(KeyMetricsAddr),
	}
	if s.ConfigPath == "" {
		return s, fmt.Errorf("%s: %w", KeyConfig, ErrMissingField)
	}
	switch s.LogFormat {
	case "console", "json":
	default:
		return s, fmt.Errorf("%s: unsupported format %q", KeyLogFormat, s.LogFormat)
	}
	if s.Verbose < 0 {
		s.Verbose = 0
	}
	return s, nil
}
