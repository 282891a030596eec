// Package config loads the diode command settings and the optional
// conversion rules file.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by diode
const EnvPrefix = "DIODE"

// Setting keys, shared with the cobra flag names
const (
	KeyLogLevel  = "log-level"
	KeyLogFormat = "log-format"
	KeySourceDir = "source-dir"
	KeyForce     = "force"
	KeyScaffold  = "scaffold"
	KeyRules     = "rules"
)

// DefaultRulesFile is looked up next to the netlist when no rules file is given
const DefaultRulesFile = "diode.hcl"

// Settings holds the command settings
type Settings struct {
	LogLevel  string
	LogFormat string
	// SourceDir is where sources go, relative to the output directory
	SourceDir string
	Force     bool
	// Scaffold is the command creating a missing project, run with the
	// project name appended
	Scaffold []string
	Rules    string
}

// NewViper returns a viper instance with the diode defaults and
// environment binding (DIODE_LOG_LEVEL, DIODE_SOURCE_DIR, ...)
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeySourceDir, filepath.Join("elec", "src"))
	v.SetDefault(KeyForce, false)
	v.SetDefault(KeyScaffold, "ato create")
	v.SetDefault(KeyRules, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the settings out of v
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		LogLevel:  v.GetString(KeyLogLevel),
		LogFormat: v.GetString(KeyLogFormat),
		SourceDir: v.GetString(KeySourceDir),
		Force:     v.GetBool(KeyForce),
		Scaffold:  strings.Fields(v.GetString(KeyScaffold)),
		Rules:     v.GetString(KeyRules),
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) validate() error {
	switch s.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format %q: want console or json", s.LogFormat)
	}
	if s.SourceDir == "" {
		return fmt.Errorf("source directory must not be empty")
	}
	if filepath.IsAbs(s.SourceDir) || strings.HasPrefix(filepath.Clean(s.SourceDir), "..") {
		return fmt.Errorf("source directory %q must be relative to the output directory", s.SourceDir)
	}
	return nil
}
