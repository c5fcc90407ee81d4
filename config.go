// config.go: bootstrap configuration model, defaults and validation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/agilira/argus"
	"gopkg.in/yaml.v3"
)

// maxConfigSize bounds configuration files read by LoadConfigFromFile.
const maxConfigSize = 10 * 1024 * 1024

// Log levels accepted in Config.LogLevel.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// CompatibilityConfig is the textual form of a CompatibilityRange.
type CompatibilityConfig struct {
	Min string `json:"min" yaml:"min"`
	Max string `json:"max" yaml:"max"`
}

// Config describes how a runtime is discovered, loaded and initialized.
//
// Example YAML:
//
//	auto_search: true
//	candidate_pattern: "xulrunner*"
//	compatibility:
//	  min: "1.8"
//	  max: "1.9.2.99"
//	profile:
//	  app_name: my-app
//	log_level: info
type Config struct {
	ApplicationDir    string              `json:"application_dir,omitempty" yaml:"application_dir,omitempty"`
	AutoSearch        bool                `json:"auto_search" yaml:"auto_search"`
	CandidatePattern  string              `json:"candidate_pattern,omitempty" yaml:"candidate_pattern,omitempty"`
	SystemSearchPaths []string            `json:"system_search_paths,omitempty" yaml:"system_search_paths,omitempty"`
	Compatibility     CompatibilityConfig `json:"compatibility" yaml:"compatibility"`
	Libraries         []LibrarySpec       `json:"libraries,omitempty" yaml:"libraries,omitempty"`
	Profile           ProfileLocator      `json:"profile" yaml:"profile"`
	LogLevel          string              `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	Audit             AuditSettings       `json:"audit" yaml:"audit"`
}

// DefaultConfig returns a configuration that searches for a runtime in the
// default compatibility range next to the executable and in the system
// locations of the current platform.
func DefaultConfig() Config {
	cfg := Config{
		AutoSearch: true,
		Compatibility: CompatibilityConfig{
			Min: DefaultCompatibilityRange.Min.String(),
			Max: DefaultCompatibilityRange.Max.String(),
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields. ApplicationDir stays empty when the
// executable path cannot be determined.
func (c *Config) ApplyDefaults() {
	if c.ApplicationDir == "" {
		if exe, err := os.Executable(); err == nil {
			c.ApplicationDir = filepath.Dir(exe)
		}
	}
	if c.CandidatePattern == "" {
		c.CandidatePattern = DefaultCandidatePattern
	}
	if c.SystemSearchPaths == nil {
		c.SystemSearchPaths = DefaultSystemSearchPaths(runtime.GOOS)
	}
	if c.Compatibility.Min == "" {
		c.Compatibility.Min = DefaultCompatibilityRange.Min.String()
	}
	if c.Compatibility.Max == "" {
		c.Compatibility.Max = DefaultCompatibilityRange.Max.String()
	}
	if len(c.Libraries) == 0 {
		c.Libraries = DefaultLibraries(runtime.GOOS)
	}
	if c.Profile.AppName == "" {
		c.Profile.AppName = DefaultProfileAppName
	}
	if c.LogLevel == "" {
		c.LogLevel = LogLevelInfo
	}
}

// CompatibilityRange parses the configured version range.
func (c Config) CompatibilityRange() (CompatibilityRange, error) {
	lo, hi := c.Compatibility.Min, c.Compatibility.Max
	if lo == "" {
		lo = DefaultCompatibilityRange.Min.String()
	}
	if hi == "" {
		hi = DefaultCompatibilityRange.Max.String()
	}
	return NewCompatibilityRange(lo, hi)
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if _, err := c.CompatibilityRange(); err != nil {
		return NewConfigValidationError("invalid compatibility range", err)
	}
	if c.CandidatePattern != "" {
		if _, err := filepath.Match(c.CandidatePattern, ""); err != nil {
			return NewConfigValidationError("invalid candidate pattern", err).
				WithContext("candidate_pattern", c.CandidatePattern)
		}
		if strings.ContainsAny(c.CandidatePattern, `/\`) {
			return NewConfigValidationError("candidate pattern must match a single directory name", nil).
				WithContext("candidate_pattern", c.CandidatePattern)
		}
	}
	if _, err := OrderLibraries(c.Libraries); err != nil {
		return NewConfigValidationError("invalid library list", err)
	}
	if strings.ContainsAny(c.Profile.AppName, `/\`) {
		return NewConfigValidationError("profile app name must not contain path separators", nil).
			WithContext("app_name", c.Profile.AppName)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return NewConfigValidationError("invalid log level", nil).
			WithContext("log_level", c.LogLevel)
	}
	if _, err := c.Audit.flushInterval(); err != nil {
		return err
	}
	return nil
}

// LoadConfigFromFile loads a configuration file, expanding environment
// placeholders with DefaultEnvConfigOptions.
//
// The format follows the file extension: YAML is decoded with yaml.v3,
// JSON, TOML and INI through argus. Keys absent from the file keep their
// DefaultConfig values.
//
//	cfg, err := goxpcom.LoadConfigFromFile("xpcom.yaml")
//	if err != nil {
//		return err
//	}
//	rt, err := goxpcom.Bootstrap(cfg)
func LoadConfigFromFile(path string) (Config, error) {
	return LoadConfigFromFileWithEnv(path, DefaultEnvConfigOptions())
}

// LoadConfigFromFileWithEnv is LoadConfigFromFile with explicit expansion
// options.
func LoadConfigFromFileWithEnv(path string, options EnvConfigOptions) (Config, error) {
	cfg := DefaultConfig()

	securePath, err := secureConfigPath(path)
	if err != nil {
		return cfg, err
	}
	content, err := readConfigFile(securePath)
	if err != nil {
		return cfg, err
	}

	format := argus.DetectFormat(securePath)
	if err := parseConfig(content, format, &cfg); err != nil {
		return cfg, NewConfigParseError(securePath, err).WithContext("format", format)
	}

	if err := ProcessConfigWithEnv(&cfg, options); err != nil {
		return cfg, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// secureConfigPath cleans path and checks that it names a readable
// regular file of reasonable size.
func secureConfigPath(path string) (string, error) {
	if path == "" {
		return "", NewConfigValidationError("empty configuration path", nil)
	}
	if strings.Contains(path, "\x00") {
		return "", NewConfigValidationError("null byte in configuration path", nil)
	}
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", NewConfigValidationError("configuration path cannot be resolved", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", NewConfigNotFoundError(absPath)
		}
		return "", NewConfigParseError(absPath, err)
	}
	if !info.Mode().IsRegular() {
		return "", NewConfigValidationError("configuration path is not a regular file", nil).
			WithContext("path", absPath)
	}
	if info.Size() > maxConfigSize {
		return "", NewConfigValidationError("configuration file too large", nil).
			WithContext("path", absPath).
			WithContext("size", info.Size())
	}
	return absPath, nil
}

func readConfigFile(path string) ([]byte, error) {
	content, err := os.ReadFile(path) // #nosec G304 -- path checked by secureConfigPath
	if err != nil {
		return nil, NewConfigParseError(path, err)
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return nil, NewConfigParseError(path, NewConfigValidationError("configuration file is empty", nil))
	}
	return content, nil
}

// parseConfig decodes YAML with yaml.v3 and every other format through
// argus, binding the resulting map by way of JSON.
func parseConfig(content []byte, format argus.ConfigFormat, cfg *Config) error {
	switch format {
	case argus.FormatYAML:
		return yaml.Unmarshal(content, cfg)
	case argus.FormatUnknown:
		return NewConfigValidationError("unsupported configuration format", nil)
	default:
		configMap, err := argus.ParseConfig(content, format)
		if err != nil {
			return err
		}
		return bindConfig(configMap, cfg)
	}
}

func bindConfig(configMap map[string]interface{}, cfg *Config) error {
	if configMap == nil {
		return NewConfigValidationError("configuration map is nil", nil)
	}
	jsonBytes, err := json.Marshal(configMap)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonBytes, cfg)
}
