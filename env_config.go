// env_config.go: environment variable expansion and overrides for Config
//
// Configuration strings may carry ${VAR} and ${VAR:-default} placeholders.
// A placeholder is resolved from the prefixed variable (GO_XPCOM_VAR), the
// plain variable, configured overrides, the inline default and configured
// defaults, in that order.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// DefaultEnvPrefix prefixes the environment variables read by this package.
const DefaultEnvPrefix = "GO_XPCOM_"

// maxEnvValueLength bounds expanded values.
const maxEnvValueLength = 4096

var variablePattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// EnvConfigOptions configures environment variable processing.
//
// Example usage:
//
//	options := EnvConfigOptions{
//	    Prefix:         "MYAPP_",
//	    FailOnMissing:  true,
//	    ValidateValues: true,
//	}
type EnvConfigOptions struct {
	// Prefix for environment variables (e.g., "GO_XPCOM_", "MYAPP_")
	Prefix string `json:"prefix" yaml:"prefix"`

	// Whether a placeholder without any value is an error
	FailOnMissing bool `json:"fail_on_missing" yaml:"fail_on_missing"`

	// Whether expanded values are checked for null bytes, control characters and length
	ValidateValues bool `json:"validate_values" yaml:"validate_values"`

	// Whether PREFIX_APPLICATION_DIR, PREFIX_AUTO_SEARCH, PREFIX_PROFILE_DIR
	// and PREFIX_LOG_LEVEL override the file values
	AllowOverrides bool `json:"allow_overrides" yaml:"allow_overrides"`

	// Default values for undefined environment variables
	Defaults map[string]string `json:"defaults,omitempty" yaml:"defaults,omitempty"`

	// Values taking precedence over inline defaults
	Overrides map[string]string `json:"overrides,omitempty" yaml:"overrides,omitempty"`
}

// DefaultEnvConfigOptions returns the options used by LoadConfigFromFile.
func DefaultEnvConfigOptions() EnvConfigOptions {
	return EnvConfigOptions{
		Prefix:         DefaultEnvPrefix,
		FailOnMissing:  false,
		ValidateValues: true,
		AllowOverrides: true,
		Defaults:       make(map[string]string),
		Overrides:      make(map[string]string),
	}
}

// ExpandEnvironmentVariables expands ${VAR} and ${VAR:-default}
// placeholders in input. The first failing placeholder aborts the
// expansion.
//
//	dir, err := ExpandEnvironmentVariables("${HOME}/runtimes/${RUNTIME:-xulrunner}", options)
func ExpandEnvironmentVariables(input string, options EnvConfigOptions) (string, error) {
	if input == "" || !strings.Contains(input, "${") {
		return input, nil
	}

	var firstErr error
	result := variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		if firstErr != nil {
			return match
		}
		submatches := variablePattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}
		inlineDefault := ""
		if len(submatches) >= 4 {
			inlineDefault = submatches[3]
		}
		expanded, err := expandSingleEnvironmentVariable(submatches[1], inlineDefault, options)
		if err != nil {
			firstErr = err
			return match
		}
		return expanded
	})
	if firstErr != nil {
		return input, firstErr
	}
	return result, nil
}

func expandSingleEnvironmentVariable(varName, inlineDefault string, options EnvConfigOptions) (string, error) {
	prefixedName := options.Prefix + varName
	if value := os.Getenv(prefixedName); value != "" {
		return validateAndSanitizeValue(varName, value, options)
	}
	if value := os.Getenv(varName); value != "" {
		return validateAndSanitizeValue(varName, value, options)
	}
	if value, exists := options.Overrides[varName]; exists {
		return validateAndSanitizeValue(varName, value, options)
	}
	if inlineDefault != "" {
		return validateAndSanitizeValue(varName, inlineDefault, options)
	}
	if value, exists := options.Defaults[varName]; exists {
		return validateAndSanitizeValue(varName, value, options)
	}

	if options.FailOnMissing {
		return "", NewConfigValidationError(
			fmt.Sprintf("required environment variable not found: %s (also tried %s)", varName, prefixedName), nil).
			WithContext("variable", varName)
	}
	return "", nil
}

func validateAndSanitizeValue(varName, value string, options EnvConfigOptions) (string, error) {
	if !options.ValidateValues {
		return value, nil
	}
	if strings.Contains(value, "\x00") {
		return "", NewConfigValidationError("environment variable value contains null byte", nil).
			WithContext("variable", varName)
	}
	if len(value) > maxEnvValueLength {
		return "", NewConfigValidationError(
			fmt.Sprintf("environment variable value too long: %d bytes (max %d)", len(value), maxEnvValueLength), nil).
			WithContext("variable", varName)
	}
	for i, r := range value {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return "", NewConfigValidationError(
				fmt.Sprintf("environment variable contains control character at position %d", i), nil).
				WithContext("variable", varName)
		}
	}
	return value, nil
}

// ProcessConfigWithEnv expands placeholders in every string field of cfg
// and then applies environment overrides when options allow them.
func ProcessConfigWithEnv(cfg *Config, options EnvConfigOptions) error {
	fields := map[string]*string{
		"application_dir":      &cfg.ApplicationDir,
		"candidate_pattern":    &cfg.CandidatePattern,
		"compatibility.min":    &cfg.Compatibility.Min,
		"compatibility.max":    &cfg.Compatibility.Max,
		"profile.directory":    &cfg.Profile.Directory,
		"profile.app_name":     &cfg.Profile.AppName,
		"profile.root":         &cfg.Profile.Root,
		"log_level":            &cfg.LogLevel,
		"audit.output_file":    &cfg.Audit.OutputFile,
		"audit.flush_interval": &cfg.Audit.FlushInterval,
	}
	for name, field := range fields {
		if err := expandField(name, field, options); err != nil {
			return err
		}
	}

	for i := range cfg.SystemSearchPaths {
		if err := expandField(fmt.Sprintf("system_search_paths[%d]", i), &cfg.SystemSearchPaths[i], options); err != nil {
			return err
		}
	}
	for i := range cfg.Libraries {
		lib := &cfg.Libraries[i]
		if err := expandField(fmt.Sprintf("libraries[%d].name", i), &lib.Name, options); err != nil {
			return err
		}
		for j := range lib.Alternatives {
			if err := expandField(fmt.Sprintf("libraries[%d].alternatives[%d]", i, j), &lib.Alternatives[j], options); err != nil {
				return err
			}
		}
	}

	if options.AllowOverrides {
		return ApplyEnvironmentOverrides(cfg, options.Prefix)
	}
	return nil
}

func expandField(name string, field *string, options EnvConfigOptions) error {
	if *field == "" {
		return nil
	}
	expanded, err := ExpandEnvironmentVariables(*field, options)
	if err != nil {
		return NewConfigValidationError("failed to expand "+name, err).WithContext("field", name)
	}
	*field = expanded
	return nil
}

// ApplyEnvironmentOverrides replaces configuration values with those of
// PREFIX_APPLICATION_DIR, PREFIX_AUTO_SEARCH, PREFIX_PROFILE_DIR and
// PREFIX_LOG_LEVEL when they are set.
func ApplyEnvironmentOverrides(cfg *Config, prefix string) error {
	if value := os.Getenv(prefix + "APPLICATION_DIR"); value != "" {
		cfg.ApplicationDir = value
	}
	if value := os.Getenv(prefix + "AUTO_SEARCH"); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return NewConfigValidationError("invalid "+prefix+"AUTO_SEARCH value", err).
				WithContext("value", value)
		}
		cfg.AutoSearch = enabled
	}
	if value := os.Getenv(prefix + "PROFILE_DIR"); value != "" {
		cfg.Profile.Directory = value
	}
	if value := os.Getenv(prefix + "LOG_LEVEL"); value != "" {
		cfg.LogLevel = strings.ToLower(value)
	}
	return nil
}
