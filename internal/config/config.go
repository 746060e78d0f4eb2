// Package config loads crossrepo settings from file, environment and
// defaults, and validates CLI input.
package config

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/spf13/viper"

	"github.com/bnema/crossrepo/internal/domain"
)

// Config holds the run options. Positional arguments (profiles, regions)
// stay on the CLI; everything else can also come from crossrepo.yml or
// CROSSREPO_* environment variables.
type Config struct {
	Days        int    `mapstructure:"days"`
	IgnoreTags  bool   `mapstructure:"ignore_tags"`
	RequireScan bool   `mapstructure:"require_scan"`
	Concurrency int64  `mapstructure:"concurrency"`
	ScanOnPush  bool   `mapstructure:"scan_on_push"`
	LogLevel    string `mapstructure:"log_level"`
}

// Load reads the optional config file and the environment on top of the
// defaults. A missing config file is fine; an unreadable one is not.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("days", 30)
	v.SetDefault("ignore_tags", false)
	v.SetDefault("require_scan", false)
	v.SetDefault("concurrency", 0)
	v.SetDefault("scan_on_push", true)
	v.SetDefault("log_level", "info")

	v.SetConfigName("crossrepo")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/crossrepo")

	v.SetEnvPrefix("CROSSREPO")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInputFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInputFile, err)
	}
	return &cfg, nil
}

var (
	profilePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)
	regionPattern  = regexp.MustCompile(`^[a-z0-9-]+$`)
)

// ValidateProfile checks an AWS profile name as passed on the CLI.
func ValidateProfile(name string) error {
	if !profilePattern.MatchString(name) {
		return fmt.Errorf("%w: invalid profile name: %s", domain.ErrInvalidArgument, name)
	}
	return nil
}

// ValidateRegion checks an AWS region name as passed on the CLI.
func ValidateRegion(name string) error {
	if !regionPattern.MatchString(name) {
		return fmt.Errorf("%w: invalid region name: %s", domain.ErrInvalidArgument, name)
	}
	return nil
}
