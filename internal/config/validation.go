package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate checks the configuration for values the loader cannot act on.
func (c *Config) Validate() error {
	var errs []error

	switch c.PackageManager {
	case PackageManagerNone, PackageManagerSpago, PackageManagerPscPackage:
	default:
		errs = append(errs, fmt.Errorf("unsupported package_manager: %s", c.PackageManager))
	}

	switch c.IDE.Colors {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		errs = append(errs, fmt.Errorf("invalid ide.colors: %s (expected auto, always or never)", c.IDE.Colors))
	}

	if NormalizeRetryBackoff(string(c.IDE.RetryBackoff)) == "" {
		errs = append(errs, fmt.Errorf("invalid ide.retry_backoff: %s", c.IDE.RetryBackoff))
	}
	if c.IDE.LoadAttempts < 1 {
		errs = append(errs, fmt.Errorf("ide.load_attempts must be at least 1, got %d", c.IDE.LoadAttempts))
	}
	if _, err := time.ParseDuration(c.IDE.LoadDelay); err != nil {
		errs = append(errs, fmt.Errorf("invalid ide.load_delay %q: %w", c.IDE.LoadDelay, err))
	}
	if c.IDE.KeepaliveInterval != "" {
		if d, err := time.ParseDuration(c.IDE.KeepaliveInterval); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("invalid ide.keepalive_interval: %q", c.IDE.KeepaliveInterval))
		}
	}

	if c.Output == "" {
		errs = append(errs, errors.New("output directory must not be empty"))
	}
	if c.Bundle.Enabled && c.Bundle.Output == "" {
		errs = append(errs, errors.New("bundle.output must be set when bundling is enabled"))
	}

	return errors.Join(errs...)
}
