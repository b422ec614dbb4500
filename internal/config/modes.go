package config

import "strings"

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// NormalizeRetryBackoff converts arbitrary user input (case-insensitive) into a typed mode, returning empty string for unknown.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	switch RetryBackoffMode(strings.ToLower(strings.TrimSpace(raw))) {
	case RetryBackoffFixed:
		return RetryBackoffFixed
	case RetryBackoffLinear:
		return RetryBackoffLinear
	case RetryBackoffExponential:
		return RetryBackoffExponential
	default:
		return ""
	}
}

// PackageManager names the tool asked for dependency source globs.
type PackageManager string

const (
	PackageManagerNone       PackageManager = ""
	PackageManagerSpago      PackageManager = "spago"
	PackageManagerPscPackage PackageManager = "psc-package"
)

// NormalizePackageManager returns the typed package manager, or "unknown" kept
// verbatim so validation can report it.
func NormalizePackageManager(raw string) PackageManager {
	switch v := strings.ToLower(strings.TrimSpace(raw)); v {
	case "", "none":
		return PackageManagerNone
	case "spago":
		return PackageManagerSpago
	case "psc-package", "psc_package", "pscpackage":
		return PackageManagerPscPackage
	default:
		return PackageManager(v)
	}
}

// ColorMode selects whether diagnostics are colored.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// NormalizeColorMode maps user input onto a ColorMode; unknown input is kept for validation.
func NormalizeColorMode(raw string) ColorMode {
	switch v := strings.ToLower(strings.TrimSpace(raw)); v {
	case "":
		return ColorAuto
	case "on", "true":
		return ColorAlways
	case "off", "false":
		return ColorNever
	default:
		return ColorMode(v)
	}
}
