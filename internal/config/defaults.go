package config

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultCompilerCommand = "purs"
	DefaultOutput          = "output"
	DefaultBundleOutput    = "output/bundle.js"
	DefaultBundleNamespace = "PS"
	DefaultLoadAttempts    = 9
	DefaultLoadDelay       = 333 * time.Millisecond
	DefaultNotifySubject   = "pursloader.cycles"
)

// DefaultSrc is the project source glob set used when none is configured.
var DefaultSrc = []string{
	filepath.Join("bower_components", "purescript-*", "src", "**", "*.purs"),
	filepath.Join("src", "**", "*.purs"),
}

// Default returns the configuration used when no file overrides a key.
func Default() *Config {
	return &Config{
		Context:  ".",
		Src:      append([]string(nil), DefaultSrc...),
		Output:   DefaultOutput,
		Warnings: true,
		Compiler: CompilerConfig{Command: DefaultCompilerCommand},
		Bundle: BundleConfig{
			Output:    DefaultBundleOutput,
			Namespace: DefaultBundleNamespace,
		},
		IDE: IDEConfig{
			Colors:       ColorAuto,
			LoadAttempts: DefaultLoadAttempts,
			LoadDelay:    DefaultLoadDelay.String(),
			RetryBackoff: RetryBackoffFixed,
		},
		Notify: NotifyConfig{Subject: DefaultNotifySubject},
	}
}

// normalize canonicalizes enum-like fields and fills blanks left by an overlay.
func (c *Config) normalize() {
	c.PackageManager = NormalizePackageManager(string(c.PackageManager))
	c.IDE.Colors = NormalizeColorMode(string(c.IDE.Colors))
	if m := NormalizeRetryBackoff(string(c.IDE.RetryBackoff)); m != "" {
		c.IDE.RetryBackoff = m
	}
	if strings.TrimSpace(c.Compiler.Command) == "" {
		c.Compiler.Command = DefaultCompilerCommand
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	if c.Context == "" {
		c.Context = "."
	}
	if len(c.Src) == 0 {
		c.Src = append([]string(nil), DefaultSrc...)
	}
	if c.Bundle.Output == "" {
		c.Bundle.Output = DefaultBundleOutput
	}
	if c.Bundle.Namespace == "" {
		c.Bundle.Namespace = DefaultBundleNamespace
	}
	if c.IDE.LoadAttempts == 0 {
		c.IDE.LoadAttempts = DefaultLoadAttempts
	}
	if c.IDE.LoadDelay == "" {
		c.IDE.LoadDelay = DefaultLoadDelay.String()
	}
	if c.Notify.Subject == "" {
		c.Notify.Subject = DefaultNotifySubject
	}
}

// LoadDelayDuration parses IDE.LoadDelay, falling back to the default.
func (c *Config) LoadDelayDuration() time.Duration {
	d, err := time.ParseDuration(c.IDE.LoadDelay)
	if err != nil || d <= 0 {
		return DefaultLoadDelay
	}
	return d
}

// KeepaliveDuration parses IDE.KeepaliveInterval; zero means disabled.
func (c *Config) KeepaliveDuration() time.Duration {
	d, err := time.ParseDuration(c.IDE.KeepaliveInterval)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

// UseColors reports whether IDE diagnostics should be colored.
func (c *Config) UseColors() bool {
	switch c.IDE.Colors {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return filepath.Base(c.Compiler.Command) == "psa"
	}
}

// CompilerInvocation returns the program and leading subcommand for the batch
// compiler. The default compiler takes a "compile" subcommand; psa-style
// wrappers do not.
func (c *Config) CompilerInvocation() (string, []string) {
	if c.Compiler.Command == DefaultCompilerCommand {
		return c.Compiler.Command, []string{"compile"}
	}
	return c.Compiler.Command, nil
}

// BundleInvocation returns the program and leading subcommand for the bundler.
func (c *Config) BundleInvocation() (string, []string) {
	if c.Bundle.Command == "" {
		return DefaultCompilerCommand, []string{"bundle"}
	}
	return c.Bundle.Command, nil
}

// IDEServerInvocation returns the program and leading subcommands for the IDE server.
func (c *Config) IDEServerInvocation() (string, []string) {
	if c.IDE.ServerCommand == "" {
		return DefaultCompilerCommand, []string{"ide", "server"}
	}
	return c.IDE.ServerCommand, nil
}

// IDEClientInvocation returns the program and leading subcommands for the IDE client.
func (c *Config) IDEClientInvocation() (string, []string) {
	if c.IDE.ClientCommand == "" {
		return DefaultCompilerCommand, []string{"ide", "client"}
	}
	return c.IDE.ClientCommand, nil
}

// SourceMapsEnabled reports whether the compiler emits source maps, either via
// source_maps or a sourceMaps compiler argument.
func (c *Config) SourceMapsEnabled() bool {
	if c.SourceMaps {
		return true
	}
	v, ok := c.Compiler.Args["sourceMaps"].(bool)
	return ok && v
}
