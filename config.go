package caseAuth

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/caseAuth/redirect"
)

// Config holds every tunable of the [Engine]. Obtain a populated value from
// [DefaultConfig] and override fields; [Builder.Build] validates it.
type Config struct {
	Directory  DirectoryConfig
	Session    SessionConfig
	Redirect   RedirectConfig
	Settings   SettingsConfig
	Permission PermissionConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
DIRECTORY CONFIG
====================================
*/

// DirectoryConfig selects the authentication mode used by [Engine.Login].
type DirectoryConfig struct {
	// Enabled routes logins through the directory verifier. When false only
	// local password hashes are consulted.
	Enabled bool
	// LocalFallback lets a directory rejection be retried against the local
	// hash. Handlers pass it through as [Credentials.AllowLocalFallback].
	LocalFallback bool
}

/*
====================================
SESSION CONFIG
====================================
*/

type SessionConfig struct {
	RedisPrefix string
	TTL         time.Duration
}

/*
====================================
REDIRECT CONFIG
====================================
*/

// RedirectConfig names the fixed landing paths.
type RedirectConfig struct {
	// IndexPath is the fallback target; the current case id is appended as "cid".
	IndexPath string
	// MFAVerifyPath is where a gated user is sent before the session is bound.
	MFAVerifyPath string
}

/*
====================================
SETTINGS CONFIG
====================================
*/

type SettingsConfig struct {
	// CacheTTL bounds how long server settings are served from memory.
	// Zero caches until the provider is invalidated.
	CacheTTL time.Duration
}

/*
====================================
PERMISSION CONFIG
====================================
*/

type PermissionConfig struct {
	// RootPermission, when non-empty, reserves the top bit as a super-permission
	// that implies every other one.
	RootPermission string
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls delivery of audit events to the configured [AuditSink].
type AuditConfig struct {
	Enabled bool
	// Async hands events to a background goroutine. The default emits inline
	// so an event is recorded before the login call returns.
	Async      bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

const (
	defaultSessionTTL    = 24 * time.Hour
	defaultMFAVerifyPath = "/auth/mfa-verify"
)

// DefaultConfig returns the configuration used when [Builder.WithConfig] is not called.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Directory: DirectoryConfig{
			Enabled:       false,
			LocalFallback: false,
		},
		Session: SessionConfig{
			RedisPrefix: "cs",
			TTL:         defaultSessionTTL,
		},
		Redirect: RedirectConfig{
			IndexPath:     redirect.DefaultIndexPath,
			MFAVerifyPath: defaultMFAVerifyPath,
		},
		Settings: SettingsConfig{
			CacheTTL: 0,
		},
		Permission: PermissionConfig{
			RootPermission: "server_administrator",
		},
		Audit: AuditConfig{
			Enabled:    true,
			Async:      false,
			BufferSize: 1024,
			DropIfFull: false,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field, if any.
func (c *Config) Validate() error {
	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if strings.ContainsAny(c.Session.RedisPrefix, " \t\r\n") {
		return errors.New("Session RedisPrefix must not contain whitespace")
	}

	// Redirect
	if !strings.HasPrefix(c.Redirect.IndexPath, "/") || strings.HasPrefix(c.Redirect.IndexPath, "//") {
		return errors.New("Redirect IndexPath must be a local absolute path")
	}
	if !strings.HasPrefix(c.Redirect.MFAVerifyPath, "/") || strings.HasPrefix(c.Redirect.MFAVerifyPath, "//") {
		return errors.New("Redirect MFAVerifyPath must be a local absolute path")
	}

	// Settings
	if c.Settings.CacheTTL < 0 {
		return errors.New("Settings CacheTTL must be >= 0")
	}

	// Directory
	if c.Directory.LocalFallback && !c.Directory.Enabled {
		return errors.New("Directory LocalFallback requires Directory Enabled")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.Async && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Async is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
