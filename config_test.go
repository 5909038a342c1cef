package caseAuth

import (
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Redirect.MFAVerifyPath != "/auth/mfa-verify" {
		t.Fatalf("unexpected MFA path %q", cfg.Redirect.MFAVerifyPath)
	}
	if cfg.Audit.Async {
		t.Fatal("audit must default to inline delivery")
	}
	if cfg.Settings.CacheTTL != 0 {
		t.Fatalf("settings must be cached until invalidated by default, got ttl %v", cfg.Settings.CacheTTL)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "directory with fallback",
			mutate:    func(c *Config) { c.Directory.Enabled = true; c.Directory.LocalFallback = true },
			wantValid: true,
		},
		{
			name:      "fallback without directory",
			mutate:    func(c *Config) { c.Directory.LocalFallback = true },
			wantValid: false,
		},
		{
			name:      "zero session ttl",
			mutate:    func(c *Config) { c.Session.TTL = 0 },
			wantValid: false,
		},
		{
			name:      "blank redis prefix",
			mutate:    func(c *Config) { c.Session.RedisPrefix = "" },
			wantValid: false,
		},
		{
			name:      "prefix with whitespace",
			mutate:    func(c *Config) { c.Session.RedisPrefix = "c s" },
			wantValid: false,
		},
		{
			name:      "external index path",
			mutate:    func(c *Config) { c.Redirect.IndexPath = "https://example.com/" },
			wantValid: false,
		},
		{
			name:      "protocol relative mfa path",
			mutate:    func(c *Config) { c.Redirect.MFAVerifyPath = "//evil/mfa" },
			wantValid: false,
		},
		{
			name:      "negative settings ttl",
			mutate:    func(c *Config) { c.Settings.CacheTTL = -time.Second },
			wantValid: false,
		},
		{
			name:      "settings cached forever",
			mutate:    func(c *Config) { c.Settings.CacheTTL = 0 },
			wantValid: true,
		},
		{
			name:      "async audit without buffer",
			mutate:    func(c *Config) { c.Audit.Async = true; c.Audit.BufferSize = 0 },
			wantValid: false,
		},
		{
			name:      "histograms without metrics",
			mutate:    func(c *Config) { c.Metrics.Enabled = false },
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestBuildRequiresCollaborators(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	if _, err := New().WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected error without user store")
	}

	cfg := DefaultConfig()
	cfg.Directory.Enabled = true
	_, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(&memUserStore{}).
		WithCaseStore(&memCaseStore{}).
		WithSettingsSource(&settingsStub{}).
		WithPermissions([]string{"case_read"}).
		Build()
	if err == nil {
		t.Fatal("expected error when directory mode has no verifier")
	}
}

func TestBuildOnlyOnce(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	b := New().
		WithRedis(rdb).
		WithUserStore(&memUserStore{}).
		WithCaseStore(&memCaseStore{}).
		WithSettingsSource(&settingsStub{}).
		WithPermissions([]string{"case_read"})
	if _, err := b.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}
