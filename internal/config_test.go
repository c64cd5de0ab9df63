package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
	if g := cfg.Feed.Geometry(); g.ViewportHeight != 552 {
		t.Errorf("viewport = %d, want 552", g.ViewportHeight)
	}
	set, err := cfg.DocStore.IndexSet()
	if err != nil {
		t.Fatal(err)
	}
	if len(set.All()) != 2 {
		t.Errorf("indexes = %d, want 2", len(set.All()))
	}
}

func TestConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.DocStore.Driver = "redis" }},
		{"mongo without uri", func(c *Config) { c.DocStore.Driver = DriverMongo }},
		{"bad collection", func(c *Config) { c.DocStore.Collection = "ideas; drop" }},
		{"single field index", func(c *Config) { c.DocStore.Indexes = [][]string{{"createdAt"}} }},
		{"unknown vote mode", func(c *Config) { c.Voting.Mode = "last-write" }},
		{"zero item height", func(c *Config) { c.Feed.ItemHeight = 0 }},
		{"max page below page size", func(c *Config) { c.Feed.MaxPageSize = 50 }},
		{"bad timezone", func(c *Config) { c.App.Timezone = "Mars/Olympus" }},
		{"geo url scheme", func(c *Config) { c.Geo.PrimaryURL = "ftp://example.com" }},
		{"remote moderation without url", func(c *Config) { c.Moderation.RemoteURL = "" }},
		{"missing local path", func(c *Config) { c.Local.Path = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfig_DisabledRemotesNeedNoURL(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Geo = GeoConfig{Enabled: false}
	cfg.Moderation = ModerationConfig{RemoteEnabled: false}
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled remotes should pass: %v", err)
	}
}
