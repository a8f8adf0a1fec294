package config

import (
	"strings"
	"testing"
)

// validBase returns a config that passes validation, for mutation tests.
func validBase() Config {
	var cfg Config
	cfg.SetDefaults()
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validBase()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults error = %v", err)
	}
}

func TestValidate_FieldErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad listen address",
			mutate:  func(c *Config) { c.Server.HTTPAddr = "not a hostport" },
			wantErr: "host:port",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Server.LogLevel = "verbose" },
			wantErr: "must be one of",
		},
		{
			name:    "relative sse path",
			mutate:  func(c *Config) { c.Server.SSEPath = "sse" },
			wantErr: "rooted path",
		},
		{
			name:    "post path with query string",
			mutate:  func(c *Config) { c.Server.PostPath = "/message?x=1" },
			wantErr: "rooted path",
		},
		{
			name:    "unknown transport mode",
			mutate:  func(c *Config) { c.Transport.Mode = "carrier-pigeon" },
			wantErr: "must be one of",
		},
		{
			name:    "unknown sse variant",
			mutate:  func(c *Config) { c.Transport.SSEVariant = "buffered" },
			wantErr: "must be one of",
		},
		{
			name:    "unknown auth store",
			mutate:  func(c *Config) { c.Auth.Store = "postgres" },
			wantErr: "must be one of",
		},
		{
			name:    "colliding endpoint paths",
			mutate:  func(c *Config) { c.Server.PostPath = c.Server.SSEPath },
			wantErr: "must differ",
		},
		{
			name: "memory store without clients file",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
				c.Auth.Store = "memory"
			},
			wantErr: "clients_file is required",
		},
		{
			name: "sqlite store without path",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
				c.Auth.Store = "sqlite"
			},
			wantErr: "sqlite_path is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBase()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_AuthDisabledSkipsStoreChecks(t *testing.T) {
	cfg := validBase()
	cfg.Auth.Enabled = false
	cfg.Auth.Store = "sqlite"

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil when auth is disabled", err)
	}
}

func TestValidateEndpointPath(t *testing.T) {
	tests := []struct {
		path string
		ok   bool
	}{
		{"/sse", true},
		{"/nested/stream", true},
		{"sse", false},
		{"/sse?x=1", false},
		{"/sse#frag", false},
		{"", false},
	}

	for _, tt := range tests {
		cfg := validBase()
		cfg.Server.SSEPath = tt.path
		if tt.path == "" {
			// Empty means "use default", validated as omitempty.
			continue
		}
		err := cfg.Validate()
		if tt.ok && err != nil {
			t.Errorf("path %q: Validate() error = %v, want nil", tt.path, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("path %q: Validate() succeeded, want error", tt.path)
		}
	}
}
