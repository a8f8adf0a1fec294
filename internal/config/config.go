// Package config provides configuration types for Relay Gate.
package config

// Config is the top-level configuration for Relay Gate.
type Config struct {
	// Server configures the HTTP listener hosting the SSE endpoints.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Transport selects and tunes the transport variant.
	Transport TransportConfig `yaml:"transport" mapstructure:"transport"`

	// Auth configures the client credential gate on the message endpoint.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// DevMode enables development features (verbose logging, open auth).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server.
// Relay Gate only speaks plain HTTP; terminate TLS in a reverse proxy or
// pass cert/key files for direct TLS.
type ServerConfig struct {
	// HTTPAddr is the address to listen on (e.g., "127.0.0.1:8080").
	// Defaults to "127.0.0.1:8080" (localhost only) if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// SSEPath is the stream-establishment endpoint path.
	// Defaults to "/sse" if empty.
	SSEPath string `yaml:"sse_path" mapstructure:"sse_path" validate:"omitempty,endpoint_path"`

	// PostPath is the inbound message endpoint path, advertised to peers
	// in the endpoint event. Defaults to "/message" if empty.
	PostPath string `yaml:"post_path" mapstructure:"post_path" validate:"omitempty,endpoint_path"`

	// AllowedOrigins lists origins accepted on browser requests.
	// Empty means local-only: any request carrying an Origin header is
	// rejected.
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info" if empty. DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// CertFile and KeyFile enable direct TLS when both are set.
	CertFile string `yaml:"cert_file" mapstructure:"cert_file"`
	KeyFile  string `yaml:"key_file" mapstructure:"key_file"`
}

// TransportConfig selects the transport variant.
type TransportConfig struct {
	// Mode selects the inbound carrier.
	// Valid values: "sse" (HTTP server) or "stdio" (stdin/stdout).
	// Defaults to "sse".
	Mode string `yaml:"mode" mapstructure:"mode" validate:"omitempty,oneof=sse stdio"`

	// SSEVariant selects the SSE implementation.
	// "direct" writes frames straight to the connection; "stream" queues
	// frames through an internal buffer. Defaults to "direct".
	SSEVariant string `yaml:"sse_variant" mapstructure:"sse_variant" validate:"omitempty,oneof=direct stream"`
}

// AuthConfig configures the client credential gate.
type AuthConfig struct {
	// Enabled turns the credential gate on the message endpoint on or off.
	// Default: false (open endpoint, suitable for localhost-only use).
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Store selects where registered clients live.
	// Valid values: "memory" (seeded from ClientsFile) or "sqlite".
	// Defaults to "memory".
	Store string `yaml:"store" mapstructure:"store" validate:"omitempty,oneof=memory sqlite"`

	// ClientsFile is the YAML seed file of registered clients for the
	// memory store. Secrets may be plaintext or Argon2id PHC hashes
	// (generate with the hash-secret command).
	ClientsFile string `yaml:"clients_file" mapstructure:"clients_file"`

	// SQLitePath is the database file path for the sqlite store.
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// SetDevDefaults applies permissive defaults for development mode.
// These are applied BEFORE validation so required fields are satisfied.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}

	c.Server.LogLevel = "debug"
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	// Server defaults. Bind to localhost only; users who need network
	// access must explicitly set http_addr.
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.SSEPath == "" {
		c.Server.SSEPath = "/sse"
	}
	if c.Server.PostPath == "" {
		c.Server.PostPath = "/message"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	if c.Transport.Mode == "" {
		c.Transport.Mode = "sse"
	}
	if c.Transport.SSEVariant == "" {
		c.Transport.SSEVariant = "direct"
	}

	if c.Auth.Store == "" {
		c.Auth.Store = "memory"
	}
}
