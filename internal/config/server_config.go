package config

// ServerConfig defines the HTTP gateway settings
type ServerConfig struct {
	// Listen address, e.g. ":8787"
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
	// Read timeout in seconds
	ReadTimeoutSecs int `json:"read_timeout_secs,omitempty" yaml:"read_timeout_secs,omitempty" validate:"omitempty,min=1,max=300"`
	// Write timeout in seconds
	WriteTimeoutSecs int `json:"write_timeout_secs,omitempty" yaml:"write_timeout_secs,omitempty" validate:"omitempty,min=1,max=300"`
	// Graceful shutdown timeout in seconds
	ShutdownTimeoutSecs int `json:"shutdown_timeout_secs,omitempty" yaml:"shutdown_timeout_secs,omitempty" validate:"omitempty,min=1,max=300"`
	// Maximum accepted request body in bytes
	MaxBodyBytes int64 `json:"max_body_bytes,omitempty" yaml:"max_body_bytes,omitempty" validate:"omitempty,min=1024"`
	// CORS allowed origins; development default is permissive
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
}

// NewDefaultServerConfig creates default server configuration
func NewDefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:          ":8787",
		ReadTimeoutSecs:     15,
		WriteTimeoutSecs:    30,
		ShutdownTimeoutSecs: 15,
		MaxBodyBytes:        64 * 1024,
		AllowedOrigins:      []string{"*"},
	}
}
