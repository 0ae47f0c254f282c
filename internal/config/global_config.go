package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/aleister1102/envdrift/internal/common/errorwrapper"
	"github.com/aleister1102/envdrift/internal/logger"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// GlobalConfig contains all configuration sections for the application
type GlobalConfig struct {
	ServerConfig    ServerConfig         `json:"server_config,omitempty" yaml:"server_config,omitempty"`
	ProbeConfig     ProbeConfig          `json:"probe_config,omitempty" yaml:"probe_config,omitempty"`
	StorageConfig   StorageConfig        `json:"storage_config,omitempty" yaml:"storage_config,omitempty"`
	ExplainerConfig ExplainerConfig      `json:"explainer_config,omitempty" yaml:"explainer_config,omitempty"`
	WorkflowConfig  WorkflowConfig       `json:"workflow_config,omitempty" yaml:"workflow_config,omitempty"`
	LogConfig       logger.FileLogConfig `json:"log_config,omitempty" yaml:"log_config,omitempty"`
}

// NewDefaultGlobalConfig creates a new GlobalConfig with default values
func NewDefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		ServerConfig:    NewDefaultServerConfig(),
		ProbeConfig:     NewDefaultProbeConfig(),
		StorageConfig:   NewDefaultStorageConfig(),
		ExplainerConfig: NewDefaultExplainerConfig(),
		WorkflowConfig:  NewDefaultWorkflowConfig(),
		LogConfig:       logger.NewDefaultFileLogConfig(),
	}
}

// LoadGlobalConfig loads the configuration from a file or defaults.
// YAML is preferred when the extension is .yaml or .yml; .json is
// parsed as JSON. An empty path yields the defaults.
func LoadGlobalConfig(path string, log zerolog.Logger) (*GlobalConfig, error) {
	cfg := NewDefaultGlobalConfig()

	if path == "" {
		log.Info().Msg("No config file found, using defaults")
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to read config file "+path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errorwrapper.WrapError(err, "failed to parse JSON config "+path)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errorwrapper.WrapError(err, "failed to parse YAML config "+path)
		}
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, errorwrapper.WrapError(err, "config validation failed")
	}

	log.Info().Str("path", path).Msg("Configuration loaded")
	return cfg, nil
}
