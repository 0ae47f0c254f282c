package config

// StorageConfig defines settings for the per-pair state stores
type StorageConfig struct {
	// Directory holding one sqlite database per URL pair
	RootPath string `json:"root_path,omitempty" yaml:"root_path,omitempty"`
	// Number of comparisons retained per pair (ring buffer)
	RingSize int `json:"ring_size,omitempty" yaml:"ring_size,omitempty" validate:"omitempty,min=1,max=1000"`
	// Minutes after which a running comparison is rewritten to failed
	StaleAfterMins int `json:"stale_after_mins,omitempty" yaml:"stale_after_mins,omitempty" validate:"omitempty,min=1,max=1440"`
	// Number of completed comparisons summarized for the explainer
	HistoryLimit int `json:"history_limit,omitempty" yaml:"history_limit,omitempty" validate:"omitempty,min=1,max=100"`
}

// NewDefaultStorageConfig creates default storage configuration
func NewDefaultStorageConfig() StorageConfig {
	return StorageConfig{
		RootPath:       "data/pairs",
		RingSize:       50,
		StaleAfterMins: 5,
		HistoryLimit:   10,
	}
}
