package datastore

import (
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aleister1102/envdrift/internal/config"
)

// Manager hands out one PairStore per pair fingerprint, opening each
// database lazily and caching the handle for the process lifetime.
type Manager struct {
	config config.StorageConfig
	logger zerolog.Logger

	mu     sync.Mutex
	stores map[string]*PairStore
}

// NewManager creates a store manager rooted at the configured path.
func NewManager(cfg config.StorageConfig, logger zerolog.Logger) *Manager {
	return &Manager{
		config: cfg,
		logger: logger.With().Str("component", "StoreManager").Logger(),
		stores: make(map[string]*PairStore),
	}
}

// StoreFor returns the store for a pair key, opening its database on
// first use.
func (m *Manager) StoreFor(pairKey string) (*PairStore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if store, ok := m.stores[pairKey]; ok {
		return store, nil
	}

	path := filepath.Join(m.config.RootPath, pairKey+".sqlite")
	store, err := NewPairStore(path, m.config, m.logger)
	if err != nil {
		return nil, err
	}

	m.stores[pairKey] = store
	m.logger.Debug().Str("pair_key", pairKey).Msg("Opened pair store")
	return store, nil
}

// Close closes every open store. Used during shutdown.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for key, store := range m.stores {
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.stores, key)
	}
	return firstErr
}
