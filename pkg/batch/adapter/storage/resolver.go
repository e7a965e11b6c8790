package storage

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	coreConfig "github.com/tigerroll/comical/pkg/batch/core/config"
)

// ConnectionResolver resolves named storage connections to the provider that
// can serve them, based on the `storage` section of the application configuration.
type ConnectionResolver struct {
	providers map[string]StorageProvider
	cfg       *coreConfig.Config
}

// NewConnectionResolver creates a ConnectionResolver over the given providers,
// keyed by their backend type.
func NewConnectionResolver(providers []StorageProvider, cfg *coreConfig.Config) *ConnectionResolver {
	byType := make(map[string]StorageProvider, len(providers))
	for _, p := range providers {
		byType[p.Type()] = p
	}
	return &ConnectionResolver{providers: byType, cfg: cfg}
}

// Resolve returns the storage connection with the given logical name.
// The connection's backend type is read from its configuration entry.
func (r *ConnectionResolver) Resolve(name string) (StorageConnection, error) {
	namedConfig, ok := r.cfg.Comical.StorageConfigs[name]
	if !ok {
		return nil, fmt.Errorf("storage connection '%s' not found in configuration", name)
	}

	var tempCfg struct {
		Type string `yaml:"type"`
	}
	decoderConfig := &mapstructure.DecoderConfig{
		Result:  &tempCfg,
		TagName: "yaml",
	}
	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder for storage config '%s': %w", name, err)
	}
	if err := decoder.Decode(namedConfig); err != nil {
		return nil, fmt.Errorf("failed to decode storage type for '%s': %w", name, err)
	}

	provider, ok := r.providers[tempCfg.Type]
	if !ok {
		return nil, fmt.Errorf("no storage provider found for type '%s' (connection '%s')", tempCfg.Type, name)
	}

	conn, err := provider.GetConnection(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get storage connection '%s' from provider '%s': %w", name, tempCfg.Type, err)
	}
	return conn, nil
}

// CloseAll closes every connection of every registered provider.
func (r *ConnectionResolver) CloseAll() error {
	var firstErr error
	for _, p := range r.providers {
		if err := p.CloseAll(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DecodeStorageConfig decodes a named storage configuration entry into a
// typed StorageConfig, recognizing yaml tags. Shared by the provider implementations.
func DecodeStorageConfig(cfg *coreConfig.Config, name string, out interface{}) error {
	namedConfig, ok := cfg.Comical.StorageConfigs[name]
	if !ok {
		return fmt.Errorf("storage configuration for name '%s' not found", name)
	}

	decoderConfig := &mapstructure.DecoderConfig{
		Metadata: nil,
		Result:   out,
		TagName:  "yaml",
	}
	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return fmt.Errorf("failed to create decoder for storage config '%s': %w", name, err)
	}
	if err := decoder.Decode(namedConfig); err != nil {
		return fmt.Errorf("failed to decode storage config for '%s': %w", name, err)
	}
	return nil
}
