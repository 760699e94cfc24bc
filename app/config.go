package main

import "io"

// Configuration and Options

// DatabaseConfig holds database configuration options.
type DatabaseConfig struct {
	MaxConcurrency  int
	ValidationMode  ValidationLevel
	EnableProfiling bool
}

// ValidationLevel defines validation strictness for page invariants.
type ValidationLevel int

const (
	ValidationNone ValidationLevel = iota
	ValidationBasic
	ValidationStrict
)

// DatabaseOption is a functional option for database configuration.
type DatabaseOption func(*DatabaseConfig)

// WithMaxConcurrency bounds the number of cells decoded in parallel per page.
func WithMaxConcurrency(max int) DatabaseOption {
	return func(cfg *DatabaseConfig) {
		cfg.MaxConcurrency = max
	}
}

// WithValidation sets the page-invariant validation level.
func WithValidation(level ValidationLevel) DatabaseOption {
	return func(cfg *DatabaseConfig) {
		cfg.ValidationMode = level
	}
}

// WithProfiling enables or disables lightweight page-visit counting.
func WithProfiling(enabled bool) DatabaseOption {
	return func(cfg *DatabaseConfig) {
		cfg.EnableProfiling = enabled
	}
}

// DefaultDatabaseConfig returns the default configuration.
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		MaxConcurrency:  8,
		ValidationMode:  ValidationBasic,
		EnableProfiling: false,
	}
}

// ResourceManager closes managed resources in reverse acquisition order.
type ResourceManager struct {
	resources []io.Closer
}

// NewResourceManager creates a new resource manager.
func NewResourceManager() *ResourceManager {
	return &ResourceManager{resources: make([]io.Closer, 0, 1)}
}

// Add registers a closeable resource.
func (rm *ResourceManager) Add(resource io.Closer) {
	rm.resources = append(rm.resources, resource)
}

// Close closes all managed resources LIFO, returning the last error seen.
func (rm *ResourceManager) Close() error {
	var lastErr error
	for i := len(rm.resources) - 1; i >= 0; i-- {
		if err := rm.resources[i].Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
