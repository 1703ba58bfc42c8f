package tenantstore

import "time"

// Configuration constants for tenantstore operations
const (
	// Provider batch ceilings. The production document database rejects
	// write and delete requests carrying more entities than this, so every
	// bulk operation is chunked at this boundary before it leaves the
	// process.
	MaxEntitiesPerWrite  = 500
	MaxEntitiesPerDelete = 500

	// Lookups tolerate larger requests than mutations do.
	MaxKeysPerLookup = 1000

	// Consistency wait configuration (test/administrative paths only)
	DefaultMaxAttempts    = 10
	DefaultInitialBackoff = 100 * time.Millisecond
	DefaultBackoffLimit   = 2 * time.Second
)

// StoreConfig holds configuration for a Store
type StoreConfig struct {
	ProjectID   string
	Multitenant bool
}

// Validate checks if the StoreConfig is valid
func (c StoreConfig) Validate() error {
	if c.ProjectID == "" {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "ProjectID",
			"reason": "project id is required",
		})
	}
	return nil
}

// WaitConfig holds configuration for eventual-consistency wait loops.
// These loops exist because the provider does not guarantee read-after-write
// visibility; production call paths must not depend on them.
type WaitConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	BackoffLimit   time.Duration
}

// DefaultWaitConfig returns the default wait configuration
func DefaultWaitConfig() WaitConfig {
	return WaitConfig{
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
		BackoffLimit:   DefaultBackoffLimit,
	}
}

// Validate checks if the WaitConfig is valid
func (c WaitConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "MaxAttempts",
			"value":  c.MaxAttempts,
			"reason": "must be positive",
		})
	}
	if c.InitialBackoff <= 0 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "InitialBackoff",
			"value":  c.InitialBackoff,
			"reason": "must be positive",
		})
	}
	if c.BackoffLimit < c.InitialBackoff {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "BackoffLimit",
			"value":  c.BackoffLimit,
			"reason": "must be at least InitialBackoff",
		})
	}
	return nil
}
