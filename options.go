package phiaudit

import (
	"fmt"
	"strings"
	"time"

	"github.com/hengadev/phiaudit/internal/monitoring"
	"github.com/hengadev/phiaudit/internal/reliability"
)

// Option represents a configuration option for creating the subsystem.
type Option func(*Config) error

// WithEnvironment sets the deployment environment.
func WithEnvironment(env Environment) Option {
	return func(c *Config) error {
		c.Environment = env
		return nil
	}
}

// WithSecretSource sets the source of the active epoch's salt material.
func WithSecretSource(source SecretSource) Option {
	return func(c *Config) error {
		if source == nil {
			return fmt.Errorf("%w: secret source cannot be nil", ErrInvalidConfiguration)
		}
		c.SecretSource = source
		return nil
	}
}

// WithDatabasePath sets the full path to the SQLite database file.
func WithDatabasePath(path string) Option {
	return func(c *Config) error {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("%w: database path cannot be empty or whitespace only", ErrInvalidConfiguration)
		}
		c.DBPath = strings.TrimSpace(path)
		return nil
	}
}

// WithArgon2Params sets the hashing work factor.
func WithArgon2Params(params Argon2Params) Option {
	return func(c *Config) error {
		if err := params.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
		c.Argon2Params = params
		return nil
	}
}

// WithRetentionPolicy sets the retention policy.
func WithRetentionPolicy(policy RetentionPolicy) Option {
	return func(c *Config) error {
		if policy.Threshold <= 0 {
			return fmt.Errorf("%w: retention threshold must be positive", ErrInvalidConfiguration)
		}
		c.Retention = policy
		return nil
	}
}

// WithRotationPolicy sets the advisory rotation cadence.
func WithRotationPolicy(policy RotationPolicy) Option {
	return func(c *Config) error {
		c.Rotation = policy
		return nil
	}
}

// WithHashWorkers bounds the hashing worker pool.
func WithHashWorkers(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return fmt.Errorf("%w: hash workers must be positive, got %d", ErrInvalidConfiguration, n)
		}
		c.HashWorkers = n
		return nil
	}
}

// WithArchiveStore sets the cold-storage destination for expired records.
func WithArchiveStore(store ArchiveStore) Option {
	return func(c *Config) error {
		if store == nil {
			return fmt.Errorf("%w: archive store cannot be nil", ErrInvalidConfiguration)
		}
		c.Archive = store
		return nil
	}
}

// WithAssignmentResolver sets the provider-to-patient panel resolver used
// by the access gateway.
func WithAssignmentResolver(resolver AssignmentResolver) Option {
	return func(c *Config) error {
		c.Assignments = resolver
		return nil
	}
}

// WithRetryConfig sets the storage retry budget for audit appends.
func WithRetryConfig(config reliability.RetryConfig) Option {
	return func(c *Config) error {
		c.Retry = config
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger monitoring.Logger) Option {
	return func(c *Config) error {
		if logger == nil {
			return fmt.Errorf("%w: logger cannot be nil", ErrInvalidConfiguration)
		}
		c.Logger = logger
		return nil
	}
}

// WithObservabilityHook sets the operation hook.
func WithObservabilityHook(hook monitoring.ObservabilityHook) Option {
	return func(c *Config) error {
		c.Hook = hook
		return nil
	}
}

// WithMetricsCollector sets the metrics sink.
func WithMetricsCollector(metrics monitoring.MetricsCollector) Option {
	return func(c *Config) error {
		c.Metrics = metrics
		return nil
	}
}

// WithClock injects a time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Config) error {
		if clock == nil {
			return fmt.Errorf("%w: clock cannot be nil", ErrInvalidConfiguration)
		}
		c.Clock = clock
		return nil
	}
}
