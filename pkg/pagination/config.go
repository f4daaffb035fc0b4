package pagination

import (
	"fmt"
	"time"
)

// Config holds pagination engine configuration.
type Config struct {
	// MaxWorkers is the maximum number of concurrent page fetches in cursor
	// mode. 1 fetches pages sequentially.
	MaxWorkers int

	// PageTimeout bounds each page fetch. Zero leaves the bound to the transport.
	PageTimeout time.Duration

	// AllowPartialResults makes a failing page in parallel cursor mode return
	// the ordered prefix collected so far together with ErrPartialResults
	// instead of failing the whole call.
	AllowPartialResults bool

	// PollInterval is the pause between two polls of a deferred result URL.
	PollInterval time.Duration

	// PollTimeout bounds how long a single deferred result may stay IN_PROGRESS.
	PollTimeout time.Duration
}

// DefaultConfig returns the default pagination configuration.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:   1,
		PollInterval: 200 * time.Millisecond,
		PollTimeout:  10 * time.Minute,
	}
}

// Validate checks the configuration for values no engine can work with.
func (c Config) Validate() error {
	if c.MaxWorkers < 1 {
		return fmt.Errorf("max workers must be >= 1, got %d", c.MaxWorkers)
	}
	if c.PageTimeout < 0 {
		return fmt.Errorf("page timeout must not be negative")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be > 0")
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("poll timeout must be > 0")
	}
	return nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = def.MaxWorkers
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = def.PollTimeout
	}
	return c
}
