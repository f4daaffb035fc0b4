package pagination

import (
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"parallel", func(c *Config) { c.MaxWorkers = 8 }, false},
		{"zero workers", func(c *Config) { c.MaxWorkers = 0 }, true},
		{"negative page timeout", func(c *Config) { c.PageTimeout = -time.Second }, true},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }, true},
		{"zero poll timeout", func(c *Config) { c.PollTimeout = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	if cfg.MaxWorkers != 1 {
		t.Errorf("MaxWorkers = %d, want 1", cfg.MaxWorkers)
	}
	if cfg.PollInterval != 200*time.Millisecond {
		t.Errorf("PollInterval = %v, want 200ms", cfg.PollInterval)
	}
	if cfg.PollTimeout != 10*time.Minute {
		t.Errorf("PollTimeout = %v, want 10m", cfg.PollTimeout)
	}
}
