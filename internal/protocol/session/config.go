package session

import "time"

// BackoffConfig defines retry backoff behavior for sink writes and the
// single transport reconnect.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
	MaxAttempts  int
}

// Config defines socket session limits.
type Config struct {
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	ReadLimit    int64
	Backoff      BackoffConfig
}

// DefaultConfig returns the defaults used by stridectl.
func DefaultConfig() Config {
	return Config{
		DialTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		ReadLimit:    64 << 10,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
			MaxAttempts:  3,
		},
	}
}
