package natsclient

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ItamarWilf/PipeRT/errors"
	"github.com/ItamarWilf/PipeRT/pkg/retry"
)

// settings are the tunables of one Client.
type settings struct {
	logger        *slog.Logger
	name          string
	onHealth      func(healthy bool)
	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration
	threshold     int32
	maxBackoff    time.Duration
	retry         retry.Config
}

func defaultSettings() settings {
	return settings{
		logger:        slog.Default(),
		maxReconnects: -1,
		reconnectWait: 2 * time.Second,
		pingInterval:  30 * time.Second,
		timeout:       5 * time.Second,
		drainTimeout:  5 * time.Second,
		threshold:     5,
		maxBackoff:    time.Minute,
		retry:         errors.DefaultRetryConfig().ToRetryConfig(),
	}
}

// Option configures a Client. Options reject values that cannot work.
type Option func(*settings) error

func positive(option string, d time.Duration) error {
	if d <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "natsclient", option,
			fmt.Sprintf("duration must be positive, got %v", d))
	}
	return nil
}

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// WithName sets the connection name the server reports for this client.
func WithName(name string) Option {
	return func(s *settings) error {
		s.name = name
		return nil
	}
}

// WithHealthChangeCallback is called whenever the connection is established,
// lost or restored. It runs on its own goroutine for server-side events.
func WithHealthChangeCallback(fn func(healthy bool)) Option {
	return func(s *settings) error {
		s.onHealth = fn
		return nil
	}
}

// WithMaxReconnects bounds automatic reconnects. -1 reconnects forever.
func WithMaxReconnects(n int) Option {
	return func(s *settings) error {
		if n < -1 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "natsclient", "WithMaxReconnects",
				fmt.Sprintf("must be -1 or more, got %d", n))
		}
		s.maxReconnects = n
		return nil
	}
}

// WithReconnectWait sets the pause between reconnect attempts.
func WithReconnectWait(d time.Duration) Option {
	return func(s *settings) error {
		s.reconnectWait = d
		return positive("WithReconnectWait", d)
	}
}

// WithPingInterval sets how often the server is pinged.
func WithPingInterval(d time.Duration) Option {
	return func(s *settings) error {
		s.pingInterval = d
		return positive("WithPingInterval", d)
	}
}

// WithTimeout sets the dial timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) error {
		s.timeout = d
		return positive("WithTimeout", d)
	}
}

// WithDrainTimeout bounds the drain performed by Close.
func WithDrainTimeout(d time.Duration) Option {
	return func(s *settings) error {
		s.drainTimeout = d
		return positive("WithDrainTimeout", d)
	}
}

// WithCircuitBreaker sets how many consecutive failures trip the breaker and
// the longest wait before it half-opens.
func WithCircuitBreaker(threshold int32, maxBackoff time.Duration) Option {
	return func(s *settings) error {
		if threshold < 1 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "natsclient", "WithCircuitBreaker",
				fmt.Sprintf("threshold must be at least 1, got %d", threshold))
		}
		if maxBackoff < initialBreakerWait {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "natsclient", "WithCircuitBreaker",
				fmt.Sprintf("max backoff must be at least %v, got %v", initialBreakerWait, maxBackoff))
		}
		s.threshold = threshold
		s.maxBackoff = maxBackoff
		return nil
	}
}

// WithRetry sets the backoff Connect uses between attempts.
func WithRetry(cfg retry.Config) Option {
	return func(s *settings) error {
		s.retry = cfg
		return nil
	}
}

// Config tunes every client a Dialer creates. Zero fields keep the defaults,
// so MaxReconnects cannot disable reconnects from here.
type Config struct {
	MaxReconnects    int
	ReconnectWait    time.Duration
	PingInterval     time.Duration
	Timeout          time.Duration
	DrainTimeout     time.Duration
	CircuitThreshold int32
	MaxBackoff       time.Duration
	ConnectAttempts  int
}

// Options turns the non-zero fields into client options.
func (c Config) Options() []Option {
	var opts []Option
	if c.MaxReconnects != 0 {
		opts = append(opts, WithMaxReconnects(c.MaxReconnects))
	}
	if c.ReconnectWait != 0 {
		opts = append(opts, WithReconnectWait(c.ReconnectWait))
	}
	if c.PingInterval != 0 {
		opts = append(opts, WithPingInterval(c.PingInterval))
	}
	if c.Timeout != 0 {
		opts = append(opts, WithTimeout(c.Timeout))
	}
	if c.DrainTimeout != 0 {
		opts = append(opts, WithDrainTimeout(c.DrainTimeout))
	}
	if c.CircuitThreshold != 0 || c.MaxBackoff != 0 {
		threshold, maxBackoff := c.CircuitThreshold, c.MaxBackoff
		def := defaultSettings()
		if threshold == 0 {
			threshold = def.threshold
		}
		if maxBackoff == 0 {
			maxBackoff = def.maxBackoff
		}
		opts = append(opts, WithCircuitBreaker(threshold, maxBackoff))
	}
	if c.ConnectAttempts != 0 {
		rc := retry.DefaultConfig()
		rc.MaxAttempts = c.ConnectAttempts
		opts = append(opts, WithRetry(rc))
	}
	return opts
}
