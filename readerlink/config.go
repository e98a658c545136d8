package readerlink

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arloliu/go-autoid/logger"
)

// Config represents the configuration parameters of a reader link.
type Config struct {
	// host specifies the host of the reader.
	host string

	// port specifies the TCP port of the reader.
	port int

	// connectTimeout bounds a single dial attempt. It should be between 1 millisecond and 30 seconds.
	// Defaults to 3 seconds.
	connectTimeout time.Duration

	// closeTimeout bounds how long Close waits for the receiver to terminate.
	// Defaults to 3 seconds.
	closeTimeout time.Duration

	// keepAlive is the TCP keep-alive period of the dialed connection.
	// Defaults to 30 seconds.
	keepAlive time.Duration

	// readBufferSize is the size of the chunk read from the socket at a time.
	// Defaults to 4096 bytes.
	readBufferSize int

	// retryPolicy decides the delay before each reconnect attempt.
	// Defaults to FixedDelay(DefaultReconnectDelay).
	retryPolicy RetryPolicy

	logger logger.Logger
}

// NewConfig creates a reader link configuration for the reader at host:port.
//
// Default values are applied first, then the provided options in order.
// The first option that fails validation aborts and its error is returned.
func NewConfig(host string, port int, opts ...Option) (*Config, error) {
	cfg := &Config{
		connectTimeout: 3 * time.Second,
		closeTimeout:   3 * time.Second,
		keepAlive:      30 * time.Second,
		readBufferSize: 4096,
		retryPolicy:    FixedDelay(DefaultReconnectDelay),
		logger:         logger.GetLogger(),
	}

	if err := withHost(host).apply(cfg); err != nil {
		return cfg, err
	}

	if err := withPort(port).apply(cfg); err != nil {
		return cfg, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// Host returns the reader host.
func (cfg *Config) Host() string { return cfg.host }

// Port returns the reader port.
func (cfg *Config) Port() int { return cfg.port }

// ConnectTimeout returns the dial timeout.
func (cfg *Config) ConnectTimeout() time.Duration { return cfg.connectTimeout }

// RetryPolicy returns the reconnect policy.
func (cfg *Config) RetryPolicy() RetryPolicy { return cfg.retryPolicy }

// Logger returns the configured logger.
func (cfg *Config) Logger() logger.Logger { return cfg.logger }

// Option represents a configuration option of a reader link.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error {
	return f(cfg)
}

func newOptFunc(f func(*Config) error) *optFunc {
	of := optFunc(f)
	return &of
}

func withHost(host string) Option {
	return newOptFunc(func(cfg *Config) error {
		host = strings.TrimSpace(host)
		if host == "" {
			return errors.New("empty reader host")
		}
		if strings.ContainsAny(host, " \t/") {
			return fmt.Errorf("invalid reader host: %q", host)
		}

		cfg.host = host

		return nil
	})
}

func withPort(port int) Option {
	return newOptFunc(func(cfg *Config) error {
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid port number: %d", port)
		}

		cfg.port = port

		return nil
	})
}

// WithConnectTimeout sets the timeout of a single dial attempt, between 1 millisecond and 30 seconds.
func WithConnectTimeout(val time.Duration) Option {
	return newOptFunc(func(cfg *Config) error {
		if val < time.Millisecond || val > 30*time.Second {
			return fmt.Errorf("connect timeout out of range [1ms, 30s], got %v", val)
		}

		cfg.connectTimeout = val

		return nil
	})
}

// WithCloseTimeout sets how long Close waits for the receiver to terminate, between 1 millisecond and 30 seconds.
func WithCloseTimeout(val time.Duration) Option {
	return newOptFunc(func(cfg *Config) error {
		if val < time.Millisecond || val > 30*time.Second {
			return fmt.Errorf("close timeout out of range [1ms, 30s], got %v", val)
		}

		cfg.closeTimeout = val

		return nil
	})
}

// WithKeepAlive sets the TCP keep-alive period. A negative value disables keep-alive.
func WithKeepAlive(val time.Duration) Option {
	return newOptFunc(func(cfg *Config) error {
		cfg.keepAlive = val
		return nil
	})
}

// WithReadBufferSize sets the size of the chunk read from the socket at a time, between 16 bytes and 1 MiB.
func WithReadBufferSize(size int) Option {
	return newOptFunc(func(cfg *Config) error {
		if size < 16 || size > 1<<20 {
			return fmt.Errorf("read buffer size out of range [16, 1048576], got %d", size)
		}

		cfg.readBufferSize = size

		return nil
	})
}

// WithRetryPolicy sets the reconnect policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return newOptFunc(func(cfg *Config) error {
		if policy == nil {
			return errors.New("nil retry policy")
		}

		cfg.retryPolicy = policy

		return nil
	})
}

// WithReconnectDelay sets a fixed reconnect delay. It is a shortcut of WithRetryPolicy(FixedDelay(val)).
func WithReconnectDelay(val time.Duration) Option {
	return newOptFunc(func(cfg *Config) error {
		if val <= 0 {
			return fmt.Errorf("reconnect delay must be positive, got %v", val)
		}

		cfg.retryPolicy = FixedDelay(val)

		return nil
	})
}

// WithLogger sets the logger of the link.
func WithLogger(l logger.Logger) Option {
	return newOptFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("nil logger")
		}

		cfg.logger = l

		return nil
	})
}
