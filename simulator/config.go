package simulator

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/go-autoid/logger"
)

// DefaultPort is the TCP port a simulator listens on unless configured otherwise.
const DefaultPort = 5678

// Config represents the configuration parameters of a simulator endpoint.
type Config struct {
	// host is the local address to bind. Defaults to the loopback address 127.0.0.1.
	host string

	// port is the TCP port to listen on. 0 selects an ephemeral port.
	port int

	// writeTimeout bounds a write to a single client. Zero disables the deadline.
	// Defaults to 1 second.
	writeTimeout time.Duration

	// autoReadInterval enables periodic readings when positive.
	autoReadInterval time.Duration
	autoReadData     string
	autoReadRSSI     int

	logger logger.Logger
}

// NewConfig creates a simulator configuration listening on port.
func NewConfig(port int, opts ...Option) (*Config, error) {
	cfg := &Config{
		host:         "127.0.0.1",
		writeTimeout: time.Second,
		logger:       logger.GetLogger(),
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

// Address returns the configured listen address in host:port form.
func (cfg *Config) Address() string {
	return net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port))
}

// Option represents a configuration option of a simulator endpoint.
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

func withPort(port int) Option {
	return newOptFunc(func(cfg *Config) error {
		if port < 0 || port > 65535 {
			return fmt.Errorf("invalid port number: %d", port)
		}

		cfg.port = port

		return nil
	})
}

// WithListenHost sets the local address to bind. An empty host binds all interfaces.
func WithListenHost(host string) Option {
	return newOptFunc(func(cfg *Config) error {
		host = strings.TrimSpace(host)
		if strings.ContainsAny(host, " \t/") {
			return fmt.Errorf("invalid listen host: %q", host)
		}

		cfg.host = host

		return nil
	})
}

// WithWriteTimeout sets the per-client write deadline, between 0 (disabled) and 1 minute.
func WithWriteTimeout(val time.Duration) Option {
	return newOptFunc(func(cfg *Config) error {
		if val < 0 || val > time.Minute {
			return fmt.Errorf("write timeout out of range [0, 1m], got %v", val)
		}

		cfg.writeTimeout = val

		return nil
	})
}

// WithAutoRead makes the endpoint broadcast the reading data/rssi every interval.
// An interval of 0 disables auto-read.
func WithAutoRead(interval time.Duration, data string, rssi int) Option {
	return newOptFunc(func(cfg *Config) error {
		if interval < 0 {
			return fmt.Errorf("auto-read interval must not be negative, got %v", interval)
		}
		if interval > 0 && interval < time.Millisecond {
			return fmt.Errorf("auto-read interval too short: %v", interval)
		}

		cfg.autoReadInterval = interval
		cfg.autoReadData = data
		cfg.autoReadRSSI = rssi

		return nil
	})
}

// WithLogger sets the logger of the endpoint.
func WithLogger(l logger.Logger) Option {
	return newOptFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("nil logger")
		}

		cfg.logger = l

		return nil
	})
}
