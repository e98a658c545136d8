package bridge

import (
	"errors"
	"time"

	"github.com/arloliu/go-autoid/autoid"
	"github.com/arloliu/go-autoid/logger"
	"github.com/arloliu/go-autoid/readerlink"
)

// ErrConfigNil indicates that a nil Config or link Config was provided.
var ErrConfigNil = errors.New("bridge config is nil")

// Config represents the configuration of a Bridge.
type Config struct {
	link       *readerlink.Config
	deviceInfo autoid.DeviceInfo
	now        func() time.Time
	logger     logger.Logger
}

// NewConfig creates a bridge configuration around the reader link configuration linkCfg.
// The logger defaults to the link's logger.
func NewConfig(linkCfg *readerlink.Config, opts ...Option) (*Config, error) {
	if linkCfg == nil {
		return nil, ErrConfigNil
	}

	cfg := &Config{
		link:       linkCfg,
		deviceInfo: autoid.DefaultDeviceInfo(),
		now:        time.Now,
		logger:     linkCfg.Logger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// Option represents a configuration option of a Bridge.
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

// WithDeviceInfo overrides the identity reported by DeviceInfo. Name is required.
func WithDeviceInfo(info autoid.DeviceInfo) Option {
	return newOptFunc(func(cfg *Config) error {
		if info.Name == "" {
			return errors.New("device name is empty")
		}

		cfg.deviceInfo = info

		return nil
	})
}

// WithClock sets the time source of scan event timestamps.
func WithClock(now func() time.Time) Option {
	return newOptFunc(func(cfg *Config) error {
		if now == nil {
			return errors.New("nil clock")
		}

		cfg.now = now

		return nil
	})
}

// WithLogger sets the logger of the bridge.
func WithLogger(l logger.Logger) Option {
	return newOptFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("nil logger")
		}

		cfg.logger = l

		return nil
	})
}
