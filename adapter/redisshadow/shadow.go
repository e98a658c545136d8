// Package redisshadow keeps a device shadow of the bridged reader in Redis.
//
// Keys, relative to the configured prefix:
//
//	<prefix>:shadow  hash with the device identity, status and last scan
//	<prefix>:scans   list of the most recent scan events as JSON, newest first
package redisshadow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-autoid/autoid"
	"github.com/arloliu/go-autoid/logger"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix is the key prefix used unless WithKeyPrefix is given.
const DefaultPrefix = "autoid:scanner"

// Client is the part of *redis.Client used by the shadow.
type Client interface {
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
}

var _ Client = (*redis.Client)(nil)

// Shadow is an autoid.Adapter writing notifications to Redis.
type Shadow struct {
	client  Client
	prefix  string
	ttl     time.Duration
	history int64
	timeout time.Duration
	now     func() time.Time
	logger  logger.Logger

	ctx context.Context

	// WriteErrCount indicates the number of failed Redis commands.
	WriteErrCount atomic.Uint64
}

var _ autoid.Adapter = (*Shadow)(nil)

// Option configures a Shadow.
type Option func(*Shadow) error

// WithKeyPrefix sets the key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *Shadow) error {
		prefix = strings.TrimSpace(prefix)
		if prefix == "" || strings.ContainsAny(prefix, " \t") {
			return fmt.Errorf("invalid key prefix: %q", prefix)
		}

		s.prefix = prefix

		return nil
	}
}

// WithTTL sets the expiration refreshed on every write. Defaults to 24 hours.
func WithTTL(ttl time.Duration) Option {
	return func(s *Shadow) error {
		if ttl < time.Second {
			return fmt.Errorf("ttl must be at least 1s, got %v", ttl)
		}

		s.ttl = ttl

		return nil
	}
}

// WithHistory sets how many scan events the scans list keeps. Defaults to 100.
func WithHistory(n int) Option {
	return func(s *Shadow) error {
		if n < 1 || n > 100_000 {
			return fmt.Errorf("history out of range [1, 100000], got %d", n)
		}

		s.history = int64(n)

		return nil
	}
}

// WithTimeout bounds each write. Defaults to 2 seconds.
func WithTimeout(d time.Duration) Option {
	return func(s *Shadow) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", d)
		}

		s.timeout = d

		return nil
	}
}

// WithClock sets the time source of the shadow timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Shadow) error {
		if now == nil {
			return errors.New("nil clock")
		}

		s.now = now

		return nil
	}
}

// WithLogger sets the logger of the shadow.
func WithLogger(l logger.Logger) Option {
	return func(s *Shadow) error {
		if l == nil {
			return errors.New("nil logger")
		}

		s.logger = l

		return nil
	}
}

// New creates a shadow writing through client. ctx bounds the lifetime of all writes.
func New(ctx context.Context, client Client, opts ...Option) (*Shadow, error) {
	if client == nil {
		return nil, errors.New("nil redis client")
	}

	s := &Shadow{
		client:  client,
		prefix:  DefaultPrefix,
		ttl:     24 * time.Hour,
		history: 100,
		timeout: 2 * time.Second,
		now:     time.Now,
		logger:  logger.GetLogger(),
		ctx:     ctx,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "redisshadow", "prefix", s.prefix)

	return s, nil
}

// ShadowKey returns the key of the shadow hash.
func (s *Shadow) ShadowKey() string { return s.prefix + ":shadow" }

// ScansKey returns the key of the recent scans list.
func (s *Shadow) ScansKey() string { return s.prefix + ":scans" }

// Sync writes the full shadow: the device identity and the current status of commander.
func (s *Shadow) Sync(commander autoid.Commander) error {
	info := commander.DeviceInfo()
	status := commander.DeviceStatus()

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	err := s.client.HSet(ctx, s.ShadowKey(),
		"name", info.Name,
		"manufacturer", info.Manufacturer,
		"model", info.Model,
		"serial_number", info.SerialNumber,
		"device_revision", info.DeviceRevision,
		"hardware_revision", info.HardwareRevision,
		"software_revision", info.SoftwareRevision,
		"status", status.String(),
		"status_code", int32(status),
		"ts", s.now().Unix(),
	).Err()
	if err != nil {
		s.WriteErrCount.Add(1)
		return fmt.Errorf("sync device shadow: %w", err)
	}

	if err := s.client.Expire(ctx, s.ShadowKey(), s.ttl).Err(); err != nil {
		s.WriteErrCount.Add(1)
		return fmt.Errorf("expire device shadow: %w", err)
	}

	return nil
}

// DeviceStatusChanged updates the status fields of the shadow.
func (s *Shadow) DeviceStatusChanged(status autoid.DeviceStatus) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	s.check("HSET", s.client.HSet(ctx, s.ShadowKey(),
		"status", status.String(),
		"status_code", int32(status),
		"ts", s.now().Unix(),
	))
	s.check("EXPIRE", s.client.Expire(ctx, s.ShadowKey(), s.ttl))
}

// ScanEvent records event as the last scan and prepends it to the scans list.
func (s *Shadow) ScanEvent(event autoid.ScanEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		s.WriteErrCount.Add(1)
		s.logger.Error("failed to marshal scan event", "method", "ScanEvent", "error", err)

		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	s.check("HSET", s.client.HSet(ctx, s.ShadowKey(),
		"last_scan_data", event.Data,
		"last_scan_rssi", event.RSSI,
		"last_scan_seq", event.Sequence,
		"last_scan_ts", event.Timestamp.Unix(),
		"ts", s.now().Unix(),
	))
	s.check("EXPIRE", s.client.Expire(ctx, s.ShadowKey(), s.ttl))
	s.check("LPUSH", s.client.LPush(ctx, s.ScansKey(), data))
	s.check("LTRIM", s.client.LTrim(ctx, s.ScansKey(), 0, s.history-1))
	s.check("EXPIRE", s.client.Expire(ctx, s.ScansKey(), s.ttl))
}

func (s *Shadow) check(op string, cmd redis.Cmder) {
	if err := cmd.Err(); err != nil {
		s.WriteErrCount.Add(1)
		s.logger.Warn("failed to update device shadow", "method", "check", "op", op, "error", err)
	}
}
