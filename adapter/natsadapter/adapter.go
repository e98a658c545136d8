// Package natsadapter publishes device notifications to NATS and serves scan commands over
// NATS request-reply.
//
// Subjects, relative to the configured prefix:
//
//	<prefix>.status      device status changes, autoid.StatusMessage
//	<prefix>.scan        scan events, autoid.ScanEvent
//	<prefix>.cmd.start   request {"auto_stop":bool}, reply autoid.CommandReply
//	<prefix>.cmd.stop    reply autoid.CommandReply
//	<prefix>.cmd.status  reply autoid.StatusMessage
package natsadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-autoid/autoid"
	"github.com/arloliu/go-autoid/logger"
	"github.com/nats-io/nats.go"
)

// DefaultPrefix is the subject prefix used unless WithSubjectPrefix is given.
const DefaultPrefix = "autoid.scanner"

// ErrNotStarted is returned by Close when Start was never called.
var ErrNotStarted = errors.New("nats adapter not started")

// Conn is the part of *nats.Conn used by the adapter.
type Conn interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

var _ Conn = (*nats.Conn)(nil)

// Adapter is an autoid.Adapter backed by NATS.
type Adapter struct {
	conn   Conn
	prefix string
	logger logger.Logger
	now    func() time.Time

	mu        sync.Mutex
	commander autoid.Commander
	subs      []*nats.Subscription

	// PublishErrCount indicates the number of failed publishes.
	PublishErrCount atomic.Uint64
}

var _ autoid.Adapter = (*Adapter)(nil)

// Option configures an Adapter.
type Option func(*Adapter) error

// WithSubjectPrefix sets the subject prefix. It must be a valid subject without wildcards.
func WithSubjectPrefix(prefix string) Option {
	return func(a *Adapter) error {
		prefix = strings.Trim(strings.TrimSpace(prefix), ".")
		if prefix == "" || strings.ContainsAny(prefix, " \t*>") {
			return fmt.Errorf("invalid subject prefix: %q", prefix)
		}

		a.prefix = prefix

		return nil
	}
}

// WithLogger sets the logger of the adapter.
func WithLogger(l logger.Logger) Option {
	return func(a *Adapter) error {
		if l == nil {
			return errors.New("nil logger")
		}

		a.logger = l

		return nil
	}
}

// WithClock sets the time source of status message timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) error {
		if now == nil {
			return errors.New("nil clock")
		}

		a.now = now

		return nil
	}
}

// New creates an adapter publishing on conn.
func New(conn Conn, opts ...Option) (*Adapter, error) {
	if conn == nil {
		return nil, errors.New("nil nats connection")
	}

	a := &Adapter{
		conn:   conn,
		prefix: DefaultPrefix,
		logger: logger.GetLogger(),
		now:    time.Now,
	}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	a.logger = a.logger.With("component", "natsadapter", "prefix", a.prefix)

	return a, nil
}

// Subject returns the full subject for name.
func (a *Adapter) Subject(name string) string {
	return a.prefix + "." + name
}

// Start subscribes the command subjects and serves them with commander.
func (a *Adapter) Start(commander autoid.Commander) error {
	if commander == nil {
		return errors.New("nil commander")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.commander != nil {
		return errors.New("nats adapter already started")
	}

	handlers := map[string]nats.MsgHandler{
		"cmd.start":  a.handleStart,
		"cmd.stop":   a.handleStop,
		"cmd.status": a.handleStatus,
	}

	for name, handler := range handlers {
		sub, err := a.conn.Subscribe(a.Subject(name), handler)
		if err != nil {
			a.unsubscribeLocked()
			return fmt.Errorf("subscribe %s: %w", a.Subject(name), err)
		}
		a.subs = append(a.subs, sub)
	}
	a.commander = commander

	a.logger.Info("nats adapter started", "method", "Start")

	return nil
}

// Close unsubscribes the command subjects.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.commander == nil {
		return ErrNotStarted
	}

	a.unsubscribeLocked()
	a.commander = nil

	return nil
}

// DeviceStatusChanged publishes status to <prefix>.status.
func (a *Adapter) DeviceStatusChanged(status autoid.DeviceStatus) {
	a.publish(a.Subject("status"), autoid.NewStatusMessage(status, a.now()))
}

// ScanEvent publishes event to <prefix>.scan.
func (a *Adapter) ScanEvent(event autoid.ScanEvent) {
	a.publish(a.Subject("scan"), event)
}

type startRequest struct {
	AutoStop bool `json:"auto_stop"`
}

func (a *Adapter) handleStart(msg *nats.Msg) {
	var req startRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			a.logger.Warn("invalid start request", "method", "handleStart", "error", err)
			a.reply(msg, autoid.CommandReply{
				Status:     a.currentCommander().DeviceStatus(),
				Result:     autoid.ResultDeviceNotReady.String(),
				ResultCode: autoid.ResultDeviceNotReady,
				Error:      fmt.Sprintf("invalid request: %v", err),
			})

			return
		}
	}

	a.reply(msg, autoid.StartScanReply(a.currentCommander(), req.AutoStop))
}

func (a *Adapter) handleStop(msg *nats.Msg) {
	a.reply(msg, autoid.StopScanReply(a.currentCommander()))
}

func (a *Adapter) handleStatus(msg *nats.Msg) {
	a.reply(msg, autoid.NewStatusMessage(a.currentCommander().DeviceStatus(), a.now()))
}

func (a *Adapter) currentCommander() autoid.Commander {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.commander == nil {
		return stoppedCommander{}
	}

	return a.commander
}

func (a *Adapter) reply(msg *nats.Msg, v any) {
	if msg.Reply == "" {
		a.logger.Debug("command without reply subject", "method", "reply", "subject", msg.Subject)
		return
	}

	a.publish(msg.Reply, v)
}

func (a *Adapter) publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		a.PublishErrCount.Add(1)
		a.logger.Error("failed to marshal message", "method", "publish", "subject", subject, "error", err)

		return
	}

	if err := a.conn.Publish(subject, data); err != nil {
		a.PublishErrCount.Add(1)
		a.logger.Warn("failed to publish", "method", "publish", "subject", subject, "error", err)
	}
}

func (a *Adapter) unsubscribeLocked() {
	for _, sub := range a.subs {
		if sub == nil {
			continue
		}
		if err := sub.Unsubscribe(); err != nil {
			a.logger.Debug("failed to unsubscribe", "method", "unsubscribe", "subject", sub.Subject, "error", err)
		}
	}
	a.subs = nil
}

// stoppedCommander answers commands that race with Close.
type stoppedCommander struct{}

func (stoppedCommander) StartScan(bool) (autoid.ResultCode, error) {
	return autoid.ResultDeviceNotReady, autoid.ErrLinkDown
}
func (stoppedCommander) StopScan() error                  { return autoid.ErrScanNotRunning }
func (stoppedCommander) DeviceStatus() autoid.DeviceStatus { return autoid.StatusError }
func (stoppedCommander) DeviceInfo() autoid.DeviceInfo     { return autoid.DefaultDeviceInfo() }
