package readerlink

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-autoid/logger"
)

// LinkState represents the stages of a reader link.
type LinkState uint32

// Reader link states.
const (
	// DisconnectedState indicates that no TCP connection exists; a reconnect may be pending.
	DisconnectedState LinkState = iota
	// ConnectingState indicates that a dial to the reader is in progress.
	ConnectingState
	// ConnectedState indicates that the TCP connection is established and frames are being received.
	ConnectedState
	// StoppedState indicates that the link was closed. It is terminal.
	StoppedState
)

// IsConnected returns if the state is connected.
func (s LinkState) IsConnected() bool { return s == ConnectedState }

// IsStopped returns if the state is stopped.
func (s LinkState) IsStopped() bool { return s == StoppedState }

// String returns string representation of the state.
func (s LinkState) String() string {
	switch s {
	case DisconnectedState:
		return "disconnected"
	case ConnectingState:
		return "connecting"
	case ConnectedState:
		return "connected"
	case StoppedState:
		return "stopped"
	default:
		return "unknown"
	}
}

// canTransit reports whether the transition from s to next is allowed.
func (s LinkState) canTransit(next LinkState) bool {
	switch next {
	case ConnectingState:
		return s == DisconnectedState
	case ConnectedState:
		return s == ConnectingState
	case DisconnectedState:
		return s == ConnectingState || s == ConnectedState
	case StoppedState:
		return true
	default:
		return false
	}
}

// StateChangeHandler is invoked when the state of a link changes.
//
// Note: the handler is invoked in a blocking mode while the transition is in progress.
// It must not request a synchronous transition itself.
type StateChangeHandler func(prevState LinkState, newState LinkState)

// stateMgr serializes the state transitions of one link.
//
// Asynchronous transitions are processed one at a time by a background goroutine, which is the
// only goroutine that runs the connect, receive-start and reconnect logic of the link.
type stateMgr struct {
	mu       sync.Mutex
	cond     *sync.Cond
	ctx      context.Context
	state    atomic.Uint32
	logger   logger.Logger
	async    chan LinkState
	handlers []StateChangeHandler
}

func newStateMgr(ctx context.Context, l logger.Logger, handlers ...StateChangeHandler) *stateMgr {
	sm := &stateMgr{
		ctx:      ctx,
		logger:   l,
		async:    make(chan LinkState, 8),
		handlers: handlers,
	}
	sm.cond = sync.NewCond(&sm.mu)
	sm.state.Store(uint32(DisconnectedState))

	go sm.asyncStateChangeTask()

	return sm
}

// State returns the current link state.
func (sm *stateMgr) State() LinkState {
	return LinkState(sm.state.Load())
}

// AddHandler adds handlers invoked after the built-in link handler.
func (sm *stateMgr) AddHandler(handlers ...StateChangeHandler) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.handlers = append(sm.handlers, handlers...)
}

// WaitState waits for the link to reach state or until ctx is done.
func (sm *stateMgr) WaitState(ctx context.Context, state LinkState) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.State() == state {
		return nil
	}

	stop := context.AfterFunc(ctx, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		sm.cond.Broadcast()
	})
	defer stop()

	for sm.State() != state {
		if err := ctx.Err(); err != nil {
			return err
		}
		sm.cond.Wait()
	}

	return nil
}

// transit moves to next synchronously and invokes the handlers.
// A transition to the current state is a no-op.
func (sm *stateMgr) transit(next LinkState) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	prev := sm.State()
	if prev == next {
		return nil
	}

	if !prev.canTransit(next) {
		return ErrInvalidTransition
	}

	// state changes BEFORE handlers run, so handlers and observers agree on the current state
	sm.state.Store(uint32(next))
	sm.cond.Broadcast()

	for _, handler := range sm.handlers {
		if handler != nil {
			handler(prev, next)
		}
	}

	return nil
}

// transitAsync requests a transition on the background goroutine.
// Requests made after the manager's context ended are dropped.
func (sm *stateMgr) transitAsync(next LinkState) {
	if sm.State() == next {
		return
	}

	select {
	case <-sm.ctx.Done():
	case sm.async <- next:
	}
}

func (sm *stateMgr) asyncStateChangeTask() {
	defer sm.logger.Debug("link state task terminated")

	for {
		select {
		case <-sm.ctx.Done():
			return

		case next := <-sm.async:
			prev := sm.State()
			err := sm.transit(next)
			if err != nil {
				level := sm.logger.Debug
				if !errors.Is(err, ErrInvalidTransition) {
					level = sm.logger.Error
				}
				level("async link state change skipped",
					"method", "asyncStateChangeTask",
					"prevState", prev, "desiredState", next, "error", err,
				)
			}
		}
	}
}
