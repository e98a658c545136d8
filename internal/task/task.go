// Package task manages the goroutines of a reader link or simulator endpoint.
//
// A Manager owns a cancelable context shared by all of its tasks. Stop cancels the context,
// and Wait blocks until every task returned, then re-arms the Manager so it can be reused
// for the next connection.
//
// Example Usage:
//
//	taskMgr := task.NewManager(ctx, logger)
//
//	_ = taskMgr.Start("receiver", func() bool {
//	    // ... read one chunk ...
//	    return true // Return true to continue running, false to stop
//	})
//
//	taskMgr.Stop()
//	taskMgr.Wait()
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-autoid/logger"
)

// ErrStopped is returned when a task is started on a stopped Manager.
var ErrStopped = errors.New("task manager already stopped")

// Func is a task body run in a loop. It returns true to run again or false to stop.
type Func func() bool

// Manager manages the lifecycle of goroutines.
type Manager struct {
	pctx    context.Context
	logger  logger.Logger
	wg      sync.WaitGroup
	count   atomic.Int32
	tickers sync.Map // map[string]*time.Ticker

	mu     sync.Mutex // protects ctx, cancel and wg.Add against Stop
	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a new Manager with ctx as the parent context.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the context of the current task generation.
func (mgr *Manager) Context() context.Context {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	return mgr.ctx
}

// Start runs taskFunc in a loop on a new goroutine until it returns false or the Manager stops.
func (mgr *Manager) Start(name string, taskFunc Func) error {
	ctx, err := mgr.add(name)
	if err != nil {
		return err
	}

	go func() {
		defer mgr.done(name)

		for {
			select {
			case <-ctx.Done():
				return
			default:
				if !mgr.callWithRecover(name, taskFunc) {
					return
				}
			}
		}
	}()

	return nil
}

// Go runs fn once on a new goroutine. fn receives the task context and must return once it is done.
func (mgr *Manager) Go(name string, fn func(ctx context.Context)) error {
	ctx, err := mgr.add(name)
	if err != nil {
		return err
	}

	go func() {
		defer mgr.done(name)

		mgr.callWithRecover(name, func() bool {
			fn(ctx)
			return false
		})
	}()

	return nil
}

// StartInterval runs taskFunc every interval until it returns false or the Manager stops.
// If runNow is true, taskFunc also runs immediately on the new goroutine.
func (mgr *Manager) StartInterval(name string, taskFunc Func, interval time.Duration, runNow bool) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval: %v", interval)
	}

	ticker := time.NewTicker(interval)
	if _, loaded := mgr.tickers.LoadOrStore(name, ticker); loaded {
		ticker.Stop()
		return fmt.Errorf("interval task %s already exists", name)
	}

	cleanup := func() {
		ticker.Stop()
		mgr.tickers.Delete(name)
	}

	ctx, err := mgr.add(name)
	if err != nil {
		cleanup()
		return err
	}

	go func() {
		defer mgr.done(name)
		defer cleanup()

		if runNow && !mgr.callWithRecover(name, taskFunc) {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !mgr.callWithRecover(name, taskFunc) {
					return
				}
			}
		}
	}()

	return nil
}

// Stop signals all running goroutines. Tasks started after Stop fail with ErrStopped until Wait returns.
func (mgr *Manager) Stop() {
	mgr.tickers.Range(func(_, value any) bool {
		if ticker, ok := value.(*time.Ticker); ok {
			ticker.Stop()
		}

		return true
	})

	mgr.mu.Lock()
	mgr.cancel()
	mgr.mu.Unlock()
}

// Wait waits for all goroutines to terminate and re-arms the Manager.
// It must be called after Stop, otherwise it waits for tasks to end on their own.
func (mgr *Manager) Wait() {
	mgr.wg.Wait()

	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if mgr.ctx.Err() != nil && mgr.pctx.Err() == nil {
		mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	}
}

// TaskCount returns the number of currently running goroutines.
func (mgr *Manager) TaskCount() int {
	return int(mgr.count.Load())
}

// add registers a new task unless the Manager is stopped.
func (mgr *Manager) add(name string) (context.Context, error) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if mgr.ctx.Err() != nil {
		return nil, fmt.Errorf("start %s: %w", name, ErrStopped)
	}

	mgr.wg.Add(1)
	mgr.count.Add(1)
	mgr.logger.Debug("task started", "name", name, "task_count", mgr.count.Load())

	return mgr.ctx, nil
}

func (mgr *Manager) done(name string) {
	mgr.count.Add(-1)
	mgr.logger.Debug("task terminated", "name", name, "task_count", mgr.count.Load())
	mgr.wg.Done()
}

// callWithRecover calls fn with panic protection. A panicking task stops.
func (mgr *Manager) callWithRecover(name string, fn Func) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
			ok = false
		}
	}()

	return fn()
}
