package tracker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/inttech/go-gazetrack/logger"
)

// TaskFunc performs one iteration of a task. It returns true to continue, false to stop.
type TaskFunc func() bool

// taskManager runs background tasks and lets their owner stop and join them.
//
// Stopping is cooperative: a task observes the stop signal between iterations, so a
// blocking call inside an iteration finishes before the task exits.
//
//	tasks := newTaskManager(ctx, logger)
//	tasks.Start("gazeReader", func() bool {
//	    // ... one iteration ...
//	    return true
//	})
//	tasks.Stop()
//	tasks.Wait()
type taskManager struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
}

func newTaskManager(ctx context.Context, l logger.Logger) *taskManager {
	mgr := &taskManager{logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Start runs taskFunc in a new goroutine until it returns false or the manager is stopped.
func (mgr *taskManager) Start(name string, taskFunc TaskFunc) {
	mgr.logger.Debug("start task", "name", name)

	mgr.wg.Add(1)
	mgr.count.Add(1)
	go func() {
		defer func() {
			mgr.count.Add(-1)
			mgr.wg.Done()
			mgr.logger.Debug("task terminated", "name", name)
		}()

		for {
			select {
			case <-mgr.ctx.Done():
				return
			default:
				if !taskFunc() {
					return
				}
			}
		}
	}()
}

// Stop signals all tasks to exit after their current iteration.
func (mgr *taskManager) Stop() {
	mgr.cancel()
}

// Stopped reports whether Stop has been called.
func (mgr *taskManager) Stopped() bool {
	return mgr.ctx.Err() != nil
}

// Wait blocks until all tasks have exited.
func (mgr *taskManager) Wait() {
	mgr.wg.Wait()
}

// TaskCount returns the number of running tasks.
func (mgr *taskManager) TaskCount() int {
	return int(mgr.count.Load())
}
