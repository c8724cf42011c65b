package tracker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/inttech/go-gazetrack/logger"
)

// ConnState represents the lifecycle stage of a tracker client.
type ConnState uint32

// Tracker client states.
const (
	// DisconnectedState indicates that no line channel is open.
	DisconnectedState ConnState = iota
	// ConnectedState indicates an idle, open connection ready for commands.
	ConnectedState
	// StreamingState indicates that the background reader owns the receive side of the channel.
	StreamingState
	// CalibratingState indicates that a calibration procedure owns the channel.
	CalibratingState
)

// IsDisconnected returns if the current state is disconnected.
func (cs ConnState) IsDisconnected() bool { return cs == DisconnectedState }

// IsConnected returns if the current state is connected and idle.
func (cs ConnState) IsConnected() bool { return cs == ConnectedState }

// IsStreaming returns if the current state is streaming.
func (cs ConnState) IsStreaming() bool { return cs == StreamingState }

// IsCalibrating returns if the current state is calibrating.
func (cs ConnState) IsCalibrating() bool { return cs == CalibratingState }

// String returns string representation of the current state.
func (cs ConnState) String() string {
	switch cs {
	case DisconnectedState:
		return "disconnected"
	case ConnectedState:
		return "connected"
	case StreamingState:
		return "streaming"
	case CalibratingState:
		return "calibrating"
	default:
		return "unknown"
	}
}

// ConnStateChangeHandler is invoked after every state change.
//
// Note: the handler is invoked synchronously while the client holds its lock. It must not
// call back into the Client and should return quickly.
type ConnStateChangeHandler func(prevState ConnState, newState ConnState)

// validTransitions lists the allowed target states per state. Streaming and calibrating
// never follow each other directly: both need exclusive read access to the channel, so
// one must return to connected first.
var validTransitions = map[ConnState][]ConnState{
	DisconnectedState: {ConnectedState},
	ConnectedState:    {StreamingState, CalibratingState, DisconnectedState},
	StreamingState:    {ConnectedState, DisconnectedState},
	CalibratingState:  {ConnectedState, DisconnectedState},
}

// connStateMgr tracks the client state and notifies handlers of changes.
// Transitions are serialized by the client lock; readers may query the state at any time.
type connStateMgr struct {
	mu       sync.Mutex
	cond     *sync.Cond
	state    atomic.Uint32
	logger   logger.Logger
	handlers []ConnStateChangeHandler
}

func newConnStateMgr(l logger.Logger, handlers ...ConnStateChangeHandler) *connStateMgr {
	mgr := &connStateMgr{
		logger:   l,
		handlers: append([]ConnStateChangeHandler(nil), handlers...),
	}
	mgr.cond = sync.NewCond(&mgr.mu)
	mgr.state.Store(uint32(DisconnectedState))

	return mgr
}

// State returns the current state.
func (cs *connStateMgr) State() ConnState {
	return ConnState(cs.state.Load())
}

// AddHandler adds state change handlers.
func (cs *connStateMgr) AddHandler(handlers ...ConnStateChangeHandler) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.handlers = append(cs.handlers, handlers...)
}

// WaitState waits until the state equals state or ctx is done.
func (cs *connStateMgr) WaitState(ctx context.Context, state ConnState) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.State() == state {
		return nil
	}

	stop := context.AfterFunc(ctx, func() {
		cs.mu.Lock()
		defer cs.mu.Unlock()
		cs.cond.Broadcast()
	})
	defer stop()

	for cs.State() != state {
		if err := ctx.Err(); err != nil {
			return err
		}
		cs.cond.Wait()
	}

	return nil
}

// transition moves to newState if allowed from the current state.
// Moving to the current state is a no-op.
func (cs *connStateMgr) transition(newState ConnState) error {
	cs.mu.Lock()

	prevState := cs.State()
	if prevState == newState {
		cs.mu.Unlock()
		return nil
	}

	if !isValidTransition(prevState, newState) {
		cs.mu.Unlock()
		cs.logger.Error("invalid state transition", "prevState", prevState, "newState", newState)

		return ErrInvalidTransition
	}

	cs.state.Store(uint32(newState))
	cs.cond.Broadcast()
	handlers := append([]ConnStateChangeHandler(nil), cs.handlers...)
	cs.mu.Unlock()

	cs.logger.Debug("connection state changed", "prevState", prevState, "newState", newState)
	for _, handler := range handlers {
		if handler != nil {
			handler(prevState, newState)
		}
	}

	return nil
}

// toDisconnected is allowed from any state.
func (cs *connStateMgr) toDisconnected() {
	_ = cs.transition(DisconnectedState)
}

func isValidTransition(from, to ConnState) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}

	return false
}
