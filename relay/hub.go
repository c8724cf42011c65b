package relay

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/inttech/go-gazetrack/internal/pool"
	"github.com/inttech/go-gazetrack/logger"
	"github.com/inttech/go-gazetrack/opengaze"
	"github.com/inttech/go-gazetrack/tracker"
)

// Path is the websocket endpoint served by the hub.
const Path = "/tracker-adapter/tracker"

// Commands accepted from sessions.
const (
	CmdConnect     = "connect"
	CmdDisconnect  = "disconnect"
	CmdCalibrate   = "calibrate"
	CmdStartStream = "start-stream"
	CmdEndStream   = "end-stream"
	CmdSetup       = "setup"
)

// Tracker is the command surface of the tracker client the hub drives.
// *tracker.Client implements it.
type Tracker interface {
	Connect() error
	Disconnect() error
	Calibrate() (opengaze.CalibrationOutcome, error)
	StartData(listener tracker.SampleListener) error
	StopData() error
	State() tracker.ConnState
	AddStateChangeHandler(handlers ...tracker.ConnStateChangeHandler)
}

var _ Tracker = (*tracker.Client)(nil)

// HubMetrics contains atomic metrics for a hub.
type HubMetrics struct {
	// SessionCount indicates the number of sessions accepted so far.
	SessionCount atomic.Uint64
	// DroppedSessionCount indicates the number of sessions dropped for being too slow.
	DroppedSessionCount atomic.Uint64
	// CommandCount indicates the number of dispatched commands.
	CommandCount atomic.Uint64
	// CommandErrCount indicates the number of commands that failed.
	CommandErrCount atomic.Uint64
	// RejectedCommandCount indicates the number of commands rejected on a full command queue.
	RejectedCommandCount atomic.Uint64
	// BroadcastCount indicates the number of messages fanned out to all sessions.
	BroadcastCount atomic.Uint64
}

type command struct {
	sessionID string
	name      string
}

// Hub relays tracker commands from websocket sessions and fans samples out to them.
type Hub struct {
	cfg      *HubConfig
	tracker  Tracker
	logger   logger.Logger
	upgrader websocket.Upgrader

	sessions *xsync.MapOf[string, *session]
	commands chan command

	done      chan struct{}
	closeOnce sync.Once

	metrics HubMetrics
}

var (
	_ tracker.SampleListener      = (*Hub)(nil)
	_ tracker.StreamErrorListener = (*Hub)(nil)
	_ http.Handler                = (*Hub)(nil)
)

// NewHub creates a hub driving t. The hub subscribes to state changes of t and broadcasts them.
func NewHub(t Tracker, cfg *HubConfig) (*Hub, error) {
	if t == nil {
		return nil, ErrTrackerNil
	}
	if cfg == nil {
		return nil, ErrConfigNil
	}

	h := &Hub{
		cfg:     cfg,
		tracker: t,
		logger:  cfg.logger.With("component", "relay"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.checkOrigin,
		},
		sessions: xsync.NewMapOf[string, *session](),
		commands: make(chan command, commandQueueSize),
		done:     make(chan struct{}),
	}
	t.AddStateChangeHandler(h.onStateChange)

	return h, nil
}

// GetLogger returns the logger of the hub.
func (h *Hub) GetLogger() logger.Logger {
	return h.logger
}

// GetMetrics returns the metrics of the hub.
func (h *Hub) GetMetrics() *HubMetrics {
	return &h.metrics
}

// SessionCount returns the number of open sessions.
func (h *Hub) SessionCount() int {
	return h.sessions.Size()
}

// ServeHTTP upgrades the request to a websocket session and serves it until it ends.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.isClosed() {
		http.Error(w, ErrHubClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "method", "ServeHTTP", "remote", r.RemoteAddr, "error", err)
		return
	}

	s := newSession(uuid.NewString(), conn, h.cfg.sendQueueSize)
	h.sessions.Store(s.id, s)
	h.metrics.SessionCount.Add(1)
	h.logger.Info("session opened", "session", s.id, "remote", r.RemoteAddr, "sessions", h.sessions.Size())

	// a session closed by Close in between must not linger in the registry
	if h.isClosed() {
		h.removeSession(s)
		return
	}

	go func() {
		if err := s.writePump(); err != nil {
			h.logger.Debug("session write failed", "session", s.id, "error", err)
		}
		h.removeSession(s)
	}()

	if data, err := encodeState(h.tracker.State().String()); err == nil {
		h.enqueue(s, data)
	}

	err = s.readPump(func(text string) bool {
		return h.submit(command{sessionID: s.id, name: strings.TrimSpace(text)})
	})
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		h.logger.Debug("session read ended", "session", s.id, "error", err)
	}
	h.removeSession(s)
}

// submit queues cmd for Run. It returns false once the hub is closed.
//
// It never blocks: the read pump must keep reading pong frames while a long command such as
// calibrate runs, so a command arriving at a full queue is rejected.
func (h *Hub) submit(cmd command) bool {
	h.logger.Debug("got websocket command", "session", cmd.sessionID, "command", cmd.name)

	if h.isClosed() {
		return false
	}

	select {
	case h.commands <- cmd:
	default:
		h.metrics.RejectedCommandCount.Add(1)
		h.logger.Warn("command queue full, rejecting command", "session", cmd.sessionID, "command", cmd.name)
		h.sendError(cmd.sessionID, fmt.Errorf("%w: %q", ErrCommandQueueFull, cmd.name))
	}

	return true
}

// Run dispatches commands until ctx is done or the hub is closed.
//
// Commands run one at a time in arrival order. A command that fails is reported to the
// session that sent it.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.done:
			return ErrHubClosed
		case cmd := <-h.commands:
			h.dispatch(cmd)
		}
	}
}

func (h *Hub) dispatch(cmd command) {
	h.metrics.CommandCount.Add(1)

	var err error
	switch cmd.name {
	case CmdConnect:
		err = h.tracker.Connect()
	case CmdDisconnect:
		err = h.tracker.Disconnect()
	case CmdCalibrate:
		err = h.calibrate()
	case CmdStartStream:
		err = h.tracker.StartData(h)
	case CmdEndStream:
		err = h.tracker.StopData()
	case CmdSetup:
		err = h.setup()
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.name)
	}

	if err != nil {
		h.metrics.CommandErrCount.Add(1)
		h.logger.Error("command failed", "method", "dispatch", "session", cmd.sessionID, "command", cmd.name, "error", err)
		h.sendError(cmd.sessionID, err)
	}
}

func (h *Hub) calibrate() error {
	outcome, err := h.tracker.Calibrate()
	if err != nil {
		return err
	}

	data, err := encodeCalibrated(outcome)
	if err != nil {
		return err
	}
	h.broadcast(data)

	return nil
}

// setup connects, calibrates and starts the stream, stopping at the first failure.
func (h *Hub) setup() error {
	if err := h.tracker.Connect(); err != nil {
		return err
	}
	if err := h.calibrate(); err != nil {
		return err
	}

	return h.tracker.StartData(h)
}

// OnSample broadcasts a gaze sample to every session.
func (h *Hub) OnSample(sample opengaze.GazeSample) {
	data, err := encodeSample(sample)
	if err != nil {
		h.logger.Error("failed to encode sample", "sample", sample, "error", err)
		return
	}
	h.broadcast(data)
}

// OnStreamError broadcasts the failure of the tracker stream to every session.
func (h *Hub) OnStreamError(err error) {
	data, encErr := encodeError(err)
	if encErr != nil {
		return
	}
	h.broadcast(data)
}

func (h *Hub) onStateChange(_ tracker.ConnState, newState tracker.ConnState) {
	data, err := encodeState(newState.String())
	if err != nil {
		return
	}
	h.broadcast(data)
}

func (h *Hub) sendError(sessionID string, err error) {
	s, ok := h.sessions.Load(sessionID)
	if !ok {
		return
	}

	data, encErr := encodeError(err)
	if encErr != nil {
		return
	}
	h.enqueue(s, data)
}

func (h *Hub) broadcast(data []byte) {
	h.metrics.BroadcastCount.Add(1)

	var pending []*session
	h.sessions.Range(func(_ string, s *session) bool {
		select {
		case s.send <- data:
		default:
			pending = append(pending, s)
		}
		return true
	})
	h.deliver(pending, data)
}

// enqueue queues data for a single session.
func (h *Hub) enqueue(s *session, data []byte) {
	select {
	case s.send <- data:
	default:
		h.deliver([]*session{s}, data)
	}
}

// deliver waits for room in the full queues of pending. All of them share one send timeout;
// sessions whose queue is still full when it expires are dropped.
func (h *Hub) deliver(pending []*session, data []byte) {
	if len(pending) == 0 {
		return
	}

	timer := pool.GetTimer(h.cfg.sendTimeout)
	defer pool.PutTimer(timer)

	expired := false
	for _, s := range pending {
		if !expired {
			select {
			case s.send <- data:
				continue
			case <-s.done:
				continue
			case <-timer.C:
				expired = true
			}
		}

		select {
		case s.send <- data:
			continue
		default:
		}
		if s.isClosed() {
			continue
		}

		h.metrics.DroppedSessionCount.Add(1)
		h.logger.Warn("session send queue stays full, dropping session", "session", s.id, "timeout", h.cfg.sendTimeout)
		h.removeSession(s)
	}
}

func (h *Hub) removeSession(s *session) {
	s.close()
	if _, loaded := h.sessions.LoadAndDelete(s.id); loaded {
		h.logger.Info("session closed", "session", s.id, "sessions", h.sessions.Size())
	}
}

func (h *Hub) isClosed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Close closes every session and stops Run. The tracker client is left as it is.
func (h *Hub) Close() error {
	h.closeOnce.Do(func() {
		close(h.done)
		h.sessions.Range(func(_ string, s *session) bool {
			h.removeSession(s)
			return true
		})
	})

	return nil
}
