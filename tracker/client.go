package tracker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/inttech/go-gazetrack/logger"
	"github.com/inttech/go-gazetrack/opengaze"
)

// streamFlags are enabled by StartData and disabled by StopData.
var streamFlags = []string{
	opengaze.OptEnableSendPOGBest,
	opengaze.OptEnableSendEyeLeft,
	opengaze.OptEnableSendEyeRight,
}

// Client is the tracker protocol client.
//
// All operations are serialized by a single lock: at most one of Connect, Disconnect,
// Calibrate, StartData and StopData runs at a time, and commands are only issued by the
// operation holding the lock. While streaming, the background reader is the only code
// reading from the channel; every command path leaves the streaming state first.
// Close is the one exception to the lock: it only closes the channel.
type Client struct {
	mu       sync.Mutex
	cfg      *ClientConfig
	logger   logger.Logger
	channel  *LineChannel
	stream   *gazeStream
	stateMgr *connStateMgr
	metrics  ClientMetrics

	// live mirrors channel for Close, which must not take mu.
	live atomic.Pointer[LineChannel]
}

// gazeStream is one run of the background reader.
type gazeStream struct {
	tasks    *taskManager
	listener SampleListener
	// err is written by the reader before it exits and read after tasks.Wait.
	err error
}

// NewClient creates a tracker client. The client starts disconnected.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	l := cfg.logger.With("tracker", cfg.Addr())

	return &Client{
		cfg:      cfg,
		logger:   l,
		stateMgr: newConnStateMgr(l, cfg.stateHandlers...),
	}, nil
}

// GetLogger returns the logger of the client.
func (c *Client) GetLogger() logger.Logger {
	return c.logger
}

// GetMetrics returns the metrics of the client.
func (c *Client) GetMetrics() *ClientMetrics {
	return &c.metrics
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	return c.stateMgr.State()
}

// WaitState blocks until the client reaches state or ctx is done.
func (c *Client) WaitState(ctx context.Context, state ConnState) error {
	return c.stateMgr.WaitState(ctx, state)
}

// AddStateChangeHandler registers handlers invoked after every state change.
func (c *Client) AddStateChangeHandler(handlers ...ConnStateChangeHandler) {
	c.stateMgr.AddHandler(handlers...)
}

// Connect opens the line channel to the tracker.
//
// It is a no-op if the client is already connected. On failure the client stays
// disconnected and the *ConnectError is returned; Connect never retries by itself.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if state := c.stateMgr.State(); !state.IsDisconnected() {
		c.logger.Warn("connect requested while already connected", "state", state)
		return nil
	}

	c.logger.Debug("connecting to tracker")
	ch, err := OpenLineChannel(c.cfg.host, c.cfg.port, c.cfg.connectTimeout)
	if err != nil {
		c.logger.Error("failed to connect to tracker", "error", err)
		c.stateMgr.toDisconnected()

		return err
	}

	c.channel = ch
	c.live.Store(ch)
	if err := c.stateMgr.transition(ConnectedState); err != nil {
		_ = ch.Close()
		c.channel = nil
		c.live.Store(nil)

		return err
	}
	c.logger.Info("connected to tracker", "remote", ch.RemoteAddr())

	return nil
}

// Disconnect stops a running stream, closes the line channel and returns to the
// disconnected state. It is a no-op if the client is already disconnected.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stateMgr.State().IsDisconnected() {
		c.logger.Warn("disconnect requested while not connected")
		return nil
	}

	c.logger.Info("disconnecting from tracker")
	if c.stream != nil {
		if err := c.stopDataLocked(); err != nil {
			c.logger.Warn("failed to stop gaze stream cleanly", "method", "Disconnect", "error", err)
		}
	}
	c.teardownLocked()

	return nil
}

// Close closes the line channel without waiting for the client lock.
//
// An operation blocked on the tracker, such as a Calibrate waiting for a person to sit down,
// fails with a channel error and leaves the client disconnected. A running stream ends the
// same way and its listener is told through StreamErrorListener. Close is a no-op while
// disconnected; call Disconnect afterwards to wait for the client to settle.
func (c *Client) Close() error {
	ch := c.live.Load()
	if ch == nil {
		return nil
	}

	c.logger.Info("closing tracker connection")

	return ch.Close()
}

// StartData enables gaze reporting and starts the background reader, which calls
// listener.OnSample for every gaze sample line. Other lines are skipped.
//
// It is a no-op if a stream is already running. If listener also implements
// StreamErrorListener it is told when the channel fails mid-stream.
func (c *Client) StartData(listener SampleListener) error {
	if listener == nil {
		return ErrListenerNil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch state := c.stateMgr.State(); state {
	case DisconnectedState:
		return ErrNotConnected
	case StreamingState:
		c.logger.Warn("start data requested while already streaming")
		return nil
	}

	c.logger.Info("requesting gaze data stream")
	for _, opt := range streamFlags {
		if err := c.set(opt, opengaze.On, true); err != nil {
			return c.failLocked(err)
		}
	}
	if err := c.set(opengaze.OptEnableSendData, opengaze.On, true); err != nil {
		return c.failLocked(err)
	}

	if err := c.stateMgr.transition(StreamingState); err != nil {
		return err
	}

	stream := &gazeStream{
		tasks:    newTaskManager(context.Background(), c.logger),
		listener: listener,
	}
	c.stream = stream

	ch := c.channel
	stream.tasks.Start("gazeReader", func() bool {
		return c.readSample(ch, stream)
	})

	return nil
}

// StopData stops the background reader, waits for it to exit and disables gaze reporting.
//
// When StopData returns the listener will not be called again for this stream. The reader
// checks the stop signal between lines, so StopData waits for the line being read to arrive.
// It is a no-op if no stream is running.
func (c *Client) StopData() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.stateMgr.State().IsStreaming() {
		c.logger.Warn("stop data requested while not streaming")
		return nil
	}

	return c.stopDataLocked()
}

func (c *Client) stopDataLocked() error {
	stream := c.stream
	if stream == nil {
		return nil
	}

	c.logger.Info("stopping gaze data stream")
	stream.tasks.Stop()
	stream.tasks.Wait()
	c.stream = nil

	if stream.err != nil {
		c.teardownLocked()
		return fmt.Errorf("gaze stream ended: %w", stream.err)
	}

	if err := c.set(opengaze.OptEnableSendData, opengaze.Off, true); err != nil {
		return c.failLocked(err)
	}
	for _, opt := range streamFlags {
		if err := c.set(opt, opengaze.Off, true); err != nil {
			return c.failLocked(err)
		}
	}

	return c.stateMgr.transition(ConnectedState)
}

// readSample is one iteration of the background reader.
func (c *Client) readSample(ch *LineChannel, stream *gazeStream) bool {
	line, err := ch.ReceiveLine()
	if stream.tasks.Stopped() {
		return false
	}
	if err != nil {
		stream.err = err
		c.logger.Error("gaze stream reader stopped", "method", "readSample", "error", err)
		if el, ok := stream.listener.(StreamErrorListener); ok {
			el.OnStreamError(err)
		}

		return false
	}
	c.metrics.incLineRecvCount()

	sample, ok, err := opengaze.DecodeGazeSample(line)
	switch {
	case err != nil:
		c.metrics.incSampleErrCount()
		c.logger.Debug("skipped malformed gaze sample", "method", "readSample", "error", err)
	case !ok:
		c.metrics.incNonSampleCount()
	default:
		c.metrics.incSampleCount()
		stream.listener.OnSample(sample)
	}

	return true
}

// teardownLocked releases the channel and moves to the disconnected state. Idempotent.
func (c *Client) teardownLocked() {
	if c.stream != nil {
		c.stream.tasks.Stop()
	}
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Debug("close line channel", "error", err)
		}
	}
	if c.stream != nil {
		c.stream.tasks.Wait()
		c.stream = nil
	}
	c.channel = nil
	c.live.Store(nil)
	c.stateMgr.toDisconnected()
}

// failLocked tears the session down if err means the channel is unusable, then returns err.
func (c *Client) failLocked(err error) error {
	if isChannelError(err) {
		c.logger.Error("tracker connection failed", "error", err)
		c.teardownLocked()
	}

	return err
}

// set sends a SET command. With awaitAck it reads lines until the matching acknowledgment,
// discarding everything else.
func (c *Client) set(option, value string, awaitAck bool) error {
	if err := c.send(opengaze.EncodeSet(option, value)); err != nil {
		return err
	}

	if !awaitAck {
		return nil
	}

	for {
		line, err := c.nextLine()
		if err != nil {
			return fmt.Errorf("wait for ack of %s: %w", option, err)
		}

		if opengaze.IsAck(line, option) {
			c.metrics.incAckCount()
			c.logger.Debug("option set", "option", option, "value", value, "response", line)

			return nil
		}

		c.metrics.incAckSkipCount()
		c.logger.Debug("skipped line while waiting for ack", "option", option, "value", value, "line", line)
	}
}

// get sends a GET command and returns the very next line.
func (c *Client) get(option string) (string, error) {
	if err := c.send(opengaze.EncodeGet(option)); err != nil {
		return "", err
	}

	line, err := c.nextLine()
	if err != nil {
		return "", fmt.Errorf("wait for reply of %s: %w", option, err)
	}

	return line, nil
}

func (c *Client) send(line string) error {
	if c.channel == nil {
		return ErrNotConnected
	}

	if err := c.channel.SendLine(line); err != nil {
		return err
	}
	c.metrics.incLineSendCount()

	return nil
}

func (c *Client) nextLine() (string, error) {
	if c.channel == nil {
		return "", ErrNotConnected
	}

	line, err := c.channel.ReceiveLine()
	if err != nil {
		return "", err
	}
	c.metrics.incLineRecvCount()

	return line, nil
}
