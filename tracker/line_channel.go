package tracker

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const lineTerminator = "\r\n"

// LineChannel is a duplex, line-oriented channel over one TCP connection to the tracker.
//
// SendLine may be called from any goroutine. ReceiveLine must have a single caller at a time;
// a second concurrent call fails with ErrConcurrentReceive instead of interleaving reads.
// Close is idempotent and unblocks a ReceiveLine in flight.
type LineChannel struct {
	conn   net.Conn
	reader *bufio.Reader

	writeMu   sync.Mutex
	receiving atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// OpenLineChannel dials the tracker at host:port.
//
// A zero timeout leaves the dial bound to the operating system. Any network failure, including
// name resolution, is reported as a *ConnectError.
func OpenLineChannel(host string, port int, timeout time.Duration) (*LineChannel, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}

	return NewLineChannel(conn), nil
}

// NewLineChannel wraps an established connection. The channel owns conn from now on.
func NewLineChannel(conn net.Conn) *LineChannel {
	return &LineChannel{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// RemoteAddr returns the tracker address.
func (lc *LineChannel) RemoteAddr() string {
	return lc.conn.RemoteAddr().String()
}

// SendLine writes text followed by "\r\n".
func (lc *LineChannel) SendLine(text string) error {
	lc.writeMu.Lock()
	defer lc.writeMu.Unlock()

	if lc.closed.Load() {
		return &WriteError{Err: ErrChannelClosed}
	}

	if _, err := io.WriteString(lc.conn, text+lineTerminator); err != nil {
		if lc.closed.Load() {
			err = ErrChannelClosed
		}

		return &WriteError{Err: err}
	}

	return nil
}

// ReceiveLine blocks until a full line is available and returns it without its terminator.
//
// It returns ErrEndOfStream when the tracker closed the connection, and a *ReadError wrapping
// ErrChannelClosed when the channel was closed locally. A final line without terminator is
// returned before ErrEndOfStream. There is no read timeout.
func (lc *LineChannel) ReceiveLine() (string, error) {
	if !lc.receiving.CompareAndSwap(false, true) {
		return "", &ReadError{Err: ErrConcurrentReceive}
	}
	defer lc.receiving.Store(false)

	if lc.closed.Load() {
		return "", &ReadError{Err: ErrChannelClosed}
	}

	line, err := lc.reader.ReadString('\n')
	if err != nil {
		switch {
		case lc.closed.Load() || errors.Is(err, net.ErrClosed):
			return "", &ReadError{Err: ErrChannelClosed}
		case errors.Is(err, io.EOF):
			if line != "" {
				return strings.TrimRight(line, lineTerminator), nil
			}

			return "", ErrEndOfStream
		default:
			return "", &ReadError{Err: err}
		}
	}

	return strings.TrimRight(line, lineTerminator), nil
}

// Close closes the underlying connection. It is safe to call more than once and
// concurrently with SendLine and ReceiveLine.
func (lc *LineChannel) Close() error {
	lc.closeOnce.Do(func() {
		lc.closed.Store(true)
		if tcpConn, ok := lc.conn.(*net.TCPConn); ok {
			_ = tcpConn.SetLinger(0)
		}
		lc.closeErr = lc.conn.Close()
	})

	return lc.closeErr
}

// IsClosed reports whether Close has been called.
func (lc *LineChannel) IsClosed() bool {
	return lc.closed.Load()
}
