package tracker

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/inttech/go-gazetrack/logger"
	"github.com/inttech/go-gazetrack/opengaze"
)

// Defaults of the tracker endpoint and calibration procedure.
const (
	DefaultHost = "localhost"
	DefaultPort = 4242

	DefaultPresenceHold    = 3 * time.Second
	DefaultMinValidPoints  = 9
	DefaultMaxAverageError = 40.0
)

// CalibrationPolicy decides whether a calibration run is good enough to keep.
type CalibrationPolicy struct {
	// MinValidPoints is the lowest accepted number of valid calibration points (inclusive).
	MinValidPoints int
	// MaxAverageError is the exclusive upper bound of the accepted average error.
	MaxAverageError float64
}

// DefaultCalibrationPolicy accepts runs with at least 9 valid points and an average error below 40.
var DefaultCalibrationPolicy = CalibrationPolicy{
	MinValidPoints:  DefaultMinValidPoints,
	MaxAverageError: DefaultMaxAverageError,
}

// Accept reports whether outcome satisfies the policy.
func (p CalibrationPolicy) Accept(outcome opengaze.CalibrationOutcome) bool {
	return outcome.ValidPointCount >= p.MinValidPoints && outcome.AverageError < p.MaxAverageError
}

// CalibrationAttempt describes one finished calibration run.
type CalibrationAttempt struct {
	// Number is the 1-based attempt counter within one Calibrate call.
	Number int
	// Outcome is the decoded summary of the run.
	Outcome opengaze.CalibrationOutcome
	// Accepted reports whether the policy accepted the run.
	Accepted bool
	// Summary is the raw summary line.
	Summary string
}

// CalibrationAttemptHook is called after every calibration run.
// Returning false after a rejected run stops the retry loop with ErrCalibrationAborted.
type CalibrationAttemptHook func(attempt CalibrationAttempt) bool

// ClientConfig holds the configuration of a tracker Client.
type ClientConfig struct {
	host string
	port int

	// connectTimeout bounds the TCP dial. Zero leaves it to the operating system.
	connectTimeout time.Duration

	// presenceHold is how long both eyes must stay valid before calibration starts.
	presenceHold time.Duration

	policy      CalibrationPolicy
	attemptHook CalibrationAttemptHook

	stateHandlers []ConnStateChangeHandler

	clock  Clock
	logger logger.Logger
}

// NewClientConfig creates a tracker client configuration for the tracker at host:port.
// An empty host means DefaultHost and a zero port means DefaultPort.
//
// opts are functional options applied in order; see the With* functions.
func NewClientConfig(host string, port int, opts ...ClientOption) (*ClientConfig, error) {
	cfg := &ClientConfig{
		host:         DefaultHost,
		port:         DefaultPort,
		presenceHold: DefaultPresenceHold,
		policy:       DefaultCalibrationPolicy,
		clock:        realClock{},
		logger:       logger.GetLogger(),
	}

	if host != "" {
		cfg.host = host
	}
	if port != 0 {
		if err := cfg.setPort(port); err != nil {
			return nil, err
		}
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (cfg *ClientConfig) setPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("tracker: port %d out of range [1, 65535]", port)
	}
	cfg.port = port

	return nil
}

// Host returns the tracker host.
func (cfg *ClientConfig) Host() string { return cfg.host }

// Port returns the tracker TCP port.
func (cfg *ClientConfig) Port() int { return cfg.port }

// Addr returns "host:port".
func (cfg *ClientConfig) Addr() string { return net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port)) }

// ConnectTimeout returns the dial timeout, zero if unbounded.
func (cfg *ClientConfig) ConnectTimeout() time.Duration { return cfg.connectTimeout }

// PresenceHold returns how long both eyes must be seen before calibrating.
func (cfg *ClientConfig) PresenceHold() time.Duration { return cfg.presenceHold }

// CalibrationPolicy returns the calibration acceptance policy.
func (cfg *ClientConfig) CalibrationPolicy() CalibrationPolicy { return cfg.policy }

// Logger returns the configured logger.
func (cfg *ClientConfig) Logger() logger.Logger { return cfg.logger }

// ClientOption represents a functional option for configuring a ClientConfig.
type ClientOption interface {
	apply(*ClientConfig) error
}

type clientOptFunc func(*ClientConfig) error

func (f clientOptFunc) apply(cfg *ClientConfig) error {
	if cfg == nil {
		return ErrConfigNil
	}

	return f(cfg)
}

// WithLogger sets the logger of the client.
func WithLogger(l logger.Logger) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		if l == nil {
			return errors.New("tracker: logger is nil")
		}
		cfg.logger = l

		return nil
	})
}

// WithClock sets the clock used by the eye-presence gate.
func WithClock(c Clock) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		if c == nil {
			return errors.New("tracker: clock is nil")
		}
		cfg.clock = c

		return nil
	})
}

// WithConnectTimeout bounds the TCP dial of Connect. Zero, the default, applies no extra bound.
func WithConnectTimeout(d time.Duration) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		if d < 0 {
			return fmt.Errorf("tracker: negative connect timeout %s", d)
		}
		cfg.connectTimeout = d

		return nil
	})
}

// WithPresenceHold sets how long both eyes must be continuously valid before calibration.
//
// Defaults to 3 seconds.
func WithPresenceHold(d time.Duration) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		if d < 0 {
			return fmt.Errorf("tracker: negative presence hold %s", d)
		}
		cfg.presenceHold = d

		return nil
	})
}

// WithCalibrationPolicy sets the acceptance thresholds of calibration runs.
func WithCalibrationPolicy(minValidPoints int, maxAverageError float64) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		if minValidPoints < 0 {
			return fmt.Errorf("tracker: negative minimum valid points %d", minValidPoints)
		}
		if maxAverageError <= 0 {
			return fmt.Errorf("tracker: maximum average error must be positive, got %g", maxAverageError)
		}
		cfg.policy = CalibrationPolicy{MinValidPoints: minValidPoints, MaxAverageError: maxAverageError}

		return nil
	})
}

// WithCalibrationAttemptHook sets a hook called after every calibration run.
func WithCalibrationAttemptHook(hook CalibrationAttemptHook) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		cfg.attemptHook = hook
		return nil
	})
}

// WithStateChangeHandler adds a connection state change handler.
func WithStateChangeHandler(handler ConnStateChangeHandler) ClientOption {
	return clientOptFunc(func(cfg *ClientConfig) error {
		if handler == nil {
			return errors.New("tracker: state change handler is nil")
		}
		cfg.stateHandlers = append(cfg.stateHandlers, handler)

		return nil
	})
}
