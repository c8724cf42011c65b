package relay

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/inttech/go-gazetrack/logger"
)

// Default values of the hub configuration.
const (
	DefaultSendQueueSize = 64
	DefaultSendTimeout   = time.Second
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	commandQueueSize = 16
	maxCommandSize   = 512
)

// HubConfig holds the configuration of a Hub.
type HubConfig struct {
	// sendQueueSize is the number of outbound messages buffered per session.
	sendQueueSize int
	// sendTimeout is how long a broadcast waits on a full session queue before dropping the session.
	sendTimeout time.Duration
	// checkOrigin is passed to the websocket upgrader. Nil accepts same-origin requests only.
	checkOrigin func(r *http.Request) bool

	logger logger.Logger
}

// NewHubConfig creates a hub configuration with defaults, then applies opts in order.
func NewHubConfig(opts ...HubOption) (*HubConfig, error) {
	cfg := &HubConfig{
		sendQueueSize: DefaultSendQueueSize,
		sendTimeout:   DefaultSendTimeout,
		logger:        logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// SendQueueSize returns the per-session send queue size.
func (cfg *HubConfig) SendQueueSize() int { return cfg.sendQueueSize }

// SendTimeout returns the per-session send timeout.
func (cfg *HubConfig) SendTimeout() time.Duration { return cfg.sendTimeout }

// HubOption represents a functional option for configuring a HubConfig.
type HubOption interface {
	apply(*HubConfig) error
}

type hubOptFunc func(*HubConfig) error

func (f hubOptFunc) apply(cfg *HubConfig) error {
	if cfg == nil {
		return ErrConfigNil
	}

	return f(cfg)
}

// WithLogger sets the logger of the hub.
func WithLogger(l logger.Logger) HubOption {
	return hubOptFunc(func(cfg *HubConfig) error {
		if l == nil {
			return errors.New("relay: logger is nil")
		}
		cfg.logger = l

		return nil
	})
}

// WithSendQueueSize sets the number of outbound messages buffered per session.
//
// Defaults to 64.
func WithSendQueueSize(size int) HubOption {
	return hubOptFunc(func(cfg *HubConfig) error {
		if size < 1 {
			return fmt.Errorf("relay: send queue size must be positive, got %d", size)
		}
		cfg.sendQueueSize = size

		return nil
	})
}

// WithSendTimeout sets how long a broadcast waits on a full session queue before the
// session is dropped.
//
// Defaults to 1 second.
func WithSendTimeout(d time.Duration) HubOption {
	return hubOptFunc(func(cfg *HubConfig) error {
		if d <= 0 {
			return fmt.Errorf("relay: send timeout must be positive, got %s", d)
		}
		cfg.sendTimeout = d

		return nil
	})
}

// WithCheckOrigin sets the origin check of the websocket upgrade.
func WithCheckOrigin(fn func(r *http.Request) bool) HubOption {
	return hubOptFunc(func(cfg *HubConfig) error {
		cfg.checkOrigin = fn
		return nil
	})
}
