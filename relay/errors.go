package relay

import "errors"

var (
	// ErrConfigNil indicates that a nil HubConfig was provided.
	ErrConfigNil = errors.New("hub config is nil")

	// ErrTrackerNil indicates that NewHub was called without a tracker.
	ErrTrackerNil = errors.New("tracker is nil")

	// ErrUnknownCommand is reported to a session that sent an unsupported command.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrCommandQueueFull is reported to a session whose command arrived while the dispatch
	// queue was full.
	ErrCommandQueueFull = errors.New("command queue full")

	// ErrHubClosed indicates that the hub no longer accepts sessions or commands.
	ErrHubClosed = errors.New("hub closed")
)
