package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/inttech/go-gazetrack/logger"
	"github.com/stretchr/testify/require"
)

func TestConnState_String(t *testing.T) {
	require := require.New(t)

	require.Equal("disconnected", DisconnectedState.String())
	require.Equal("connected", ConnectedState.String())
	require.Equal("streaming", StreamingState.String())
	require.Equal("calibrating", CalibratingState.String())
	require.Equal("unknown", ConnState(99).String())
}

func TestConnStateMgr_Transition(t *testing.T) {
	require := require.New(t)

	var mu sync.Mutex
	var changes [][2]ConnState
	mgr := newConnStateMgr(logger.GetLogger(), func(prev, cur ConnState) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, [2]ConnState{prev, cur})
	})
	require.True(mgr.State().IsDisconnected())

	require.ErrorIs(mgr.transition(StreamingState), ErrInvalidTransition)
	require.ErrorIs(mgr.transition(CalibratingState), ErrInvalidTransition)

	require.NoError(mgr.transition(ConnectedState))
	require.NoError(mgr.transition(ConnectedState))
	require.NoError(mgr.transition(StreamingState))
	require.ErrorIs(mgr.transition(CalibratingState), ErrInvalidTransition)
	require.NoError(mgr.transition(ConnectedState))
	require.NoError(mgr.transition(CalibratingState))
	require.ErrorIs(mgr.transition(StreamingState), ErrInvalidTransition)
	mgr.toDisconnected()
	mgr.toDisconnected()

	mu.Lock()
	defer mu.Unlock()
	require.Equal([][2]ConnState{
		{DisconnectedState, ConnectedState},
		{ConnectedState, StreamingState},
		{StreamingState, ConnectedState},
		{ConnectedState, CalibratingState},
		{CalibratingState, DisconnectedState},
	}, changes)
}

func TestConnStateMgr_WaitState(t *testing.T) {
	require := require.New(t)
	mgr := newConnStateMgr(logger.GetLogger())

	require.NoError(mgr.WaitState(context.Background(), DisconnectedState))

	done := make(chan error, 1)
	go func() {
		done <- mgr.WaitState(context.Background(), StreamingState)
	}()

	require.NoError(mgr.transition(ConnectedState))
	require.NoError(mgr.transition(StreamingState))

	select {
	case err := <-done:
		require.NoError(err)
	case <-time.After(time.Second):
		require.Fail("WaitState didn't return after the transition")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(mgr.WaitState(ctx, CalibratingState), context.DeadlineExceeded)
}
