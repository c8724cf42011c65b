package tracker

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/inttech/go-gazetrack/logger"
	"github.com/inttech/go-gazetrack/opengaze"
	"github.com/stretchr/testify/require"
)

func TestNewClient_NilConfig(t *testing.T) {
	client, err := NewClient(nil)
	require.ErrorIs(t, err, ErrConfigNil)
	require.Nil(t, client)
}

func TestClient_ConnectDisconnect(t *testing.T) {
	require := require.New(t)

	fake := newFakeTracker(t)

	var changes []ConnState
	client := newTestClient(t, fake, WithStateChangeHandler(func(_, cur ConnState) {
		changes = append(changes, cur)
	}))
	require.True(client.State().IsDisconnected())

	require.NoError(client.Connect())
	require.True(client.State().IsConnected())

	// already connected
	require.NoError(client.Connect())
	require.True(client.State().IsConnected())

	require.NoError(client.Disconnect())
	require.True(client.State().IsDisconnected())
	require.NoError(client.Disconnect())

	// a fresh session after disconnect
	require.NoError(client.Connect())
	require.True(client.State().IsConnected())
	require.NoError(client.Disconnect())

	require.Equal([]ConnState{ConnectedState, DisconnectedState, ConnectedState, DisconnectedState}, changes)
}

func TestClient_ConnectRefused(t *testing.T) {
	require := require.New(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(ln.Close())

	cfg, err := NewClientConfig("127.0.0.1", port, WithConnectTimeout(time.Second))
	require.NoError(err)
	client, err := NewClient(cfg)
	require.NoError(err)

	err = client.Connect()
	var connErr *ConnectError
	require.True(errors.As(err, &connErr))
	require.True(client.State().IsDisconnected())

	// the client stays usable: a later attempt against a live tracker succeeds
	ln, err = net.Listen("tcp", cfg.Addr())
	if err != nil {
		t.Skipf("port %d was taken in between: %v", port, err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			defer conn.Close()
			_, _ = conn.Read(make([]byte, 1))
		}
	}()

	require.NoError(client.Connect())
	require.True(client.State().IsConnected())
	require.NoError(client.Disconnect())
}

func TestClient_NotConnected(t *testing.T) {
	require := require.New(t)

	fake := newFakeTracker(t)
	client := newTestClient(t, fake)

	require.ErrorIs(client.StartData(&sampleRecorder{}), ErrNotConnected)
	require.ErrorIs(client.StartData(nil), ErrListenerNil)

	_, err := client.Calibrate()
	require.ErrorIs(err, ErrNotConnected)
	require.Empty(fake.received())
}

func TestClient_StartStopData(t *testing.T) {
	require := require.New(t)

	fake := newFakeTracker(t)
	client := newTestClient(t, fake)
	require.NoError(client.Connect())

	rec := &sampleRecorder{}
	require.NoError(client.StartData(rec))
	require.True(client.State().IsStreaming())

	require.Eventually(func() bool { return rec.count() >= 10 }, 2*time.Second, time.Millisecond)

	require.NoError(client.StopData())
	require.True(client.State().IsConnected())

	n := rec.count()
	time.Sleep(30 * time.Millisecond)
	require.Equal(n, rec.count())

	first := rec.samples[0]
	require.True(first.BestValid)
	require.True(first.LeftEyeOK)
	require.True(first.RightEyeOK)
	require.InDelta(0.5, first.BestY, 1e-9)

	requireSubsequence(t, fake.received(),
		`<SET ID="ENABLE_SEND_POG_BEST" STATE="1" />`,
		`<SET ID="ENABLE_SEND_EYE_LEFT" STATE="1" />`,
		`<SET ID="ENABLE_SEND_EYE_RIGHT" STATE="1" />`,
		`<SET ID="ENABLE_SEND_DATA" STATE="1" />`,
		`<SET ID="ENABLE_SEND_DATA" STATE="0" />`,
		`<SET ID="ENABLE_SEND_POG_BEST" STATE="0" />`,
		`<SET ID="ENABLE_SEND_EYE_LEFT" STATE="0" />`,
		`<SET ID="ENABLE_SEND_EYE_RIGHT" STATE="0" />`,
	)

	metrics := client.GetMetrics()
	require.EqualValues(n, metrics.SampleCount.Load())
	require.EqualValues(8, metrics.AckCount.Load())
	require.EqualValues(8, metrics.LineSendCount.Load())
}

func TestClient_RedundantCallsWarn(t *testing.T) {
	require := require.New(t)

	fake := newFakeTracker(t)
	mockLogger := logger.NewPermissiveMockLogger()
	client := newTestClient(t, fake, WithLogger(mockLogger))
	require.NoError(client.Connect())
	mockLogger.AssertNumberOfCalls(t, "Warn", 0)
	mockLogger.AssertCalled(t, "Info", "connected to tracker", []any{"remote", fake.ln.Addr().String()})

	require.NoError(client.StopData())
	mockLogger.AssertNumberOfCalls(t, "Warn", 1)

	rec := &sampleRecorder{}
	require.NoError(client.StartData(rec))
	require.NoError(client.StartData(rec))
	mockLogger.AssertNumberOfCalls(t, "Warn", 2)
	require.True(client.State().IsStreaming())

	require.NoError(client.StopData())
	require.NoError(client.StopData())
	mockLogger.AssertNumberOfCalls(t, "Warn", 3)
}

func TestClient_StopDataWaitsForReader(t *testing.T) {
	require := require.New(t)

	fake := newFakeTracker(t, withManualStream())
	client := newTestClient(t, fake)
	require.NoError(client.Connect())

	rec := &sampleRecorder{}
	require.NoError(client.StartData(rec))
	for i := 0; i < 3; i++ {
		fake.push(sampleLine(i))
	}
	require.Eventually(func() bool { return rec.count() == 3 }, time.Second, time.Millisecond)

	// the reader is blocked on the next line
	stopped := make(chan error, 1)
	go func() { stopped <- client.StopData() }()

	select {
	case <-stopped:
		require.Fail("StopData returned while the reader was still blocked")
	case <-time.After(100 * time.Millisecond):
	}

	fake.push(sampleLine(3))
	select {
	case err := <-stopped:
		require.NoError(err)
	case <-time.After(2 * time.Second):
		require.Fail("StopData didn't return after the reader was released")
	}

	// the line that released the reader is dropped
	require.Equal(3, rec.count())
	require.True(client.State().IsConnected())
}

func TestClient_StreamSkipsOtherLines(t *testing.T) {
	require := require.New(t)

	fake := newFakeTracker(t, withManualStream())
	client := newTestClient(t, fake)
	require.NoError(client.Connect())

	var got []opengaze.GazeSample
	done := make(chan struct{})
	require.NoError(client.StartData(SampleListenerFunc(func(s opengaze.GazeSample) {
		got = append(got, s)
		close(done)
	})))

	fake.push(`<ACK ID="ENABLE_SEND_DATA" STATE="1" />`)
	fake.push(`<REC BPOGV="1" BPOGX="abc" BPOGY="0.5" LEYEV="1" REYEV="1" />`)
	fake.push(`<REC BPOGX="0.25" BPOGY="0.75" BPOGV="1" LEYEV="0" REYEV="1" />`)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.Fail("sample wasn't delivered")
	}

	require.Equal([]opengaze.GazeSample{{
		BestValid:  true,
		BestX:      0.25,
		BestY:      0.75,
		LeftEyeOK:  false,
		RightEyeOK: true,
	}}, got)

	metrics := client.GetMetrics()
	require.EqualValues(1, metrics.SampleCount.Load())
	require.EqualValues(1, metrics.NonSampleCount.Load())
	require.EqualValues(1, metrics.SampleErrCount.Load())
}

func TestClient_StreamPeerClosed(t *testing.T) {
	require := require.New(t)

	fake := newFakeTracker(t)
	client := newTestClient(t, fake)
	require.NoError(client.Connect())

	rec := &sampleRecorder{}
	require.NoError(client.StartData(rec))
	require.Eventually(func() bool { return rec.count() > 0 }, 2*time.Second, time.Millisecond)

	fake.closePeer()
	require.Eventually(func() bool { return len(rec.streamErrs()) == 1 }, 2*time.Second, time.Millisecond)
	require.ErrorIs(rec.streamErrs()[0], ErrEndOfStream)

	// the failure surfaces on the next operation, which releases the connection
	err := client.StopData()
	require.ErrorIs(err, ErrEndOfStream)
	require.True(client.State().IsDisconnected())

	require.NoError(client.Connect())
	require.True(client.State().IsConnected())
}

func TestClient_DisconnectWhileStreaming(t *testing.T) {
	require := require.New(t)

	fake := newFakeTracker(t)
	client := newTestClient(t, fake)
	require.NoError(client.Connect())

	rec := &sampleRecorder{}
	require.NoError(client.StartData(rec))
	require.Eventually(func() bool { return rec.count() > 0 }, 2*time.Second, time.Millisecond)

	require.NoError(client.Disconnect())
	require.True(client.State().IsDisconnected())
	require.True(fake.hasReceived(`<SET ID="ENABLE_SEND_DATA" STATE="0" />`))
	require.Empty(rec.streamErrs())

	n := rec.count()
	time.Sleep(20 * time.Millisecond)
	require.Equal(n, rec.count())
}

func TestClient_CloseWhileIdle(t *testing.T) {
	require := require.New(t)

	fake := newFakeTracker(t)
	client := newTestClient(t, fake)

	require.NoError(client.Close())
	require.True(client.State().IsDisconnected())

	require.NoError(client.Connect())
	require.NoError(client.Disconnect())
	require.NoError(client.Close())
}

func TestClient_CloseEndsStream(t *testing.T) {
	require := require.New(t)

	fake := newFakeTracker(t)
	client := newTestClient(t, fake)
	require.NoError(client.Connect())

	rec := &sampleRecorder{}
	require.NoError(client.StartData(rec))
	require.Eventually(func() bool { return rec.count() > 0 }, 2*time.Second, time.Millisecond)

	require.NoError(client.Close())
	require.Eventually(func() bool { return len(rec.streamErrs()) == 1 }, 2*time.Second, time.Millisecond)
	require.ErrorIs(rec.streamErrs()[0], ErrChannelClosed)

	require.NoError(client.Disconnect())
	require.True(client.State().IsDisconnected())
}
