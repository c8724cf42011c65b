package tracker

import "github.com/inttech/go-gazetrack/opengaze"

// SampleListener receives decoded gaze samples.
//
// OnSample is called from the background reader goroutine. It must not block for long, since
// that stalls the reader and delays StopData, and it must not call back into the Client.
type SampleListener interface {
	OnSample(sample opengaze.GazeSample)
}

// SampleListenerFunc adapts a function to SampleListener.
type SampleListenerFunc func(sample opengaze.GazeSample)

// OnSample calls f(sample).
func (f SampleListenerFunc) OnSample(sample opengaze.GazeSample) { f(sample) }

// StreamErrorListener is implemented by listeners that want to learn why a stream ended.
//
// OnStreamError is called once, from the reader goroutine, when the channel fails while
// streaming. It is not called for streams ended by StopData or Disconnect.
type StreamErrorListener interface {
	OnStreamError(err error)
}
