// Package tracker implements a client for an eye tracker speaking the Open Gaze API over TCP.
//
// # Components
//
//   - LineChannel owns the TCP connection and exchanges "\r\n"-terminated lines.
//   - Client drives the connection lifecycle, acknowledgment-gated commands, the
//     calibration procedure and the background gaze stream reader.
//
// # States
//
//	Disconnected --Connect--> Connected --Calibrate--> Calibrating --(accepted)--> Connected
//	Connected --StartData--> Streaming --StopData--> Connected
//
// Disconnect is allowed from every connected state and always stops a running stream first.
//
// # Single reader
//
// The receive side of the channel has exactly one reader at any time: either the operation
// holding the client lock (while waiting for an acknowledgment, a calibration result or a GET
// reply) or, while streaming, the background reader. Calibrate stops a running stream before
// it reads anything, and StopData joins the reader before any command is sent.
//
// # Example
//
//	cfg, _ := tracker.NewClientConfig("localhost", 4242)
//	client, _ := tracker.NewClient(cfg)
//	if err := client.Connect(); err != nil {
//	    // handle error
//	}
//	defer client.Disconnect()
//
//	if _, err := client.Calibrate(); err != nil {
//	    // handle error
//	}
//
//	_ = client.StartData(tracker.SampleListenerFunc(func(s opengaze.GazeSample) {
//	    fmt.Println(s.BestX, s.BestY)
//	}))
package tracker
