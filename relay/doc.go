// Package relay exposes a tracker client to websocket viewers.
//
// A Hub serves the websocket endpoint at Path. Every connection is a session. Text frames a
// session sends are commands for the shared tracker client:
//
//	connect       open the tracker connection
//	disconnect    close it
//	calibrate     run the calibration procedure
//	start-stream  start gaze reporting
//	end-stream    stop gaze reporting
//	setup         connect, calibrate and start-stream in one go
//
// Commands from all sessions run one at a time on the goroutine that calls Hub.Run, in the
// order they arrive. Gaze samples are fanned out as JSON to every open session:
//
//	{"bestValid":true,"bestX":0.51,"bestY":0.43,"leftEyeOK":true,"rightEyeOK":true}
//
// Besides samples the hub sends events, for example
//
//	{"event":"state","state":"streaming"}
//	{"event":"calibrated","averageError":12.5,"validPoints":9}
//	{"event":"error","error":"tracker is not connected"}
//
// A session that stops reading is dropped once its send queue stays full for the send timeout;
// all stalled sessions of one broadcast share that timeout. Commands arriving while the
// dispatch queue is full are rejected with an error event.
package relay
