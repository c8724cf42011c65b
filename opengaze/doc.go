// Package opengaze encodes commands for, and decodes lines from, an eye tracker speaking the
// Open Gaze API text protocol.
//
// The protocol runs over a persistent TCP connection (default port 4242). Each message is one
// ASCII line terminated by "\r\n" and shaped like an XML empty element carrying KEY="VALUE"
// attributes:
//
//	<SET ID="ENABLE_SEND_DATA" STATE="1" />      client -> tracker
//	<GET ID="CALIBRATE_RESULT_SUMMARY" />        client -> tracker
//	<ACK ID="ENABLE_SEND_DATA" STATE="1" />      tracker -> client
//	<REC BPOGX="0.51" BPOGY="0.48" BPOGV="1" LEYEV="1" REYEV="1" />
//
// Functions in this package are pure: they never perform I/O and never panic on arbitrary
// input. Lines that do not carry the fields a decoder looks for are reported explicitly,
// either as a "not this kind of line" result or as a *FormatError naming the field.
//
// Line terminators are not part of the encoded commands; the transport appends them.
package opengaze
