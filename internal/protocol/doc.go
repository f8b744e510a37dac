// Package protocol owns the device wire contract and its codecs.
//
// Ownership boundary:
// - sensor data frame grammar and timestamp reconstruction
// - motion and pressure record decoders, including placement remapping
// - sensor configuration encode/decode
// - calibration records
//
// Decoding is pure apart from the Decoder's Clock, which is only advanced
// when a frame decodes without a frame-level error.
//
// Socket command envelopes live in protocol/message; the outbound command
// batching lives in protocol/session.
package protocol
