// Package session owns the socket-link session helpers.
//
// Ownership boundary:
// - command/record envelope kinds and their payload codecs
// - the outbound command multiplexer (Outbox)
// - retry/backoff primitives and session timeouts
//
// Sensor data frames inside SENSOR_DATA records are decoded by the parent
// protocol package, not here.
package session
