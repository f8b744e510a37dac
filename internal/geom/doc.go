// Package geom holds the vector, euler and quaternion value types shared by
// the protocol decoders, and the Math capability used to combine them.
//
// Ownership boundary:
// - value types and their component layout
// - quaternion product and euler conversion
//
// Axis remapping for device placement is not owned here; see protocol.
package geom
