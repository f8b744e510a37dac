package protocol

// Clock expands the 16-bit wrapping frame timestamp into a monotonic value.
// It assumes at most one wraparound between two consecutive frames.
type Clock struct {
	lastRaw uint16
	offset  uint32
}

// Peek returns the expanded timestamp for raw without advancing the clock.
func (c *Clock) Peek(raw uint16) uint32 {
	offset := c.offset
	if raw < c.lastRaw {
		offset += 1 << 16
	}
	return uint32(raw) + offset
}

// Commit advances the clock past raw.
func (c *Clock) Commit(raw uint16) {
	if raw < c.lastRaw {
		c.offset += 1 << 16
	}
	c.lastRaw = raw
}

// Reset returns the clock to its session start state.
func (c *Clock) Reset() {
	c.lastRaw = 0
	c.offset = 0
}
