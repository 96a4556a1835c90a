// ABOUTME: Sequence gap accounting for received packets
// ABOUTME: Counts packets skipped by the network from sequence numbers
package pcmlink

// SequenceTracker detects sequence gaps. It is owned by the receiver
// goroutine and is not safe for concurrent use.
//
// Late and duplicate packets are accepted without being counted and move the
// expectation back to follow them.
type SequenceTracker struct {
	expected uint64
	started  bool
}

// Observe records seq and returns the number of packets lost before it
func (t *SequenceTracker) Observe(seq uint64) uint64 {
	var lost uint64
	if t.started && seq > t.expected {
		lost = seq - t.expected
	}

	t.expected = seq + 1
	t.started = true

	return lost
}

// Expected returns the next expected sequence number, if any packet has been
// observed
func (t *SequenceTracker) Expected() (uint64, bool) {
	return t.expected, t.started
}

// Reset forgets all observed packets
func (t *SequenceTracker) Reset() {
	*t = SequenceTracker{}
}
