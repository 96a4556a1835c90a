// ABOUTME: Bounded FIFO between the receiver and playback goroutines
// ABOUTME: Drops the oldest frame on overflow and carries an end-of-stream marker
package pcmlink

import (
	"errors"
	"sync"
	"time"

	"github.com/gammazero/deque"
)

var (
	// ErrEndOfStream is returned by Pop once the buffer is drained after
	// EndOfStream
	ErrEndOfStream = errors.New("end of stream")

	// ErrPopTimeout is returned by Pop when no frame arrived in time
	ErrPopTimeout = errors.New("pop timed out")

	// ErrBufferClosed is returned by Push after EndOfStream
	ErrBufferClosed = errors.New("jitter buffer closed")
)

// JitterBuffer is a bounded single-producer single-consumer frame queue.
// Push never blocks; Pop waits up to a timeout.
type JitterBuffer struct {
	mu       sync.Mutex
	frames   deque.Deque[[]byte]
	capacity int
	ended    bool

	// notify wakes a waiting Pop; one pending signal is enough
	notify chan struct{}
}

// NewJitterBuffer creates a buffer holding at most capacity frames
func NewJitterBuffer(capacity int) *JitterBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &JitterBuffer{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// Push appends a frame. When the buffer is full the oldest frame is evicted
// in the same critical section and evicted is true.
func (b *JitterBuffer) Push(frame []byte) (evicted bool, err error) {
	b.mu.Lock()
	if b.ended {
		b.mu.Unlock()
		return false, ErrBufferClosed
	}

	if b.frames.Len() >= b.capacity {
		b.frames.PopFront()
		evicted = true
	}
	b.frames.PushBack(frame)
	b.mu.Unlock()

	b.signal()
	return evicted, nil
}

// Pop removes the oldest frame, waiting up to timeout for one to arrive.
// After EndOfStream, queued frames are still returned before ErrEndOfStream.
func (b *JitterBuffer) Pop(timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		b.mu.Lock()
		if b.frames.Len() > 0 {
			frame := b.frames.PopFront()
			b.mu.Unlock()
			return frame, nil
		}
		ended := b.ended
		b.mu.Unlock()

		if ended {
			return nil, ErrEndOfStream
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrPopTimeout
		}

		if timer == nil {
			timer = time.NewTimer(remaining)
		} else {
			timer.Reset(remaining)
		}

		select {
		case <-b.notify:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// EndOfStream marks that no more frames will be pushed. It is idempotent.
func (b *JitterBuffer) EndOfStream() {
	b.mu.Lock()
	b.ended = true
	b.mu.Unlock()

	b.signal()
}

// Ended reports whether EndOfStream has been called
func (b *JitterBuffer) Ended() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ended
}

// Len returns the number of queued frames
func (b *JitterBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames.Len()
}

// Cap returns the maximum number of queued frames
func (b *JitterBuffer) Cap() int {
	return b.capacity
}

func (b *JitterBuffer) signal() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}
