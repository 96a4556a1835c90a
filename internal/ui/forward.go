// ABOUTME: Non-blocking hand-off from pipeline callbacks to the TUI
// ABOUTME: Buffers messages and drops them when the TUI falls behind
package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Forwarder queues messages for a program so callers never wait on the TUI
type Forwarder struct {
	msgs chan tea.Msg
}

// NewForwarder creates a forwarder holding up to size pending messages
func NewForwarder(size int) *Forwarder {
	if size < 1 {
		size = 1
	}
	return &Forwarder{msgs: make(chan tea.Msg, size)}
}

// Post queues msg. It reports false if the queue was full and msg was dropped.
func (f *Forwarder) Post(msg tea.Msg) bool {
	select {
	case f.msgs <- msg:
		return true
	default:
		return false
	}
}

// Run delivers queued messages to send in order until ctx is cancelled
func (f *Forwarder) Run(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-f.msgs:
			send(msg)
		}
	}
}
