// ABOUTME: Tests for the TUI message forwarder
// ABOUTME: Covers ordering and dropping when the consumer is stuck
package ui

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/pcmlink/pkg/pcmlink"
)

func TestForwarderDeliversInOrder(t *testing.T) {
	fwd := NewForwarder(4)

	var mu sync.Mutex
	var got []tea.Msg
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fwd.Run(ctx, func(msg tea.Msg) {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
	})

	require.True(t, fwd.Post(StateMsg(pcmlink.StatePlaying)))
	require.True(t, fwd.Post(ReportMsg(pcmlink.Report{Received: 7})))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, StateMsg(pcmlink.StatePlaying), got[0])
	assert.Equal(t, ReportMsg(pcmlink.Report{Received: 7}), got[1])
}

func TestForwarderPostNeverBlocks(t *testing.T) {
	fwd := NewForwarder(2)

	stuck := make(chan struct{})
	defer close(stuck)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fwd.Run(ctx, func(tea.Msg) { <-stuck })

	posted := make(chan int, 1)
	go func() {
		accepted := 0
		for i := 0; i < 10; i++ {
			if fwd.Post(ReportMsg(pcmlink.Report{Received: uint64(i)})) {
				accepted++
			}
		}
		posted <- accepted
	}()

	select {
	case accepted := <-posted:
		// one message held by the stuck consumer at most, two queued
		assert.LessOrEqual(t, accepted, 3)
		assert.GreaterOrEqual(t, accepted, 2)
	case <-time.After(time.Second):
		t.Fatal("Post blocked on a stuck TUI")
	}
}
