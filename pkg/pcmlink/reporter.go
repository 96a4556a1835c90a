// ABOUTME: Periodic telemetry reporter
// ABOUTME: Builds read-only reports from telemetry and logs them on an interval
package pcmlink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Report is one telemetry line
type Report struct {
	Time          time.Time `json:"time"`
	Received      uint64    `json:"received"`
	Dropped       uint64    `json:"dropped"`
	NetworkLoss   uint64    `json:"network_loss"`
	OverflowDrops uint64    `json:"overflow_drops"`
	LossRate      float64   `json:"loss_rate"`
	MeanLatencyMs float64   `json:"mean_latency_ms"`
	Occupancy     int       `json:"occupancy"`
	Capacity      int       `json:"capacity"`
	LastSequence  uint64    `json:"last_sequence"`
	State         string    `json:"state,omitempty"`
	Played        uint64    `json:"played"`
	WriteErrors   uint64    `json:"write_errors"`
	Final         bool      `json:"final,omitempty"`
}

func (r Report) String() string {
	s := fmt.Sprintf("received=%d dropped=%d (network=%d overflow=%d) loss=%.2f%% latency=%.2fms buffer=%d/%d",
		r.Received, r.Dropped, r.NetworkLoss, r.OverflowDrops, r.LossRate*100, r.MeanLatencyMs, r.Occupancy, r.Capacity)
	if r.State != "" {
		s += fmt.Sprintf(" state=%s played=%d", r.State, r.Played)
	}
	return s
}

// Reporter emits telemetry reports. It only reads shared state.
type Reporter struct {
	telemetry *Telemetry
	buffer    *JitterBuffer
	playback  *PlaybackEngine
	interval  time.Duration
	log       *logrus.Entry

	mu        sync.Mutex
	callbacks []func(Report)
}

// NewReporter creates a reporter. A non-positive interval defaults to 5s.
func NewReporter(telemetry *Telemetry, buffer *JitterBuffer, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Reporter{
		telemetry: telemetry,
		buffer:    buffer,
		interval:  interval,
		log:       logrus.WithField("component", "telemetry"),
	}
}

// AttachPlayback adds playback state and counters to reports
func (r *Reporter) AttachPlayback(p *PlaybackEngine) {
	r.playback = p
}

// OnReport registers a callback invoked with every emitted report. Callbacks
// run on the reporter or receiver goroutine and must not block.
func (r *Reporter) OnReport(fn func(Report)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, fn)
}

// Snapshot builds a report without emitting it
func (r *Reporter) Snapshot() Report {
	snap := r.telemetry.Snapshot()
	last, _ := snap.LastSequence()

	report := Report{
		Time:          time.Now(),
		Received:      snap.Received,
		Dropped:       snap.Dropped,
		NetworkLoss:   snap.NetworkLoss,
		OverflowDrops: snap.OverflowDrops,
		LossRate:      snap.LossRate(),
		MeanLatencyMs: snap.MeanLatency(),
		Occupancy:     r.buffer.Len(),
		Capacity:      r.buffer.Cap(),
		LastSequence:  last,
	}

	if r.playback != nil {
		report.State = r.playback.State().String()
		report.Played = r.playback.Played()
		report.WriteErrors = r.playback.WriteErrors()
	}

	return report
}

// Emit logs a report and passes it to the registered callbacks
func (r *Reporter) Emit(final bool) Report {
	report := r.Snapshot()
	report.Final = final

	if final {
		r.log.Infof("Final telemetry: %s", report)
	} else {
		r.log.Infof("Telemetry: %s", report)
	}

	r.mu.Lock()
	callbacks := append([]func(Report){}, r.callbacks...)
	r.mu.Unlock()

	for _, fn := range callbacks {
		fn(report)
	}

	return report
}

// Run emits a report every interval until ctx is cancelled
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Emit(false)
		}
	}
}
