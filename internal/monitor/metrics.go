// ABOUTME: Prometheus collector for receiver telemetry
// ABOUTME: Reads one report per scrape and exposes it as const metrics
package monitor

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Resonate-Protocol/pcmlink/pkg/pcmlink"
)

// ReportSource produces telemetry reports without side effects
type ReportSource interface {
	Snapshot() pcmlink.Report
}

var (
	receivedDesc = prometheus.NewDesc(
		"pcmlink_packets_received_total",
		"Total number of audio packets decoded",
		nil, nil,
	)
	droppedDesc = prometheus.NewDesc(
		"pcmlink_packets_dropped_total",
		"Total number of audio packets lost, by cause",
		[]string{"reason"}, nil,
	)
	lossRatioDesc = prometheus.NewDesc(
		"pcmlink_loss_ratio",
		"Dropped packets over received plus dropped",
		nil, nil,
	)
	latencyDesc = prometheus.NewDesc(
		"pcmlink_latency_seconds",
		"Mean one-way latency of recent packets",
		nil, nil,
	)
	occupancyDesc = prometheus.NewDesc(
		"pcmlink_jitter_buffer_frames",
		"Frames currently queued in the jitter buffer",
		nil, nil,
	)
	capacityDesc = prometheus.NewDesc(
		"pcmlink_jitter_buffer_capacity_frames",
		"Jitter buffer capacity",
		nil, nil,
	)
	playedDesc = prometheus.NewDesc(
		"pcmlink_frames_played_total",
		"Total number of frames written to the output",
		nil, nil,
	)
	writeErrorsDesc = prometheus.NewDesc(
		"pcmlink_output_write_errors_total",
		"Total number of failed output writes",
		nil, nil,
	)
)

type collector struct {
	source ReportSource
}

// NewCollector exposes source as Prometheus metrics
func NewCollector(source ReportSource) prometheus.Collector {
	return &collector{source: source}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- receivedDesc
	ch <- droppedDesc
	ch <- lossRatioDesc
	ch <- latencyDesc
	ch <- occupancyDesc
	ch <- capacityDesc
	ch <- playedDesc
	ch <- writeErrorsDesc
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	r := c.source.Snapshot()

	ch <- prometheus.MustNewConstMetric(receivedDesc, prometheus.CounterValue, float64(r.Received))
	ch <- prometheus.MustNewConstMetric(droppedDesc, prometheus.CounterValue, float64(r.NetworkLoss), "network")
	ch <- prometheus.MustNewConstMetric(droppedDesc, prometheus.CounterValue, float64(r.OverflowDrops), "overflow")
	ch <- prometheus.MustNewConstMetric(lossRatioDesc, prometheus.GaugeValue, r.LossRate)
	ch <- prometheus.MustNewConstMetric(latencyDesc, prometheus.GaugeValue, r.MeanLatencyMs/1000)
	ch <- prometheus.MustNewConstMetric(occupancyDesc, prometheus.GaugeValue, float64(r.Occupancy))
	ch <- prometheus.MustNewConstMetric(capacityDesc, prometheus.GaugeValue, float64(r.Capacity))
	ch <- prometheus.MustNewConstMetric(playedDesc, prometheus.CounterValue, float64(r.Played))
	ch <- prometheus.MustNewConstMetric(writeErrorsDesc, prometheus.CounterValue, float64(r.WriteErrors))
}
