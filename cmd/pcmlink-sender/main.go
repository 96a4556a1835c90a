// ABOUTME: Entry point for the pcmlink sender
// ABOUTME: Captures audio and streams it as sequenced UDP packets to a receiver
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/Resonate-Protocol/pcmlink/internal/config"
	"github.com/Resonate-Protocol/pcmlink/internal/discovery"
	"github.com/Resonate-Protocol/pcmlink/internal/logging"
	"github.com/Resonate-Protocol/pcmlink/internal/version"
	"github.com/Resonate-Protocol/pcmlink/pkg/audio/capture"
	"github.com/Resonate-Protocol/pcmlink/pkg/pcmlink"
)

// discoveryTimeout bounds the mDNS search when no destination is given
const discoveryTimeout = 10 * time.Second

func main() {
	app := &cli.App{
		Name:    "pcmlink-sender",
		Usage:   "capture audio and stream it as raw PCM over UDP",
		Version: version.Version,
		Flags:   append(append([]cli.Flag{}, config.CommonFlags...), config.SenderFlags...),
		Action:  runSender,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSender(c *cli.Context) error {
	conf, err := config.FromCLI(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	logCloser, err := logging.Setup(logging.Options{
		Level:   conf.LogLevel,
		File:    conf.LogFile,
		Console: true,
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer logCloser.Close()

	log := logrus.WithField("component", "main")
	format := conf.Format()

	log.Infof("Starting %s sender", version.String())

	src, err := capture.Open(capture.Options{
		Kind:   conf.Sender.Source,
		Format: format,
		Path:   conf.Sender.File,
		Loop:   conf.Sender.Loop,
		ToneHz: conf.Sender.ToneHz,
	})
	if err != nil {
		log.Errorf("Failed to open capture source: %v", err)
		return cli.Exit(fmt.Sprintf("failed to open capture source: %v", err), 1)
	}
	defer src.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// A device read blocks until audio arrives; closing it unblocks Run
	if conf.Sender.Source == capture.KindDevice {
		stop := context.AfterFunc(ctx, func() { _ = src.Close() })
		defer stop()
	}

	destination := conf.Sender.Destination
	if destination == "" {
		destination, err = discoverReceiver(ctx, conf)
		if err != nil {
			log.Errorf("%v", err)
			return cli.Exit(err.Error(), 1)
		}
	}

	sender, err := pcmlink.Dial(destination, src, pcmlink.SenderConfig{
		FrameSize:    conf.Audio.FrameSize,
		WriteTimeout: conf.Sender.WriteTimeout,
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer sender.Close()

	go statsLoop(ctx, sender, conf.Sender.StatsEvery)

	if err := sender.Run(ctx); err != nil {
		log.Errorf("Sender stopped: %v", err)
		return cli.Exit(err.Error(), 1)
	}

	stats := sender.Stats()
	log.Infof("Sender stopped: %d frames sent, %d send errors", stats.FramesSent, stats.SendErrors)
	return nil
}

// discoverReceiver finds a receiver with mDNS and warns about format mismatches
func discoverReceiver(ctx context.Context, conf *config.Config) (string, error) {
	if !conf.Discovery.Enabled {
		return "", fmt.Errorf("no destination given and discovery is disabled")
	}

	log := logrus.WithField("component", "main")
	log.Info("Starting receiver discovery...")

	findCtx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()

	receiver, err := discovery.FindReceiver(findCtx, discovery.Config{})
	if err != nil {
		return "", err
	}

	if err := receiver.CheckFormat(conf.Format(), conf.Audio.FrameSize); err != nil {
		log.Warnf("%v", err)
	}

	log.Infof("Discovered receiver %s at %s", receiver.Name, receiver.Addr())
	return receiver.Addr(), nil
}

// statsLoop logs sender counters periodically
func statsLoop(ctx context.Context, sender *pcmlink.Sender, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := logrus.WithField("component", "sender")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := sender.Stats()
			log.Infof("Sent %d frames, %d send errors, next sequence %d", stats.FramesSent, stats.SendErrors, stats.NextSequence)
		}
	}
}
