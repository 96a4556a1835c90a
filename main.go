// ABOUTME: Entry point for the pcmlink receiver
// ABOUTME: Parses config and flags, then receives and plays a UDP PCM stream
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/Resonate-Protocol/pcmlink/internal/config"
	"github.com/Resonate-Protocol/pcmlink/internal/discovery"
	"github.com/Resonate-Protocol/pcmlink/internal/logging"
	"github.com/Resonate-Protocol/pcmlink/internal/monitor"
	"github.com/Resonate-Protocol/pcmlink/internal/ui"
	"github.com/Resonate-Protocol/pcmlink/internal/version"
	"github.com/Resonate-Protocol/pcmlink/pkg/audio/output"
	"github.com/Resonate-Protocol/pcmlink/pkg/pcmlink"
)

func main() {
	app := &cli.App{
		Name:    "pcmlink",
		Usage:   "receive and play a raw PCM audio stream over UDP",
		Version: version.Version,
		Flags:   append(append([]cli.Flag{}, config.CommonFlags...), config.ReceiverFlags...),
		Action:  runReceiver,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runReceiver(c *cli.Context) error {
	conf, err := config.FromCLI(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	// Determine if we should use TUI or streaming logs
	useTUI := !c.Bool("no-tui")
	if useTUI && conf.LogFile == "" {
		conf.LogFile = "pcmlink.log"
	}

	logCloser, err := logging.Setup(logging.Options{
		Level:   conf.LogLevel,
		File:    conf.LogFile,
		Console: !useTUI,
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer logCloser.Close()

	log := logrus.WithField("component", "main")
	format := conf.Format()
	name := receiverName(conf.Discovery.Name)

	log.Infof("Starting %s receiver: %s", version.String(), name)

	sink, err := output.Open(conf.Receiver.Output, format)
	if err != nil {
		log.Errorf("Failed to open audio output: %v", err)
		return cli.Exit(fmt.Sprintf("failed to open audio output: %v", err), 1)
	}
	volume, hasVolume := sink.(output.VolumeControl)
	if hasVolume {
		volume.SetVolume(conf.Receiver.Volume)
	}

	session, err := pcmlink.NewSession(pcmlink.SessionConfig{
		Listen:         conf.Receiver.Listen,
		QueueSize:      conf.Receiver.QueueSize,
		InitialBuffer:  conf.Receiver.InitialBuffer,
		PopTimeout:     conf.Receiver.PopTimeout,
		ReadTimeout:    conf.Receiver.ReadTimeout,
		JoinTimeout:    conf.Receiver.JoinTimeout,
		ReportInterval: conf.Telemetry.ReportInterval,
	}, sink)
	if err != nil {
		_ = sink.Close()
		log.Errorf("Failed to start session: %v", err)
		return cli.Exit(err.Error(), 1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if conf.Discovery.Enabled {
		disc := discovery.NewManager(discovery.Config{
			ServiceName: name,
			Port:        session.Addr().(*net.UDPAddr).Port,
			Format:      format,
			FrameSize:   conf.Audio.FrameSize,
			SessionID:   uuid.New().String(),
		})
		if err := disc.Advertise(); err != nil {
			log.Warnf("mDNS advertisement failed: %v", err)
		}
		defer disc.Stop()
	}

	if conf.Monitor.Addr != "" {
		mon := monitor.New(session.Reporter())
		if err := mon.Start(conf.Monitor.Addr); err != nil {
			log.Warnf("Monitor disabled: %v", err)
		} else {
			session.Reporter().OnReport(mon.Publish)
			defer func() {
				stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer stopCancel()
				_ = mon.Stop(stopCtx)
			}()
		}
	}

	var tuiProg *tea.Program
	if useTUI {
		volumeCtrl := ui.NewVolumeControl()
		tuiProg, err = ui.Run(volumeCtrl, ui.Info{
			Name:   name,
			Listen: session.Addr().String(),
			Format: format.String(),
			Volume: conf.Receiver.Volume,
		})
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to start TUI: %v", err), 1)
		}

		// callbacks run on the playback and reporter goroutines
		fwd := ui.NewForwarder(16)
		fwdCtx, stopFwd := context.WithCancel(context.Background())
		defer stopFwd()
		go fwd.Run(fwdCtx, tuiProg.Send)

		session.Playback().OnStateChange(func(s pcmlink.PlaybackState) {
			fwd.Post(ui.StateMsg(s))
		})
		session.Reporter().OnReport(func(r pcmlink.Report) {
			fwd.Post(ui.ReportMsg(r))
		})

		go func() {
			if _, err := tuiProg.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
			}
			cancel()
		}()
		go handleVolumeControl(ctx, volume, volumeCtrl, cancel)
		go statsUpdateLoop(ctx, session.Reporter(), fwd)
	}

	err = session.Run(ctx)

	if tuiProg != nil {
		tuiProg.Quit()
		tuiProg.Wait()
	}

	if err != nil {
		log.Errorf("Session error: %v", err)
		return cli.Exit(err.Error(), 1)
	}

	log.Info("Receiver stopped")
	return nil
}

// receiverName returns the configured name or hostname-pcmlink
func receiverName(name string) string {
	if name != "" {
		return name
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-pcmlink", hostname)
}

// handleVolumeControl processes volume changes from TUI
func handleVolumeControl(ctx context.Context, volume output.VolumeControl, volumeCtrl *ui.VolumeControl, quit context.CancelFunc) {
	for {
		select {
		case vol := <-volumeCtrl.Changes:
			logrus.WithField("component", "main").Infof("Volume change: %d%%, muted=%v", vol.Volume, vol.Muted)
			if volume != nil {
				volume.SetVolume(vol.Volume)
				volume.SetMuted(vol.Muted)
			}
		case <-volumeCtrl.Quit:
			logrus.WithField("component", "main").Info("Received quit signal from TUI")
			quit()
			return
		case <-ctx.Done():
			return
		}
	}
}

// statsUpdateLoop refreshes the TUI between telemetry reports
func statsUpdateLoop(ctx context.Context, reporter *pcmlink.Reporter, fwd *ui.Forwarder) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fwd.Post(ui.ReportMsg(reporter.Snapshot()))
		}
	}
}
