// ABOUTME: CLI flags for the pcmlink commands
// ABOUTME: Flags override values loaded from the config file
package config

import (
	"github.com/urfave/cli/v2"
)

// CommonFlags are shared by the sender and receiver
var CommonFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "path to pcmlink config file",
		EnvVars: []string{"PCMLINK_CONFIG"},
	},
	&cli.IntFlag{
		Name:    "sample-rate",
		Usage:   "sample rate in Hz",
		EnvVars: []string{"PCMLINK_SAMPLE_RATE"},
	},
	&cli.IntFlag{
		Name:    "channels",
		Usage:   "channel count",
		EnvVars: []string{"PCMLINK_CHANNELS"},
	},
	&cli.IntFlag{
		Name:    "frame-size",
		Usage:   "samples per channel in each packet",
		EnvVars: []string{"PCMLINK_FRAME_SIZE"},
	},
	&cli.StringFlag{
		Name:    "log-level",
		Usage:   "debug, info, warn or error",
		EnvVars: []string{"PCMLINK_LOG_LEVEL"},
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "also write logs to this file",
		EnvVars: []string{"PCMLINK_LOG_FILE"},
	},
	&cli.BoolFlag{
		Name:  "no-discovery",
		Usage: "disable mDNS",
	},
}

// ReceiverFlags configure the receiver command
var ReceiverFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "listen",
		Usage:   "UDP address to receive on",
		EnvVars: []string{"PCMLINK_LISTEN"},
	},
	&cli.IntFlag{
		Name:    "queue-size",
		Usage:   "jitter buffer capacity in frames",
		EnvVars: []string{"PCMLINK_QUEUE_SIZE"},
	},
	&cli.IntFlag{
		Name:    "initial-buffer",
		Usage:   "frames buffered before playback starts",
		EnvVars: []string{"PCMLINK_INITIAL_BUFFER"},
	},
	&cli.StringFlag{
		Name:    "output",
		Usage:   "playback backend: oto, malgo or none",
		EnvVars: []string{"PCMLINK_OUTPUT"},
	},
	&cli.IntFlag{
		Name:    "volume",
		Usage:   "initial volume (0-100)",
		EnvVars: []string{"PCMLINK_VOLUME"},
	},
	&cli.DurationFlag{
		Name:    "report-interval",
		Usage:   "telemetry report interval",
		EnvVars: []string{"PCMLINK_REPORT_INTERVAL"},
	},
	&cli.StringFlag{
		Name:    "monitor",
		Usage:   "HTTP address for /metrics and /telemetry, e.g. :9105",
		EnvVars: []string{"PCMLINK_MONITOR"},
	},
	&cli.StringFlag{
		Name:    "name",
		Usage:   "receiver name advertised over mDNS (default: hostname-pcmlink)",
		EnvVars: []string{"PCMLINK_NAME"},
	},
	&cli.BoolFlag{
		Name:  "no-tui",
		Usage: "disable TUI, use streaming logs instead",
	},
}

// SenderFlags configure the sender command
var SenderFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "destination",
		Aliases: []string{"d"},
		Usage:   "receiver host:port (default: discover with mDNS)",
		EnvVars: []string{"PCMLINK_DESTINATION"},
	},
	&cli.StringFlag{
		Name:    "source",
		Usage:   "capture source: tone, file or device",
		EnvVars: []string{"PCMLINK_SOURCE"},
	},
	&cli.StringFlag{
		Name:    "file",
		Usage:   "audio file for the file source (mp3, flac, raw)",
		EnvVars: []string{"PCMLINK_FILE"},
	},
	&cli.BoolFlag{
		Name:  "loop",
		Usage: "restart the file when it ends",
	},
	&cli.Float64Flag{
		Name:  "tone-hz",
		Usage: "test tone frequency",
	},
}

// UpdateFromCLI applies every flag explicitly set on c
func (conf *Config) UpdateFromCLI(c *cli.Context) {
	if c.IsSet("sample-rate") {
		conf.Audio.SampleRate = c.Int("sample-rate")
	}
	if c.IsSet("channels") {
		conf.Audio.Channels = c.Int("channels")
	}
	if c.IsSet("frame-size") {
		conf.Audio.FrameSize = c.Int("frame-size")
	}
	if c.IsSet("log-level") {
		conf.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-file") {
		conf.LogFile = c.String("log-file")
	}
	if c.IsSet("no-discovery") {
		conf.Discovery.Enabled = !c.Bool("no-discovery")
	}

	if c.IsSet("listen") {
		conf.Receiver.Listen = c.String("listen")
	}
	if c.IsSet("queue-size") {
		conf.Receiver.QueueSize = c.Int("queue-size")
	}
	if c.IsSet("initial-buffer") {
		conf.Receiver.InitialBuffer = c.Int("initial-buffer")
	}
	if c.IsSet("output") {
		conf.Receiver.Output = c.String("output")
	}
	if c.IsSet("volume") {
		conf.Receiver.Volume = c.Int("volume")
	}
	if c.IsSet("report-interval") {
		conf.Telemetry.ReportInterval = c.Duration("report-interval")
	}
	if c.IsSet("monitor") {
		conf.Monitor.Addr = c.String("monitor")
	}
	if c.IsSet("name") {
		conf.Discovery.Name = c.String("name")
	}

	if c.IsSet("destination") {
		conf.Sender.Destination = c.String("destination")
	}
	if c.IsSet("source") {
		conf.Sender.Source = c.String("source")
	}
	if c.IsSet("file") {
		conf.Sender.File = c.String("file")
	}
	if c.IsSet("loop") {
		conf.Sender.Loop = c.Bool("loop")
	}
	if c.IsSet("tone-hz") {
		conf.Sender.ToneHz = c.Float64("tone-hz")
	}
}

// FromCLI loads the file named by --config and applies the flags over it
func FromCLI(c *cli.Context) (*Config, error) {
	conf, err := Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	conf.UpdateFromCLI(c)
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}
