// ABOUTME: Configuration for the pcmlink sender and receiver
// ABOUTME: Merges defaults, an optional YAML file and CLI flags, then validates
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Resonate-Protocol/pcmlink/pkg/audio"
	"github.com/Resonate-Protocol/pcmlink/pkg/audio/capture"
	"github.com/Resonate-Protocol/pcmlink/pkg/audio/output"
)

// ErrInvalid is wrapped by every validation error
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Audio     AudioConfig     `yaml:"audio"`
	Sender    SenderConfig    `yaml:"sender"`
	Receiver  ReceiverConfig  `yaml:"receiver"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	LogLevel  string          `yaml:"log_level"`
	LogFile   string          `yaml:"log_file"`
}

type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
	// FrameSize is samples per channel in each packet
	FrameSize int `yaml:"frame_size"`
}

type SenderConfig struct {
	// Destination is host:port; empty means find a receiver with mDNS
	Destination  string        `yaml:"destination"`
	Source       string        `yaml:"source"`
	File         string        `yaml:"file"`
	Loop         bool          `yaml:"loop"`
	ToneHz       float64       `yaml:"tone_hz"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	StatsEvery   time.Duration `yaml:"stats_interval"`
}

type ReceiverConfig struct {
	Listen        string        `yaml:"listen"`
	QueueSize     int           `yaml:"queue_size"`
	InitialBuffer int           `yaml:"initial_buffer"`
	PopTimeout    time.Duration `yaml:"pop_timeout"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	JoinTimeout   time.Duration `yaml:"join_timeout"`
	Output        string        `yaml:"output"`
	Volume        int           `yaml:"volume"`
}

type TelemetryConfig struct {
	ReportInterval time.Duration `yaml:"report_interval"`
}

type MonitorConfig struct {
	// Addr enables the HTTP monitor when set, e.g. ":9105"
	Addr string `yaml:"addr"`
}

type DiscoveryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`
}

var DefaultConfig = Config{
	Audio: AudioConfig{
		SampleRate: 44100,
		Channels:   2,
		FrameSize:  512,
	},
	Sender: SenderConfig{
		Source:       capture.KindTone,
		ToneHz:       capture.DefaultToneHz,
		WriteTimeout: 100 * time.Millisecond,
		StatsEvery:   5 * time.Second,
	},
	Receiver: ReceiverConfig{
		Listen:        "0.0.0.0:5005",
		QueueSize:     20,
		InitialBuffer: 5,
		PopTimeout:    100 * time.Millisecond,
		ReadTimeout:   250 * time.Millisecond,
		JoinTimeout:   2 * time.Second,
		Output:        output.KindOto,
		Volume:        100,
	},
	Telemetry: TelemetryConfig{
		ReportInterval: 5 * time.Second,
	},
	Discovery: DiscoveryConfig{
		Enabled: true,
	},
	LogLevel: "info",
}

// NewConfig parses confString over the defaults. In strict mode unknown
// keys are rejected.
func NewConfig(confString string, strictMode bool) (*Config, error) {
	conf := DefaultConfig

	if confString != "" {
		decoder := yaml.NewDecoder(strings.NewReader(confString))
		decoder.KnownFields(strictMode)
		if err := decoder.Decode(&conf); err != nil {
			return nil, fmt.Errorf("could not parse config: %w", err)
		}
	}

	return &conf, nil
}

// Load reads the YAML file at path over the defaults; an empty path yields
// the defaults
func Load(path string) (*Config, error) {
	confString, err := getConfigString(path)
	if err != nil {
		return nil, err
	}
	return NewConfig(confString, true)
}

func getConfigString(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("could not read config file: %w", err)
	}
	return string(content), nil
}

// Format returns the configured PCM format
func (conf *Config) Format() audio.Format {
	return audio.Format{
		SampleRate: conf.Audio.SampleRate,
		Channels:   conf.Audio.Channels,
		BitDepth:   16,
	}
}

// Validate checks the configuration; every error wraps ErrInvalid
func (conf *Config) Validate() error {
	a := conf.Audio
	if a.SampleRate <= 0 {
		return invalid("audio.sample_rate must be positive, got %d", a.SampleRate)
	}
	if a.Channels <= 0 {
		return invalid("audio.channels must be positive, got %d", a.Channels)
	}
	if a.FrameSize <= 0 {
		return invalid("audio.frame_size must be positive, got %d", a.FrameSize)
	}

	r := conf.Receiver
	if r.QueueSize < 1 {
		return invalid("receiver.queue_size must be at least 1, got %d", r.QueueSize)
	}
	if r.InitialBuffer < 1 || r.InitialBuffer > r.QueueSize {
		return invalid("receiver.initial_buffer must be between 1 and queue_size (%d), got %d", r.QueueSize, r.InitialBuffer)
	}
	if r.Volume < 0 || r.Volume > 100 {
		return invalid("receiver.volume must be 0-100, got %d", r.Volume)
	}
	switch r.Output {
	case output.KindOto, output.KindMalgo, output.KindNone:
	default:
		return invalid("unknown receiver.output %q", r.Output)
	}

	s := conf.Sender
	switch s.Source {
	case capture.KindTone, capture.KindDevice:
	case capture.KindFile:
		if s.File == "" {
			return invalid("sender.file is required for the file source")
		}
	default:
		return invalid("unknown sender.source %q", s.Source)
	}

	if _, err := logrus.ParseLevel(conf.LogLevel); err != nil {
		return invalid("%v", err)
	}

	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
