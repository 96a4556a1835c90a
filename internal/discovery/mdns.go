// ABOUTME: mDNS service discovery for pcmlink receivers
// ABOUTME: Receivers advertise their UDP port and format; senders browse for them
package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/sirupsen/logrus"

	"github.com/Resonate-Protocol/pcmlink/pkg/audio"
)

// ServiceType is the mDNS service advertised by receivers
const ServiceType = "_pcmlink._udp"

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	Format      audio.Format
	FrameSize   int
	SessionID   string

	// BrowseTimeout is the length of each mDNS query (default: 3s)
	BrowseTimeout time.Duration
}

// Manager handles mDNS operations
type Manager struct {
	config    Config
	ctx       context.Context
	cancel    context.CancelFunc
	receivers chan *ReceiverInfo
	log       *logrus.Entry
}

// ReceiverInfo describes a discovered receiver
type ReceiverInfo struct {
	Name      string
	Host      string
	Port      int
	Format    audio.Format
	FrameSize int
	SessionID string
}

// Addr returns the receiver's UDP address
func (r *ReceiverInfo) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// CheckFormat reports a mismatch between the advertised format and the
// sender's. Fields the receiver did not advertise are not compared.
func (r *ReceiverInfo) CheckFormat(format audio.Format, frameSize int) error {
	var diffs []string
	if r.Format.SampleRate != 0 && r.Format.SampleRate != format.SampleRate {
		diffs = append(diffs, fmt.Sprintf("rate %d != %d", r.Format.SampleRate, format.SampleRate))
	}
	if r.Format.Channels != 0 && r.Format.Channels != format.Channels {
		diffs = append(diffs, fmt.Sprintf("channels %d != %d", r.Format.Channels, format.Channels))
	}
	if r.FrameSize != 0 && r.FrameSize != frameSize {
		diffs = append(diffs, fmt.Sprintf("frame %d != %d", r.FrameSize, frameSize))
	}
	if len(diffs) > 0 {
		return fmt.Errorf("receiver %s expects different audio: %s", r.Name, strings.Join(diffs, ", "))
	}
	return nil
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = 3 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:    config,
		ctx:       ctx,
		cancel:    cancel,
		receivers: make(chan *ReceiverInfo, 10),
		log:       logrus.WithField("component", "discovery"),
	}
}

// Advertise advertises this receiver via mDNS
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		txtRecords(m.config),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.log.Infof("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		_ = server.Shutdown()
	}()

	return nil
}

// Browse searches for receivers in the background
func (m *Manager) Browse() {
	go m.browseLoop()
}

// browseLoop continuously browses for receivers
func (m *Manager) browseLoop() {
	for m.ctx.Err() == nil {
		entries := make(chan *mdns.ServiceEntry, 10)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				if !strings.Contains(entry.Name, ServiceType) || entry.AddrV4 == nil {
					continue
				}

				receiver := entryToReceiver(entry)
				m.log.Infof("Discovered receiver: %s at %s", receiver.Name, receiver.Addr())

				select {
				case m.receivers <- receiver:
				case <-m.ctx.Done():
				}
			}
		}()

		params := &mdns.QueryParam{
			Service: ServiceType,
			Domain:  "local",
			Timeout: m.config.BrowseTimeout,
			Entries: entries,
		}

		err := mdns.Query(params)
		close(entries)
		<-done

		if err != nil {
			m.log.Debugf("mDNS query failed: %v", err)
			select {
			case <-m.ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// Receivers returns the channel of discovered receivers
func (m *Manager) Receivers() <-chan *ReceiverInfo {
	return m.receivers
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

// FindReceiver browses until the first receiver is found or ctx ends
func FindReceiver(ctx context.Context, config Config) (*ReceiverInfo, error) {
	m := NewManager(config)
	defer m.Stop()

	m.Browse()

	select {
	case receiver := <-m.Receivers():
		return receiver, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("no %s receiver found: %w", ServiceType, ctx.Err())
	}
}

// txtRecords describes the stream format for senders
func txtRecords(config Config) []string {
	txt := []string{
		fmt.Sprintf("rate=%d", config.Format.SampleRate),
		fmt.Sprintf("channels=%d", config.Format.Channels),
		fmt.Sprintf("frame=%d", config.FrameSize),
	}
	if config.SessionID != "" {
		txt = append(txt, "session="+config.SessionID)
	}
	return txt
}

func entryToReceiver(entry *mdns.ServiceEntry) *ReceiverInfo {
	receiver := &ReceiverInfo{
		Name: strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Host: entry.AddrV4.String(),
		Port: entry.Port,
	}
	parseTXT(receiver, entry.InfoFields)
	return receiver
}

// parseTXT fills receiver fields from key=value records; unknown or
// malformed records are ignored
func parseTXT(receiver *ReceiverInfo, fields []string) {
	for _, field := range fields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "rate":
			receiver.Format.SampleRate, _ = strconv.Atoi(value)
		case "channels":
			receiver.Format.Channels, _ = strconv.Atoi(value)
		case "frame":
			receiver.FrameSize, _ = strconv.Atoi(value)
		case "session":
			receiver.SessionID = value
		}
	}
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
