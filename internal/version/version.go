// ABOUTME: Version and product identification
// ABOUTME: Version is overridden at build time with -ldflags
package version

// Version is the release version, set with
// -ldflags "-X github.com/Resonate-Protocol/pcmlink/internal/version.Version=1.2.3"
var Version = "0.1.0"

const (
	// Product is the product name shown in logs, the TUI and mDNS
	Product = "pcmlink"

	// Manufacturer identifies the publisher
	Manufacturer = "Resonate"
)

// String returns "product version"
func String() string {
	return Product + " " + Version
}
