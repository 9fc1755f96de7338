package discovery

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ServiceType is the DNS-SD service hubs announce themselves under.
	ServiceType = "_ezlo._tcp"

	// Domain is the mDNS domain to browse.
	Domain = "local."
)

// TXT record keys published by newer hub firmware.
const (
	TXTKeySerial       = "serial"
	TXTKeyModel        = "model"
	TXTKeyArchitecture = "arch"
	TXTKeyFirmware     = "fw"
)

// ErrNotFound is returned when browsing ends without a match.
var ErrNotFound = errors.New("discovery: hub not found")

// HubService describes one discovered hub.
type HubService struct {
	// InstanceName is the raw mDNS instance name.
	InstanceName string

	// Serial is the hub serial number, taken from the TXT records or
	// derived from the instance name.
	Serial string

	// Host is the announced hostname, usually "<something>.local.".
	Host string

	// Port the hub listens on for WebSocket connections.
	Port uint16

	// Addresses holds all IPv4 and IPv6 addresses seen for this hub,
	// merged across interfaces.
	Addresses []string

	// Model and Architecture come from TXT records and may be empty.
	Model        string
	Architecture string
	Firmware     string
}

// Endpoint returns a wss:// URL for the hub's first address, or the
// empty string when no address has been resolved yet.
func (s *HubService) Endpoint() string {
	if len(s.Addresses) == 0 {
		return ""
	}
	addr := s.Addresses[0]
	if strings.Contains(addr, ":") {
		// IPv6 literals need brackets in a URL.
		addr = "[" + addr + "]"
	}
	return fmt.Sprintf("wss://%s:%d", addr, s.Port)
}

// BrowserConfig configures a Browser.
type BrowserConfig struct {
	// Interface restricts browsing to one named network interface.
	// Empty means all interfaces.
	Interface string
}
