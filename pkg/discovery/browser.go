package discovery

import (
	"context"
	"net"
	"strings"

	"github.com/enbility/zeroconf/v3"
)

// Browser discovers hubs via mDNS.
type Browser struct {
	config BrowserConfig
}

// NewBrowser creates a new mDNS browser.
func NewBrowser(config BrowserConfig) *Browser {
	return &Browser{config: config}
}

// Browse searches for hubs until ctx is cancelled. Announcements are
// aggregated by instance name: addresses seen on multiple interfaces
// are combined into a single entry, and each hub is emitted once.
func (b *Browser) Browse(ctx context.Context) (<-chan *HubService, error) {
	out := make(chan *HubService)

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	opts := b.browserOptions()

	go func() {
		defer close(out)

		services := make(map[string]*HubService)

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := entryToHub(entry)
				if svc == nil {
					continue
				}

				existing, found := services[svc.InstanceName]
				if found {
					existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
				} else {
					services[svc.InstanceName] = svc
					select {
					case out <- svc:
					case <-ctx.Done():
						return
					}
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				if existing, found := services[entry.Instance]; found {
					existing.Addresses = removeAddresses(existing.Addresses, entry)
					if len(existing.Addresses) == 0 {
						delete(services, entry.Instance)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, opts...)
	}()

	return out, nil
}

// FindBySerial browses until a hub with the given serial appears.
func (b *Browser) FindBySerial(ctx context.Context, serial string) (*HubService, error) {
	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case svc, ok := <-results:
			if !ok {
				return nil, ErrNotFound
			}
			if strings.EqualFold(svc.Serial, serial) {
				return svc, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// browserOptions returns zeroconf client options based on config.
func (b *Browser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}

	return opts
}

// entryToHub converts a zeroconf entry to a HubService. Entries whose
// serial cannot be determined are dropped.
func entryToHub(entry *zeroconf.ServiceEntry) *HubService {
	txt := parseTXT(entry.Text)

	serial := txt[TXTKeySerial]
	if serial == "" {
		serial = serialFromInstance(entry.Instance)
	}
	if serial == "" {
		return nil
	}

	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	return &HubService{
		InstanceName: entry.Instance,
		Serial:       serial,
		Host:         entry.HostName,
		Port:         uint16(entry.Port),
		Addresses:    addrs,
		Model:        txt[TXTKeyModel],
		Architecture: txt[TXTKeyArchitecture],
		Firmware:     txt[TXTKeyFirmware],
	}
}

// serialFromInstance extracts the serial from the instance name forms
// hubs actually announce: "ezlo.<serial>" and "HUB<serial>".
func serialFromInstance(instance string) string {
	lower := strings.ToLower(instance)
	switch {
	case strings.HasPrefix(lower, "ezlo."):
		return instance[len("ezlo."):]
	case strings.HasPrefix(lower, "hub"):
		return instance[len("hub"):]
	}
	return ""
}

// parseTXT splits "key=value" TXT strings into a map. Entries without
// an "=" are kept as flag keys with an empty value.
func parseTXT(text []string) map[string]string {
	txt := make(map[string]string, len(text))
	for _, s := range text {
		if s == "" {
			continue
		}
		key, value, _ := strings.Cut(s, "=")
		txt[key] = value
	}
	return txt
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, new []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}

	for _, addr := range new {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses removes addresses from a zeroconf entry from the list.
func removeAddresses(addresses []string, entry *zeroconf.ServiceEntry) []string {
	toRemove := make(map[string]bool)
	for _, ip := range entry.AddrIPv4 {
		toRemove[ip.String()] = true
	}
	for _, ip := range entry.AddrIPv6 {
		toRemove[ip.String()] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}
