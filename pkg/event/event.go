package event

import (
	"time"

	"github.com/ezlo-protocol/ezlo-go/pkg/inventory"
)

// Kind identifies an event type.
type Kind int

const (
	// KindOnline fires when the session reaches the connected state
	// with a synced inventory.
	KindOnline Kind = iota + 1

	// KindOffline fires when the connection is lost or the session
	// stops.
	KindOffline

	// KindDeviceUpdated fires when a device is added or changed.
	KindDeviceUpdated

	// KindItemUpdated fires when an item is added or changed.
	KindItemUpdated

	// KindModeChanging fires when a house mode switch begins.
	KindModeChanging

	// KindModeChanged fires when a house mode switch completes.
	KindModeChanged

	// KindModeChangeCanceled fires when a pending switch is canceled.
	KindModeChangeCanceled

	// KindHubStatusChanged fires when the hub reports a gateway status
	// change, typically at the end of a firmware sync.
	KindHubStatusChanged
)

// String returns the event kind name.
func (k Kind) String() string {
	switch k {
	case KindOnline:
		return "online"
	case KindOffline:
		return "offline"
	case KindDeviceUpdated:
		return "device-updated"
	case KindItemUpdated:
		return "item-updated"
	case KindModeChanging:
		return "mode-changing"
	case KindModeChanged:
		return "mode-changed"
	case KindModeChangeCanceled:
		return "mode-change-canceled"
	case KindHubStatusChanged:
		return "hub-status-changed"
	default:
		return "unknown"
	}
}

// Event is one session notification. The payload fields are set
// according to Kind; unrelated fields are zero.
type Event struct {
	Kind      Kind
	Timestamp time.Time

	// Serial identifies the hub, set on every event once known.
	Serial string

	// Device is set for KindDeviceUpdated.
	Device *inventory.Device

	// Item is set for KindItemUpdated.
	Item *inventory.Item

	// Mode is the switch target for KindModeChanging and the active
	// mode for KindModeChanged and KindModeChangeCanceled.
	Mode *inventory.Mode

	// PreviousMode is set for KindModeChanging.
	PreviousMode *inventory.Mode

	// Status carries the gateway status for KindHubStatusChanged and
	// the close reason for KindOffline.
	Status string
}
