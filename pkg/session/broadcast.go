package session

import (
	"encoding/json"
	"time"

	"github.com/ezlo-protocol/ezlo-go/pkg/auth"
	"github.com/ezlo-protocol/ezlo-go/pkg/event"
	"github.com/ezlo-protocol/ezlo-go/pkg/inventory"
	"github.com/ezlo-protocol/ezlo-go/pkg/log"
	"github.com/ezlo-protocol/ezlo-go/pkg/transport"
	"github.com/ezlo-protocol/ezlo-go/pkg/wire"
)

// dispatchBroadcast routes a hub push frame by subclass. Unknown
// subclasses are logged and dropped; new firmware adds them freely.
func (c *Controller) dispatchBroadcast(env *wire.Envelope) {
	c.logBroadcast(env)

	switch env.Subclass() {
	case wire.SubclassModeSwitched:
		// Payload shape: {"from":"1","status":"done","switchToDelay":0,"to":"3"}.
		var result struct {
			Status string          `json:"status"`
			To     json.RawMessage `json:"to"`
		}
		if err := env.DecodeResult(&result); err != nil {
			c.logError("mode broadcast", err)
			return
		}
		c.store.ApplyModeSwitch(result.Status, rawToString(result.To))

	case wire.SubclassDeviceAdded:
		var d inventory.Device
		if err := env.DecodeResult(&d); err != nil {
			c.logError("device broadcast", err)
			return
		}
		c.store.AddDevice(d)

	case wire.SubclassDeviceUpdated:
		var fields map[string]json.RawMessage
		if err := env.DecodeResult(&fields); err != nil {
			c.logError("device broadcast", err)
			return
		}
		c.store.ApplyDeviceDelta(fields)

	case wire.SubclassItemAdded:
		var it inventory.Item
		if err := env.DecodeResult(&it); err != nil {
			c.logError("item broadcast", err)
			return
		}
		c.store.AddItem(it)

	case wire.SubclassItemUpdated:
		var fields map[string]json.RawMessage
		if err := env.DecodeResult(&fields); err != nil {
			c.logError("item broadcast", err)
			return
		}
		if _, ok := c.store.ApplyItemDelta(fields); !ok {
			// Items can be pushed before they ever appear in a list.
			var it inventory.Item
			if err := env.DecodeResult(&it); err == nil && it.ID != "" {
				c.store.AddItem(it)
			}
		}

	case wire.SubclassGatewayUpdated:
		var result struct {
			Status string `json:"status"`
		}
		if err := env.DecodeResult(&result); err != nil {
			c.logError("gateway broadcast", err)
			return
		}
		c.publish(event.Event{Kind: event.KindHubStatusChanged, Status: result.Status})

	case wire.SubclassStateChanged:
		// Only the relay sends this: the cloud noticed the hub went
		// away. Close gracefully and let the reconnect path take over.
		if c.mode != auth.ModeRemote {
			return
		}
		var result struct {
			Status string `json:"status"`
		}
		if err := env.DecodeResult(&result); err != nil {
			c.logError("state broadcast", err)
			return
		}
		if result.Status == "disconnected" {
			go func() {
				c.mu.Lock()
				tc := c.transport
				c.mu.Unlock()
				if tc != nil {
					_ = tc.Close(transport.CloseGoingAway, "hub offline")
				}
			}()
		}
	}
}

// rawToString renders a JSON scalar (string or number) as its string
// form.
func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

func (c *Controller) logBroadcast(env *wire.Envelope) {
	c.mu.Lock()
	connID := c.connID
	c.mu.Unlock()
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Serial:       c.cfg.Serial,
		Message: &log.MessageEvent{
			Type:     log.MessageTypeBroadcast,
			Method:   env.Method,
			Subclass: env.Subclass(),
		},
	})
}
