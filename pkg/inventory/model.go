package inventory

import (
	"encoding/json"
	"fmt"
)

// Item value types with dedicated coercion rules. Anything else is
// handled by the generic rule in CoerceValue.
const (
	ValueTypeInt    = "int"
	ValueTypeFloat  = "float"
	ValueTypeBool   = "bool"
	ValueTypeString = "string"
	ValueTypeToken  = "token"
)

// HubInfo is the hub identity reported by hub.info.get.
type HubInfo struct {
	Serial       string          `json:"serial"`
	Model        string          `json:"model"`
	Architecture string          `json:"architecture"`
	Firmware     string          `json:"firmware"`
	Extra        json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps the full reply alongside the typed fields so
// diagnostics can show what the hub actually sent. Serials arrive as
// strings on current firmware and numbers on some older builds.
func (h *HubInfo) UnmarshalJSON(data []byte) error {
	var p struct {
		Serial       flexString `json:"serial"`
		Model        string     `json:"model"`
		Architecture string     `json:"architecture"`
		Firmware     string     `json:"firmware"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	h.Serial = string(p.Serial)
	h.Model = p.Model
	h.Architecture = p.Architecture
	h.Firmware = p.Firmware
	h.Extra = append(json.RawMessage(nil), data...)
	return nil
}

// Serial values come back as strings on most firmware and as numbers
// on some older builds.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

// Device is one hub device. Extra carries fields this client has no
// typed use for, preserved verbatim for callers that want them.
type Device struct {
	ID             string
	Name           string
	Type           string
	Category       string
	Subcategory    string
	GatewayID      string
	RoomID         string
	BatteryPowered bool
	Reachable      *bool
	Extra          map[string]json.RawMessage
}

func (d *Device) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return d.applyFields(raw)
}

// applyFields merges raw JSON fields into the device. Known keys
// update typed fields, unknown keys update Extra.
func (d *Device) applyFields(raw map[string]json.RawMessage) error {
	for key, val := range raw {
		var err error
		switch key {
		case "_id":
			err = json.Unmarshal(val, (*flexString)(&d.ID))
		case "name":
			err = json.Unmarshal(val, &d.Name)
		case "deviceTypeId":
			err = json.Unmarshal(val, &d.Type)
		case "category":
			err = json.Unmarshal(val, &d.Category)
		case "subcategory":
			err = json.Unmarshal(val, &d.Subcategory)
		case "gatewayId":
			err = json.Unmarshal(val, &d.GatewayID)
		case "roomId":
			err = json.Unmarshal(val, &d.RoomID)
		case "batteryPowered":
			err = json.Unmarshal(val, &d.BatteryPowered)
		case "reachable":
			err = json.Unmarshal(val, &d.Reachable)
		default:
			if d.Extra == nil {
				d.Extra = make(map[string]json.RawMessage)
			}
			d.Extra[key] = append(json.RawMessage(nil), val...)
		}
		if err != nil {
			return fmt.Errorf("device field %q: %w", key, err)
		}
	}
	return nil
}

func (d Device) MarshalJSON() ([]byte, error) {
	raw := make(map[string]any, len(d.Extra)+9)
	for k, v := range d.Extra {
		raw[k] = v
	}
	raw["_id"] = d.ID
	raw["name"] = d.Name
	raw["deviceTypeId"] = d.Type
	raw["category"] = d.Category
	raw["subcategory"] = d.Subcategory
	raw["gatewayId"] = d.GatewayID
	raw["roomId"] = d.RoomID
	raw["batteryPowered"] = d.BatteryPowered
	if d.Reachable != nil {
		raw["reachable"] = *d.Reachable
	}
	return json.Marshal(raw)
}

// Item is one readable or settable device capability.
type Item struct {
	ID             string
	DeviceID       string
	Name           string
	ValueType      string
	Value          any
	ValueFormatted string
	MinValue       *float64
	MaxValue       *float64
	HasGetter      bool
	HasSetter      bool
	Extra          map[string]json.RawMessage
}

func (it *Item) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return it.applyFields(raw)
}

func (it *Item) applyFields(raw map[string]json.RawMessage) error {
	for key, val := range raw {
		var err error
		switch key {
		case "_id":
			err = json.Unmarshal(val, (*flexString)(&it.ID))
		case "deviceId":
			err = json.Unmarshal(val, (*flexString)(&it.DeviceID))
		case "name":
			err = json.Unmarshal(val, &it.Name)
		case "valueType":
			err = json.Unmarshal(val, &it.ValueType)
		case "value":
			err = json.Unmarshal(val, &it.Value)
		case "valueFormatted":
			err = json.Unmarshal(val, &it.ValueFormatted)
		case "minValue":
			err = json.Unmarshal(val, &it.MinValue)
		case "maxValue":
			err = json.Unmarshal(val, &it.MaxValue)
		case "hasGetter":
			err = json.Unmarshal(val, &it.HasGetter)
		case "hasSetter":
			err = json.Unmarshal(val, &it.HasSetter)
		default:
			if it.Extra == nil {
				it.Extra = make(map[string]json.RawMessage)
			}
			it.Extra[key] = append(json.RawMessage(nil), val...)
		}
		if err != nil {
			return fmt.Errorf("item field %q: %w", key, err)
		}
	}
	return nil
}

// Mode is one house mode (Home, Away, Night, Vacation on stock hubs).
type Mode struct {
	ID   flexString `json:"_id"`
	Name string     `json:"name"`
}

// ModeState is the hub's house mode configuration and current state
// as reported by hub.modes.get.
type ModeState struct {
	CurrentID  flexString `json:"current"`
	SwitchToID flexString `json:"switchTo"`
	Modes      []Mode     `json:"modes"`
}

// byID returns the configured mode with the given id.
func (m ModeState) byID(id string) (Mode, bool) {
	for _, mode := range m.Modes {
		if string(mode.ID) == id {
			return mode, true
		}
	}
	return Mode{}, false
}

// byName returns the configured mode with the given name.
func (m ModeState) byName(name string) (Mode, bool) {
	for _, mode := range m.Modes {
		if mode.Name == name {
			return mode, true
		}
	}
	return Mode{}, false
}
