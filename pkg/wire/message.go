package wire

import (
	"encoding/json"
	"fmt"
	"strings"
)

// API versions accepted by the hub.
const (
	APIv1 = "1.0"
	APIv2 = "2.0"
)

// BroadcastID is the pseudo request id carried by all push frames.
const BroadcastID = "ui_broadcast"

// Hub method names used by this client.
const (
	MethodHubInfoGet       = "hub.info.get"
	MethodHubModesGet      = "hub.modes.get"
	MethodHubDevicesList   = "hub.devices.list"
	MethodHubItemsList     = "hub.items.list"
	MethodHubItemValueSet  = "hub.item.value.set"
	MethodHubModesSwitch   = "hub.modes.switch"
	MethodHubModesCancel   = "hub.modes.cancel_switch"
	MethodHubRoomList      = "hub.room.list"
	MethodHubOfflineLogin  = "hub.offline.login.ui"
	MethodLoginUserMios    = "loginUserMios"
	MethodRegister         = "register"
)

// Broadcast subclasses recognized by this client. Compared
// case-insensitively; anything else is ignored.
const (
	SubclassModeSwitched   = "hub.modes.switched"
	SubclassDeviceAdded    = "hub.device.added"
	SubclassDeviceUpdated  = "hub.device.updated"
	SubclassItemAdded      = "hub.item.added"
	SubclassItemUpdated    = "hub.item.updated"
	SubclassGatewayUpdated = "hub.gateway.updated"
	SubclassStateChanged   = "ezlostatechanged"
)

// MethodSpec names a hub method together with the API version it
// requires. Most methods use API 1.0; a few (hub.modes.get) need 2.0.
type MethodSpec struct {
	Method string
	API    string
}

// Method returns a MethodSpec for a plain API 1.0 method name.
func Method(name string) MethodSpec {
	return MethodSpec{Method: name, API: APIv1}
}

// MethodV2 returns a MethodSpec pinned to API 2.0.
func MethodV2(name string) MethodSpec {
	return MethodSpec{Method: name, API: APIv2}
}

// Request is an outbound method call frame.
type Request struct {
	API    string `json:"api"`
	ID     string `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params"`
}

// Validate checks the request is well formed before sending.
func (r *Request) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("request id is required")
	}
	if r.Method == "" {
		return fmt.Errorf("request method is required")
	}
	return nil
}

// Encode marshals the request to a JSON frame. A nil Params is encoded
// as an empty object, which the hub requires.
func (r *Request) Encode() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.API == "" {
		r.API = APIv1
	}
	if r.Params == nil {
		r.Params = struct{}{}
	}
	return json.Marshal(r)
}

// Envelope is the decoded shape of any inbound frame. Result is kept
// raw so callers can decode it into method-specific types.
type Envelope struct {
	ID          string          `json:"id"`
	Method      string          `json:"method,omitempty"`
	MsgSubclass string          `json:"msg_subclass,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       *Error          `json:"error,omitempty"`
}

// IsBroadcast reports whether the frame is a push broadcast rather
// than a reply to a tracked request.
func (e *Envelope) IsBroadcast() bool {
	return e.ID == BroadcastID
}

// Subclass returns the normalized (lower-case) broadcast subclass.
func (e *Envelope) Subclass() string {
	return strings.ToLower(e.MsgSubclass)
}

// DecodeResult unmarshals the result member into v.
func (e *Envelope) DecodeResult(v any) error {
	if len(e.Result) == 0 {
		return fmt.Errorf("frame has no result")
	}
	return json.Unmarshal(e.Result, v)
}

// Decode parses an inbound JSON frame.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	return &env, nil
}
