package wire

import (
	"encoding/json"
	"fmt"
)

// Error is a protocol-level error returned by the hub for a specific
// request. It fails only that request; the connection stays up.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason"`
	Data    string `json:"data"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("hub error %d: %s", e.Code, e.Message)
	}
	if e.Reason != "" {
		return fmt.Sprintf("hub error %d: %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("hub error %d", e.Code)
}

// UnmarshalJSON tolerates non-string data members; hubs have been seen
// sending numbers and objects there. Data is reliably a string after
// decoding.
func (e *Error) UnmarshalJSON(data []byte) error {
	var raw struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Reason  string          `json:"reason"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Code = raw.Code
	e.Message = raw.Message
	e.Reason = raw.Reason
	if len(raw.Data) > 0 {
		var s string
		if err := json.Unmarshal(raw.Data, &s); err == nil {
			e.Data = s
		} else {
			e.Data = string(raw.Data)
		}
	}
	return nil
}
