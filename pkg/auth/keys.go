package auth

import (
	"encoding/json"
	"fmt"
)

// accessKey is one entry of the access_keys_sync response. A
// controller key describes a hub on the account; a token key grants a
// user access to a controller it targets.
type accessKey struct {
	Data *struct {
		String string `json:"string"`
	} `json:"data"`
	Meta struct {
		Entity struct {
			Type string     `json:"type"`
			ID   flexSerial `json:"id"`
			UUID string     `json:"uuid"`
		} `json:"entity"`
		Target *struct {
			Type string `json:"type"`
			UUID string `json:"uuid"`
		} `json:"target"`
	} `json:"meta"`
}

// flexSerial accepts hub serials encoded as either JSON strings or
// numbers.
type flexSerial string

func (s *flexSerial) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexSerial(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = flexSerial(n.String())
	return nil
}

// parseLocalAccess extracts the local credentials for one hub from
// the account's key set. First the controller entry for the serial is
// located, then the token key targeting that controller.
func parseLocalAccess(keys map[string]accessKey, serial string) (*LocalAccess, error) {
	var controllerUUID string
	for _, k := range keys {
		if k.Meta.Entity.Type == "controller" && string(k.Meta.Entity.ID) == serial {
			controllerUUID = k.Meta.Entity.UUID
			break
		}
	}
	if controllerUUID == "" {
		return nil, fmt.Errorf("serial %s: %w", serial, ErrNoController)
	}

	for _, k := range keys {
		if k.Meta.Target == nil || k.Meta.Target.Type != "controller" {
			continue
		}
		if k.Meta.Target.UUID != controllerUUID {
			continue
		}
		if k.Data == nil || k.Data.String == "" {
			continue
		}
		return &LocalAccess{
			ControllerUUID: controllerUUID,
			UserID:         k.Meta.Entity.UUID,
			Token:          k.Data.String,
		}, nil
	}
	return nil, fmt.Errorf("controller %s: %w", controllerUUID, ErrNoAccessToken)
}
