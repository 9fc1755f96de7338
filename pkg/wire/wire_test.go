package wire

import (
	"encoding/json"
	"testing"
)

func TestRequestEncode(t *testing.T) {
	t.Run("DefaultsApplied", func(t *testing.T) {
		req := &Request{ID: "17f0a1", Method: MethodHubInfoGet}
		data, err := req.Encode()
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}

		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("frame is not valid JSON: %v", err)
		}
		if m["api"] != APIv1 {
			t.Errorf("expected api %q, got %v", APIv1, m["api"])
		}
		if _, ok := m["params"].(map[string]any); !ok {
			t.Errorf("expected params to encode as an object, got %T", m["params"])
		}
	})

	t.Run("ExplicitAPI", func(t *testing.T) {
		req := &Request{API: APIv2, ID: "1", Method: MethodHubModesGet}
		data, err := req.Encode()
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		var m map[string]any
		_ = json.Unmarshal(data, &m)
		if m["api"] != APIv2 {
			t.Errorf("expected api %q, got %v", APIv2, m["api"])
		}
	})

	t.Run("MissingID", func(t *testing.T) {
		req := &Request{Method: MethodHubInfoGet}
		if _, err := req.Encode(); err == nil {
			t.Error("expected error for missing id")
		}
	})

	t.Run("MissingMethod", func(t *testing.T) {
		req := &Request{ID: "1"}
		if _, err := req.Encode(); err == nil {
			t.Error("expected error for missing method")
		}
	})
}

func TestDecodeReply(t *testing.T) {
	frame := []byte(`{"id":"17f0a1","result":{"serial":"70000123"}}`)
	env, err := Decode(frame)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if env.IsBroadcast() {
		t.Error("reply classified as broadcast")
	}
	if env.ID != "17f0a1" {
		t.Errorf("expected id 17f0a1, got %q", env.ID)
	}

	var result struct {
		Serial string `json:"serial"`
	}
	if err := env.DecodeResult(&result); err != nil {
		t.Fatalf("result decode failed: %v", err)
	}
	if result.Serial != "70000123" {
		t.Errorf("expected serial 70000123, got %q", result.Serial)
	}
}

func TestDecodeErrorReply(t *testing.T) {
	frame := []byte(`{"id":"a","error":{"code":-32602,"message":"bad params","reason":"ezlo.invalid","data":"rpc.params"}}`)
	env, err := Decode(frame)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if env.Error == nil {
		t.Fatal("expected error member")
	}
	if env.Error.Code != -32602 {
		t.Errorf("expected code -32602, got %d", env.Error.Code)
	}
	if env.Error.Data != "rpc.params" {
		t.Errorf("expected data rpc.params, got %q", env.Error.Data)
	}
	if env.Error.Error() == "" {
		t.Error("expected non-empty error string")
	}
}

func TestDecodeErrorNonStringData(t *testing.T) {
	frame := []byte(`{"id":"a","error":{"code":1,"message":"x","data":42}}`)
	env, err := Decode(frame)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if env.Error.Data != "42" {
		t.Errorf("expected stringified data %q, got %q", "42", env.Error.Data)
	}
}

func TestDecodeBroadcast(t *testing.T) {
	frame := []byte(`{"id":"ui_broadcast","msg_subclass":"Hub.Modes.Switched","result":{"from":"1","to":"3","status":"done"}}`)
	env, err := Decode(frame)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !env.IsBroadcast() {
		t.Error("broadcast not classified as broadcast")
	}
	if env.Subclass() != SubclassModeSwitched {
		t.Errorf("expected normalized subclass %q, got %q", SubclassModeSwitched, env.Subclass())
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode([]byte(`{not json`)); err == nil {
		t.Error("expected error for malformed frame")
	}
}
