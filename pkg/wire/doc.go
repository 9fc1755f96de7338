// Package wire defines the JSON wire format types for the Ezlo hub
// WebSocket protocol.
//
// All frames are textual JSON objects. There are three frame shapes:
//   - Request: client to hub, {"api","id","method","params"}
//   - Reply: hub to client, {"id","result"} or {"id","error"}
//   - Broadcast: hub to client push, {"id":"ui_broadcast","msg_subclass","result"}
//
// Reply frames are correlated to requests by id. Broadcast frames share
// the fixed pseudo-id "ui_broadcast" and are classified by msg_subclass;
// unrecognized subclasses must be ignored for forward compatibility.
package wire
