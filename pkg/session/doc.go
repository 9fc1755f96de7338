// Package session drives the full lifecycle of a hub connection.
//
// A Controller owns one hub: it resolves credentials, opens the
// transport, logs in, syncs the inventory, dispatches broadcasts, and
// reconnects with backoff when the connection drops. Applications
// observe it through the event bus and operate the hub through
// SetItemValue, SetHouseMode, and Send.
//
// # Lifecycle
//
//	Disconnected -> Authenticating -> Opening -> LoggingIn -> Syncing -> Connected
//	                     ^                                                  |
//	                     +------------------ Reconnecting <----------------+
//
// Stop() moves the controller to Stopped from any state. A later
// Start() begins a clean lifecycle.
package session
