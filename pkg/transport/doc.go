// Package transport provides the WebSocket transport used to talk to
// an Ezlo hub.
//
// The transport layer handles:
//   - WebSocket dial with connect timeout (wss:// or ws://)
//   - Per-connection TLS relaxation (hubs use self-signed certificates)
//   - Ping/pong keepalive for connection liveness
//   - Connection state management and graceful vs hard close
//
// # Keep-Alive
//
// Liveness is monitored with a single idle timer. A received ping, a
// received pong, or a sent ping resets it. When the timer expires with
// an unanswered ping outstanding, the socket is terminated (not
// gracefully closed) so the owner's close handler can drive
// reconnection.
//
// # TLS
//
// Hubs present self-signed certificates, so certificate verification
// is relaxed per connection. Atom hubs additionally need non-ECC
// cipher suites, which forces TLS 1.2.
package transport
