// Package discovery finds Ezlo hubs on the local network via mDNS/DNS-SD.
//
// Hubs advertise the _ezlo._tcp service in the local. domain. The
// instance name carries the hub serial (typically "ezlo.<serial>" or
// "HUB<serial>"), and newer firmware also publishes TXT records with
// the serial, hardware model and architecture.
//
// Browse aggregates announcements by instance name: a hub reachable
// over several interfaces is reported once, with all of its addresses
// merged. FindBySerial wraps Browse for the common case of locating
// one known hub before dialing it.
package discovery
