// Package inventory holds the client-side mirror of a hub's devices,
// items, and house modes.
//
// The store is populated from the initial list snapshots after login
// and then kept current by applying broadcast deltas. Snapshot merges
// are change-detecting so a periodic resync of an unchanged hub is
// silent; broadcast deltas always count as changes because the hub
// only pushes them when something happened.
package inventory
