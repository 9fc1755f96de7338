// Package persistence provides a file-backed authentication cache.
//
// Cloud identities and hub access tokens survive process restarts, so
// a monitor that reconnects after a crash does not have to repeat the
// full cloud login chain. The state file holds credentials and is
// written with owner-only permissions.
package persistence
