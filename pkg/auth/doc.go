// Package auth implements the cloud authentication chains that gate
// hub access.
//
// Three modes exist. Anonymous hubs need nothing. Local hubs need a
// cloud-issued local access token obtained through the legacy
// identity service plus a token exchange. Remote hubs need the
// identity itself, used to locate the relay server and to log in
// through it.
//
// Cloud round trips are slow and rate limited, so results are cached:
// identities per username until they expire, local access credentials
// per hub serial until explicitly invalidated. Concurrent requests
// for the same entry share one in-flight fetch.
package auth
