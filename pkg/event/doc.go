// Package event delivers session events to application subscribers.
//
// The bus fans events out to buffered channels. A subscriber that
// stops draining loses events rather than blocking the session's
// dispatch path.
package event
