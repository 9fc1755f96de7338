package session

import (
	"errors"
	"fmt"
)

// Session errors.
var (
	// ErrNotConnected is returned by operations that need a live
	// connection.
	ErrNotConnected = errors.New("session not connected")

	// ErrStopped is returned when Start is interrupted by Stop.
	ErrStopped = errors.New("session stopped")
)

// ConfigError reports configuration the hub cannot be reached with,
// including a serial mismatch discovered after connecting. It is
// fatal: the controller stops retrying until reconfigured.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// ValidationError reports a bad operation argument, detected before
// any network traffic.
type ValidationError struct {
	Op     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}
