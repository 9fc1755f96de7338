package auth

import (
	"errors"
	"fmt"
)

// Chain errors. Both indicate an account that currently cannot grant
// local access to the requested hub. They are retryable: a hub newly
// claimed to the account shows up on a later sync.
var (
	// ErrNoController means the account's access keys contain no
	// controller entry for the hub serial.
	ErrNoController = errors.New("no controller data for serial")

	// ErrNoAccessToken means the controller exists but no access key
	// targets it, so no local token can be derived.
	ErrNoAccessToken = errors.New("no access token for controller")
)

// FatalError wraps a cloud failure that retrying cannot fix, such as
// bad credentials. Reconnect loops must give up when they see one.
type FatalError struct {
	Op     string
	Status int
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.Status)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err contains a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
