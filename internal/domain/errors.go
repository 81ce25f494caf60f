package domain

import "errors"

// Sentinel errors for the domain layer. These provide consistent, checkable
// errors for conditions shared between components.
var (
	// ErrAddressClosed is returned by an Address whose underlying connection
	// is gone. The router evicts such addresses from presence.
	ErrAddressClosed = errors.New("delivery address is closed")

	// ErrUnknownClient is returned when a client id has no session.
	ErrUnknownClient = errors.New("client not found")
)
