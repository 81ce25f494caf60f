package domain

import "context"

// Address is the delivery capability supplied by a transport once a real
// connection is established. Implementations must return once ctx is done.
type Address interface {
	Deliver(ctx context.Context, p Payload) error
}

// AddressFunc adapts a function to the Address interface.
type AddressFunc func(ctx context.Context, p Payload) error

// Deliver calls f.
func (f AddressFunc) Deliver(ctx context.Context, p Payload) error {
	return f(ctx, p)
}

// Closer is implemented by addresses that hold a connection open. Presence
// closes such an address once another address replaces it.
type Closer interface {
	Close()
}
