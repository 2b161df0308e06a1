package notify

import "context"

// Notifier delivers a rendered message to a user-addressable channel.
// Delivery failure is an expected, catchable condition: callers log it and
// move on, they never let it propagate as fatal.
type Notifier interface {
	// Send delivers the text to the owner's chat. The context bounds the
	// delivery attempt; a hung transport must not stall the caller forever.
	Send(ctx context.Context, ownerID int64, text string) error
}
