package websocket

import (
	"slices"
)

// frameWhitelist contains the set of frame types that clients are allowed to send
type frameWhitelist struct {
	allowed []string
}

// newFrameWhitelist creates a new whitelist with the given frame types
func newFrameWhitelist(types ...string) *frameWhitelist {
	// Filter out any empty types
	valid := make([]string, 0, len(types))
	for _, t := range types {
		if t != "" {
			valid = append(valid, t)
		}
	}
	return &frameWhitelist{allowed: valid}
}

// IsAllowed checks if a frame type is in the whitelist
func (w *frameWhitelist) IsAllowed(frameType string) bool {
	if frameType == "" {
		return false
	}
	return slices.Contains(w.allowed, frameType)
}

// defaultFrameWhitelist returns the frame types a client may send
func defaultFrameWhitelist() *frameWhitelist {
	return newFrameWhitelist(FrameSend, FramePing)
}
