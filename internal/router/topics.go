package router

import "github.com/nfrund/huddle/internal/pubsub"

// TopicMessageDispatched is published after every routed message
var TopicMessageDispatched = pubsub.NewEvent[Report](
	"router.message.dispatched",
	"Published with the delivery report of a routed message",
)
