package contracts

import "github.com/julienschmidt/httprouter"

type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// FeedHandler registers routes that must bypass the wrapped-writer
// middleware stack, such as WebSocket upgrades.
type FeedHandler interface {
	RegisterFeedRoutes(*httprouter.Router)
}
