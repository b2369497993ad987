package websocket

import (
	"github.com/wailbentafat/chat-relay/view"
)

// Hub presents relayed chat messages to every connected browser. Writes to
// the sessions happen only on the loop's goroutine.
type Hub struct {
	manager *ClientManager
	loop    *view.Loop
}

func NewHub(manager *ClientManager, loop *view.Loop) *Hub {
	return &Hub{manager: manager, loop: loop}
}

// OnMessageReceived schedules a broadcast of text to all sessions.
func (h *Hub) OnMessageReceived(text string) {
	h.loop.Post(func() {
		h.manager.Broadcast(OutboundMessage{Type: "message", Text: text})
	})
}
