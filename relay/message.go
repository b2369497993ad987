package relay

import (
	"time"

	"github.com/google/uuid"

	"github.com/wailbentafat/chat-relay/broker"
)

// notificationArity is the number of elements in a channel notification:
// kind, channel and payload.
const notificationArity = 3

// InboundMessage is one chat message received from the broker.
type InboundMessage struct {
	ID         string
	Text       string
	ReceivedAt time.Time
}

// decodeFrame extracts the payload of a channel notification. Only the
// arity of the frame is checked; frames of any other shape are not chat
// messages.
func decodeFrame(f broker.Frame, now time.Time) (InboundMessage, bool) {
	if len(f) != notificationArity {
		return InboundMessage{}, false
	}
	return InboundMessage{
		ID:         uuid.NewString(),
		Text:       f[2],
		ReceivedAt: now,
	}, true
}
