package websocket

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wailbentafat/chat-relay/view"
)

const publishTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler accepts browser sessions and publishes what they type.
type Handler struct {
	manager *ClientManager
	sender  view.Sender
}

func NewHandler(manager *ClientManager, sender view.Sender) *Handler {
	return &Handler{
		manager: manager,
		sender:  sender,
	}
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	clientID := uuid.NewString()
	session := NewClientSession(clientID, conn)
	h.manager.AddClient(clientID, session)
	log.Info("Client connected", zap.String("client_id", clientID), zap.String("remote", r.RemoteAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn.SetPongHandler(func(string) error { session.UpdateActivity(); return nil })
	go session.StartPingSender(ctx)
	go session.StartActivityChecker(ctx, func() {
		log.Info("Connection timeout", zap.String("client_id", clientID))
		h.manager.RemoveClient(clientID)
		cancel()
	})

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			log.Debug("Read error", zap.String("client_id", clientID), zap.Error(err))
			break
		}
		session.UpdateActivity()

		if msgType != websocket.TextMessage {
			continue
		}
		text := strings.TrimRight(string(msg), "\r\n")
		if strings.TrimSpace(text) == "" {
			continue
		}

		h.publish(ctx, session, text)
	}

	log.Info("Cleaning up connection", zap.String("client_id", clientID))
	h.manager.RemoveClient(clientID)
	conn.Close()
}

// publish sends text synchronously so one session's messages reach the
// broker in the order they were typed.
func (h *Handler) publish(ctx context.Context, session *ClientSession, text string) {
	h.manager.IncreaseWaitGroup()
	defer h.manager.DecreaseWaitGroup()

	ctxTimeout, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := h.sender.SendMessage(ctxTimeout, text); err != nil {
		log.Warn("Failed to publish message", zap.String("client_id", session.ID), zap.Error(err))
		if werr := session.SafeWriteJSON(OutboundMessage{Type: "error", Text: "message not sent"}); werr != nil {
			log.Debug("Failed to report publish error", zap.String("client_id", session.ID), zap.Error(werr))
		}
	}
}
