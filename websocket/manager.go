package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ClientManager tracks the open browser sessions.
type ClientManager struct {
	clients sync.Map
	wg      sync.WaitGroup
}

func NewClientManager() *ClientManager {
	return &ClientManager{
		clients: sync.Map{},
	}
}

func (m *ClientManager) AddClient(clientID string, session *ClientSession) {
	m.clients.Store(clientID, session)
}

func (m *ClientManager) RemoveClient(clientID string) {
	m.clients.Delete(clientID)
}

// Count returns the number of registered sessions.
func (m *ClientManager) Count() int {
	n := 0
	m.clients.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// Broadcast writes msg to every session. Each session gets one write bounded
// by broadcastWait; sessions that fail it are closed and removed.
func (m *ClientManager) Broadcast(msg OutboundMessage) {
	m.clients.Range(func(key, value interface{}) bool {
		clientID := key.(string)
		session := value.(*ClientSession)

		if err := session.WriteJSONOnce(msg, broadcastWait); err != nil {
			log.Warn("Failed to send message to client", zap.String("client_id", clientID), zap.Error(err))
			session.Close(websocket.CloseInternalServerErr, "Failed to send message")
			m.RemoveClient(clientID)
		}
		return true
	})
}

func (m *ClientManager) IncreaseWaitGroup() {
	m.wg.Add(1)
}

func (m *ClientManager) DecreaseWaitGroup() {
	m.wg.Done()
}

// WaitForCompletion blocks until every in-flight publish has finished.
func (m *ClientManager) WaitForCompletion() {
	m.wg.Wait()
}

func (m *ClientManager) CloseAllConnections(reason string) {
	m.clients.Range(func(key, value interface{}) bool {
		clientID := key.(string)
		session := value.(*ClientSession)

		log.Info("Closing connection", zap.String("client_id", clientID), zap.String("reason", reason))
		session.Close(websocket.CloseGoingAway, reason)
		m.RemoveClient(clientID)

		return true
	})
}
