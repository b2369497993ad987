package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingInterval        = 30 * time.Second
	activityTimeout     = 60 * time.Second
	activityCheckPeriod = 10 * time.Second
	writeWait           = 5 * time.Second
	broadcastWait       = time.Second
	websocketRetryDelay = 200 * time.Millisecond
	websocketRetries    = 2
)

// OutboundMessage is the JSON document written to browsers for every chat
// message dispatched by the relay.
type OutboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ClientSession struct {
	ID           string
	conn         *websocket.Conn
	lastActivity int64 // UnixNano timestamp
	mu           sync.Mutex
}

func NewClientSession(id string, conn *websocket.Conn) *ClientSession {
	return &ClientSession{
		ID:           id,
		conn:         conn,
		lastActivity: time.Now().UnixNano(),
	}
}

// SafeWriteJSON serializes writes to the connection and retries a failed
// write a few times before giving up.
func (s *ClientSession) SafeWriteJSON(data interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	operation := func() error {
		if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return backoff.Permanent(err)
		}
		return s.conn.WriteJSON(data)
	}

	backoffStrategy := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(websocketRetryDelay),
		websocketRetries,
	)

	return backoff.RetryNotify(operation, backoffStrategy, func(err error, d time.Duration) {
		log.Debug("Retrying WebSocket write",
			zap.String("client_id", s.ID), zap.Error(err), zap.Duration("next_attempt", d))
	})
}

// WriteJSONOnce makes a single write that gives up after wait.
func (s *ClientSession) WriteJSONOnce(data interface{}, wait time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(wait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(data)
}

func (s *ClientSession) UpdateActivity() {
	atomic.StoreInt64(&s.lastActivity, time.Now().UnixNano())
}

func (s *ClientSession) LastActivityTime() time.Time {
	return time.Unix(0, atomic.LoadInt64(&s.lastActivity))
}

func (s *ClientSession) StartPingSender(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.mu.Unlock()
			if err != nil {
				log.Debug("Ping failed", zap.String("client_id", s.ID), zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *ClientSession) StartActivityChecker(ctx context.Context, onTimeout func()) {
	ticker := time.NewTicker(activityCheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if time.Since(s.LastActivityTime()) > activityTimeout {
				s.conn.Close()
				onTimeout()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *ClientSession) Close(code int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(writeWait),
	)
	if err != nil {
		log.Debug("Error sending close message", zap.String("client_id", s.ID), zap.Error(err))
		s.conn.Close()
		return err
	}

	return s.conn.Close()
}
