package websocket

import (
	"go.uber.org/zap"
)

// log is the package-level logger. It discards everything until SetLogger
// is called.
var log = zap.NewNop()

// SetLogger replaces the package-level logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	log = l.Named("websocket")
}
