package relay

import (
	"sync"
)

type recorder struct {
	mu  sync.Mutex
	got []string
}

func (r *recorder) OnMessageReceived(text string) {
	r.mu.Lock()
	r.got = append(r.got, text)
	r.mu.Unlock()
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}
