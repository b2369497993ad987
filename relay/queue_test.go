package relay

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewMessageQueue(0, Block)
	for _, text := range []string{"a", "b", "c"} {
		require.NoError(t, q.Push(InboundMessage{Text: text}))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		msg, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, want, msg.Text)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewMessageQueue(0, Block)
	got := make(chan string, 1)

	go func() {
		msg, _ := q.Pop()
		got <- msg.Text
	}()

	select {
	case <-got:
		t.Fatal("Pop returned before anything was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, q.Push(InboundMessage{Text: "hello"}))
	select {
	case text := <-got:
		assert.Equal(t, "hello", text)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake up")
	}
}

func TestQueueCloseWakesAllWaiters(t *testing.T) {
	q := NewMessageQueue(0, Block)

	const waiters = 8
	var wg sync.WaitGroup
	wg.Add(waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			defer wg.Done()
			_, ok := q.Pop()
			assert.False(t, ok)
		}()
	}

	time.Sleep(10 * time.Millisecond)
	q.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiters were not released by Close")
	}
	assert.False(t, q.Running())
}

func TestQueueDrainsAfterClose(t *testing.T) {
	q := NewMessageQueue(0, Block)
	require.NoError(t, q.Push(InboundMessage{Text: "late"}))
	q.Close()

	msg, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "late", msg.Text)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestQueuePushAfterClose(t *testing.T) {
	q := NewMessageQueue(0, Block)
	q.Close()
	q.Close()

	assert.ErrorIs(t, q.Push(InboundMessage{Text: "x"}), ErrRelayClosed)
}

func TestQueueDropPolicy(t *testing.T) {
	q := NewMessageQueue(2, Drop)
	require.NoError(t, q.Push(InboundMessage{Text: "1"}))
	require.NoError(t, q.Push(InboundMessage{Text: "2"}))
	assert.ErrorIs(t, q.Push(InboundMessage{Text: "3"}), ErrQueueFull)

	_, ok := q.Pop()
	require.True(t, ok)
	assert.NoError(t, q.Push(InboundMessage{Text: "3"}))
}

func TestQueueBlockPolicy(t *testing.T) {
	q := NewMessageQueue(1, Block)
	require.NoError(t, q.Push(InboundMessage{Text: "1"}))

	pushed := make(chan error, 1)
	go func() { pushed <- q.Push(InboundMessage{Text: "2"}) }()

	select {
	case <-pushed:
		t.Fatal("Push did not block on a full queue")
	case <-time.After(20 * time.Millisecond):
	}

	msg, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "1", msg.Text)

	select {
	case err := <-pushed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked Push was not released")
	}
}

func TestQueueBlockedPushReleasedByClose(t *testing.T) {
	q := NewMessageQueue(1, Block)
	require.NoError(t, q.Push(InboundMessage{Text: "1"}))

	pushed := make(chan error, 1)
	go func() { pushed <- q.Push(InboundMessage{Text: "2"}) }()
	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-pushed:
		assert.ErrorIs(t, err, ErrRelayClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked Push was not released by Close")
	}
}

func TestQueueDiscard(t *testing.T) {
	q := NewMessageQueue(0, Block)
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Push(InboundMessage{Text: "x"}))
	}
	assert.Equal(t, 5, q.Discard())
	assert.Equal(t, 0, q.Len())
}

// lowWaterGauge remembers the smallest value the gauge ever held.
type lowWaterGauge struct {
	prometheus.Gauge
	low float64
}

func (g *lowWaterGauge) Dec() {
	g.Gauge.Dec()
	g.low = min(g.low, testutil.ToFloat64(g.Gauge))
}

func TestQueueDepthGauge(t *testing.T) {
	depth := &lowWaterGauge{Gauge: prometheus.NewGauge(prometheus.GaugeOpts{Name: "depth"})}
	q := NewMessageQueue(0, Block)
	q.TrackDepth(depth)

	const n = 2000
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			assert.NoError(t, q.Push(InboundMessage{Text: "x"}))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			_, ok := q.Pop()
			assert.True(t, ok)
		}
	}()
	wg.Wait()

	assert.Equal(t, float64(0), testutil.ToFloat64(depth))
	assert.Equal(t, float64(0), depth.low)

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Push(InboundMessage{Text: "x"}))
	}
	assert.Equal(t, float64(3), testutil.ToFloat64(depth))
	q.Discard()
	assert.Equal(t, float64(0), testutil.ToFloat64(depth))
}

func TestParseOverflowPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    OverflowPolicy
		wantErr bool
	}{
		{in: "", want: Block},
		{in: "block", want: Block},
		{in: "DROP", want: Drop},
		{in: " drop ", want: Drop},
		{in: "spill", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOverflowPolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}
