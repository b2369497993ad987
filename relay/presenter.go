package relay

// Presenter is the boundary between the relay and whatever displays chat
// messages. OnMessageReceived is called from dispatch workers, concurrently,
// so implementations must hand the text over to the goroutine that owns the
// display instead of touching display state themselves.
type Presenter interface {
	OnMessageReceived(text string)
}

// PresenterFunc adapts a function to the Presenter interface.
type PresenterFunc func(text string)

func (f PresenterFunc) OnMessageReceived(text string) {
	f(text)
}
