package service

// Broadcaster pushes game events to connected clients. The tick processor
// never depends on delivery; events are advisory.
type Broadcaster interface {
	BroadcastToGame(gameID, event string, payload any)
}

// NoopBroadcaster discards all events. Used by the tick driver and in tests.
type NoopBroadcaster struct{}

// BroadcastToGame does nothing.
func (NoopBroadcaster) BroadcastToGame(gameID, event string, payload any) {}
