package editor

import (
	"time"
)

type (
	// Broker carries messages from the goroutines the model starts (the
	// position poller) back to the goroutine owning the model. ToModel is
	// drained by the UI loop, which passes every message to
	// Model.ProcessMsg.
	Broker struct {
		ToModel chan MsgToModel
	}

	// MsgToModel is a message to the model. The position is sent every
	// frame during playback, so it is not boxed; infrequent messages, like
	// Alerts, go in Data. Generation identifies the poller that read the
	// position; 0 means unstamped.
	MsgToModel struct {
		HasPosition bool
		Position    float64 // seconds, as read from the sound engine
		Generation  uint64

		Data any
	}
)

func NewBroker() *Broker {
	return &Broker{
		ToModel: make(chan MsgToModel, 1024),
	}
}

// TrySend is a helper function to send a value to a channel if it is not full.
// It is guaranteed to be non-blocking. Return true if the value was sent, false
// otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive is a helper function to block until a value is received from a
// channel, or timing out after t. ok will be false if the timeout occurred or
// if the channel is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
