package editor

import (
	"context"
	"time"
)

// pollInterval is roughly one display frame.
const pollInterval = 16 * time.Millisecond

// poller reads the engine clock periodically while playing and sends the
// position to the model through the Broker. At most one runs per model; the
// cancel func is the handle telling whether it runs. Every poller gets a new
// generation, so positions still queued from an earlier one can be told
// apart.
type poller struct {
	cancel     context.CancelFunc
	done       chan struct{}
	generation uint64
}

func (p *poller) running() bool { return p.cancel != nil }

// startPoller starts the poller unless it is already running. Without a
// broker, the UI has to call Transport().Poll itself.
func (m *Model) startPoller() {
	if m.poller.running() || m.broker == nil || m.engine == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.pollGeneration++
	generation := m.pollGeneration
	m.poller = poller{cancel: cancel, done: done, generation: generation}
	engine, toModel := m.engine, m.broker.ToModel
	go func() {
		defer close(done)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				TrySend(toModel, MsgToModel{HasPosition: true, Position: engine.CurrentSeconds(), Generation: generation})
			}
		}
	}()
}

// stopPoller cancels the poller and waits for it to exit, so no position
// is sent after it returns.
func (m *Model) stopPoller() {
	if !m.poller.running() {
		return
	}
	m.poller.cancel()
	<-m.poller.done
	m.poller = poller{}
}

// stale reports whether a position was read by a poller that has since been
// stopped.
func (m *Model) stale(msg MsgToModel) bool {
	return msg.Generation != 0 && msg.Generation != m.poller.generation
}
