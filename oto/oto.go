// Package oto plays audio through the ebitengine/oto library.
package oto

import (
	"fmt"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/soliddaw/daw"
)

type (
	// Context implements daw.AudioContext. oto allows only one context per
	// process.
	Context struct {
		ctx *oto.Context
	}

	Output struct {
		player *oto.Player
		src    *source
		once   sync.Once
		done   chan struct{}
	}

	// source is the io.Reader the oto player pulls from; every read renders
	// more audio.
	source struct {
		mu      sync.Mutex
		render  func(daw.AudioBuffer) error
		buf     daw.AudioBuffer
		pending []byte
		closed  bool
	}
)

const (
	bytesPerFrame = 8 // two float32 channels
	maxFrames     = 1024
)

// NewContext opens the default audio device and waits until it is ready.
func NewContext() (*Context, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   daw.SampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Context{ctx: ctx}, nil
}

// Open is NewContext as a daw.AudioContext, for engine.New.
func Open() (daw.AudioContext, error) {
	c, err := NewContext()
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Play starts a player that keeps calling render for more audio.
func (c *Context) Play(render func(daw.AudioBuffer) error) (daw.CloserWaiter, error) {
	if err := c.ctx.Resume(); err != nil {
		return nil, fmt.Errorf("cannot resume oto context: %w", err)
	}
	src := &source{render: render, buf: make(daw.AudioBuffer, maxFrames)}
	p := c.ctx.NewPlayer(src)
	p.Play()
	return &Output{player: p, src: src, done: make(chan struct{})}, nil
}

// Close suspends the device; oto contexts cannot be reopened, so the context
// stays usable for later Play calls.
func (c *Context) Close() error {
	if err := c.ctx.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}

func (o *Output) Close() (err error) {
	o.once.Do(func() {
		o.src.close()
		if cerr := o.player.Close(); cerr != nil {
			err = fmt.Errorf("cannot close oto player: %w", cerr)
		}
		close(o.done)
	})
	return err
}

// Wait blocks until the output is closed.
func (o *Output) Wait() { <-o.done }

func (s *source) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *source) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.EOF
	}
	if len(s.pending) == 0 {
		frames := max(1, min(maxFrames, len(p)/bytesPerFrame))
		buf := s.buf[:frames]
		if err := s.render(buf); err != nil {
			return 0, fmt.Errorf("cannot render audio: %w", err)
		}
		s.pending = AppendFloat32LE(s.pending[:0], buf)
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}
