package oto

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soliddaw/daw"
)

func TestAppendFloat32LE(t *testing.T) {
	b := AppendFloat32LE(nil, daw.AudioBuffer{{0.5, -2}})
	if assert.Len(t, b, bytesPerFrame) {
		assert.Equal(t, float32(0.5), math.Float32frombits(binary.LittleEndian.Uint32(b[0:])))
		assert.Equal(t, float32(-1), math.Float32frombits(binary.LittleEndian.Uint32(b[4:])))
	}
}

func TestSourceRendersOnRead(t *testing.T) {
	assert := assert.New(t)
	calls := 0
	s := &source{render: func(buf daw.AudioBuffer) error {
		calls++
		buf.Fill(0.25)
		return nil
	}, buf: make(daw.AudioBuffer, maxFrames)}
	n, err := s.Read(make([]byte, 3*bytesPerFrame+3))
	assert.NoError(err)
	assert.Equal(3*bytesPerFrame, n)
	n, _ = s.Read(make([]byte, 4))
	assert.Equal(4, n)
	assert.Equal(2, calls)
	// the rest of the frame is served before rendering again
	n, _ = s.Read(make([]byte, 100))
	assert.Equal(4, n)
	assert.Equal(2, calls)
	s.close()
	_, err = s.Read(make([]byte, 8))
	assert.Equal(io.EOF, err)
}

func TestSourceReportsRenderErrors(t *testing.T) {
	s := &source{render: func(daw.AudioBuffer) error { return errors.New("boom") }, buf: make(daw.AudioBuffer, maxFrames)}
	_, err := s.Read(make([]byte, 64))
	assert.Error(t, err)
}
