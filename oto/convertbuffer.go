package oto

import (
	"encoding/binary"
	"math"

	"github.com/soliddaw/daw"
)

// AppendFloat32LE appends the frames of buf to dst as interleaved 32-bit
// little-endian floats, clamped to [-1, 1].
func AppendFloat32LE(dst []byte, buf daw.AudioBuffer) []byte {
	for _, f := range buf {
		for _, v := range f {
			v = max(-1, min(1, v))
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
		}
	}
	return dst
}
