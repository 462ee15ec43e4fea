package replay

import (
	"encoding/binary"
	"testing"

	"github.com/OCAP2/kartreplay/internal/player"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bitWriter struct {
	buf []byte
	pos int
}

func (w *bitWriter) write(n int, v uint32) {
	for i := n - 1; i >= 0; i-- {
		if w.pos>>3 >= len(w.buf) {
			w.buf = append(w.buf, 0)
		}
		if v>>uint(i)&1 != 0 {
			w.buf[w.pos>>3] |= 0x80 >> (w.pos & 7)
		}
		w.pos++
	}
}

func inputBlock(faces, dirs, tricks []uint16) []byte {
	block := make([]byte, ghostInputHeaderLen)
	binary.BigEndian.PutUint16(block[0:], uint16(len(faces)))
	binary.BigEndian.PutUint16(block[2:], uint16(len(dirs)))
	binary.BigEndian.PutUint16(block[4:], uint16(len(tricks)))
	for _, section := range [][]uint16{faces, dirs, tricks} {
		for _, v := range section {
			block = binary.BigEndian.AppendUint16(block, v)
		}
	}
	return block
}

func TestDecodeInputs(t *testing.T) {
	block := inputBlock(
		[]uint16{0x01<<8 | 3, 0x09<<8 | 2},
		[]uint16{0x77<<8 | 4, 0xE0<<8 | 1},
		[]uint16{uint16(player.TrickLeft)<<12 | 2, 0<<12 | 3},
	)

	inputs, err := DecodeInputs(block)
	require.NoError(t, err)
	require.Len(t, inputs, 5)

	for i := 0; i < 3; i++ {
		assert.True(t, inputs[i].Accelerate, "frame %d", i)
		assert.False(t, inputs[i].Drift, "frame %d", i)
	}
	assert.True(t, inputs[3].Accelerate)
	assert.True(t, inputs[3].Drift)
	assert.False(t, inputs[3].Brake)

	assert.Zero(t, inputs[0].StickX)
	assert.Zero(t, inputs[3].StickY)
	assert.Equal(t, float32(1), inputs[4].StickX)
	assert.Equal(t, float32(-1), inputs[4].StickY)

	assert.Equal(t, player.TrickLeft, inputs[1].Trick)
	assert.Equal(t, player.TrickNone, inputs[2].Trick)
}

func TestDecodeInputs_Rejects(t *testing.T) {
	_, err := DecodeInputs([]byte{0, 1})
	assert.ErrorIs(t, err, ErrBadGhost)

	short := inputBlock([]uint16{0x01<<8 | 3}, nil, nil)
	_, err = DecodeInputs(short[:len(short)-1])
	assert.ErrorIs(t, err, ErrBadGhost)

	overrun := inputBlock([]uint16{0x01<<8 | 3}, []uint16{0x77<<8 | 4}, nil)
	_, err = DecodeInputs(overrun)
	assert.ErrorIs(t, err, ErrBadGhost)
}

func TestEncodeInputs_RoundTrip(t *testing.T) {
	inputs := make([]player.Input, 600)
	for i := range inputs {
		in := &inputs[i]
		in.Accelerate = i > 10
		in.Drift = i%97 > 50
		in.UseItem = i == 300
		in.StickX = stickValue(uint16(i/40) % 15)
		in.StickY = stickValue(uint16(14 - i/50%15))
		if i%200 < 10 {
			in.Trick = player.TrickUp
		}
	}

	block, err := EncodeInputs(inputs)
	require.NoError(t, err)
	assert.Len(t, block, GhostInputBlockLen)

	got, err := DecodeInputs(block)
	require.NoError(t, err)
	assert.Equal(t, inputs, got)
}

func TestStickRaw(t *testing.T) {
	for raw := uint16(0); raw < 15; raw++ {
		assert.Equal(t, raw, stickRaw(stickValue(raw)))
	}
	assert.Equal(t, uint16(14), stickRaw(3))
	assert.Equal(t, uint16(0), stickRaw(-3))
}

func ghostFile(compressed bool, block []byte) []byte {
	w := bitWriter{buf: []byte(ghostMagic)}
	w.pos = 32

	w.write(7, 1)    // minutes
	w.write(7, 23)   // seconds
	w.write(10, 456) // milliseconds
	w.write(6, 0x08) // course
	w.write(2, 0)
	w.write(6, 0x15) // vehicle
	w.write(6, 0x02) // character
	w.write(7, 26)
	w.write(4, 10)
	w.write(5, 15)
	w.write(4, 3)
	w.write(4, 0)
	if compressed {
		w.write(1, 1)
	} else {
		w.write(1, 0)
	}
	w.write(2, 0)
	w.write(7, 0x26)
	w.write(1, 1)
	w.write(1, 0)
	w.write(16, uint32(len(block)))
	w.write(8, 3)
	for i := 0; i < ghostLaps; i++ {
		w.write(7, 0)
		w.write(7, uint32(30+i))
		w.write(10, 0)
	}
	w.write(0x14*8, 0)
	w.write(8, 0x31)
	w.write(8, 2)
	w.write(16, 0)
	w.write(32, 0)
	for i := 0; i < ghostMiiLen; i++ {
		w.write(8, 0)
	}
	w.write(16, 0xABCD)

	return append(w.buf, block...)
}

func TestDecodeGhost(t *testing.T) {
	inputs := []player.Input{{Accelerate: true}, {Accelerate: true, Trick: player.TrickDown}}
	block, err := EncodeInputs(inputs)
	require.NoError(t, err)

	data := ghostFile(false, block)
	require.Len(t, data, ghostHeaderLen+GhostInputBlockLen)

	g, err := DecodeGhost(data)
	require.NoError(t, err)

	h := g.Header
	assert.Equal(t, "1:23.456", h.FinishTime.String())
	assert.Equal(t, uint8(0x08), h.CourseID)
	assert.Equal(t, uint8(0x15), h.VehicleID)
	assert.Equal(t, uint8(0x02), h.CharacterID)
	assert.Equal(t, uint8(10), h.Month)
	assert.Equal(t, uint8(15), h.Day)
	assert.False(t, h.Compressed)
	assert.Equal(t, uint8(0x26), h.GhostType)
	assert.Equal(t, uint8(1), h.DriftType)
	assert.Equal(t, uint8(3), h.LapCount)
	assert.Equal(t, uint8(34), h.LapTimes[4].Seconds)
	assert.Equal(t, uint8(0x31), h.CountryCode)
	assert.Equal(t, uint16(0xABCD), h.CRC16)

	assert.Equal(t, inputs, g.Inputs)
}

func TestDecodeGhost_Rejects(t *testing.T) {
	_, err := DecodeGhost([]byte("RKGD"))
	assert.ErrorIs(t, err, ErrBadGhost)

	data := ghostFile(false, nil)
	copy(data, "XXXX")
	_, err = DecodeGhost(data)
	assert.ErrorIs(t, err, ErrBadGhost)

	_, err = DecodeGhost(ghostFile(true, make([]byte, 16)))
	assert.ErrorIs(t, err, ErrCompressedGhost)
}
