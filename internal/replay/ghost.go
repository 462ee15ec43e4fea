package replay

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/OCAP2/kartreplay/internal/player"
)

// Ghost file layout.
const (
	ghostMagic     = "RKGD"
	ghostHeaderLen = 0x88
	// GhostInputBlockLen is the size of an uncompressed ghost input block.
	GhostInputBlockLen  = 0x2774
	ghostInputHeaderLen = 8
	ghostLaps           = 5
	ghostMiiLen         = 0x4A
)

// Face button bits of a ghost input entry.
const (
	faceAccelerate = 0x01
	faceBrake      = 0x02
	faceUseItem    = 0x04
	faceDrift      = 0x08
)

var (
	// ErrBadGhost is returned for ghost data that cannot be decoded.
	ErrBadGhost = errors.New("bad ghost")
	// ErrCompressedGhost is returned for ghosts whose input block is compressed.
	ErrCompressedGhost = errors.New("compressed ghost input is not supported")
)

// GhostTime is a race time as stored in a ghost header.
type GhostTime struct {
	Minutes      uint8  `json:"minutes"`
	Seconds      uint8  `json:"seconds"`
	Milliseconds uint16 `json:"milliseconds"`
}

func (t GhostTime) String() string {
	return fmt.Sprintf("%d:%02d.%03d", t.Minutes, t.Seconds, t.Milliseconds)
}

// GhostHeader is the fixed header of a ghost file.
type GhostHeader struct {
	FinishTime      GhostTime            `json:"finishTime"`
	CourseID        uint8                `json:"courseId"`
	VehicleID       uint8                `json:"vehicleId"`
	CharacterID     uint8                `json:"characterId"`
	Year            uint8                `json:"year"`
	Month           uint8                `json:"month"`
	Day             uint8                `json:"day"`
	ControllerID    uint8                `json:"controllerId"`
	Compressed      bool                 `json:"compressed"`
	GhostType       uint8                `json:"ghostType"`
	DriftType       uint8                `json:"driftType"`
	InputDataLength uint16               `json:"inputDataLength"`
	LapCount        uint8                `json:"lapCount"`
	LapTimes        [ghostLaps]GhostTime `json:"lapTimes"`
	CountryCode     uint8                `json:"countryCode"`
	StateCode       uint8                `json:"stateCode"`
	LocationCode    uint16               `json:"locationCode"`
	Unknown         uint32               `json:"-"`
	Mii             [ghostMiiLen]byte    `json:"-"`
	CRC16           uint16               `json:"crc16"`
}

// Ghost is a decoded ghost: its header and one input per recorded frame.
type Ghost struct {
	Header GhostHeader
	Inputs []player.Input
}

// DecodeGhost decodes a ghost file with an uncompressed input block.
func DecodeGhost(data []byte) (*Ghost, error) {
	if len(data) < ghostHeaderLen || string(data[:4]) != ghostMagic {
		return nil, fmt.Errorf("%w: bad header", ErrBadGhost)
	}

	header := decodeGhostHeader(data[:ghostHeaderLen])
	if header.Compressed {
		return nil, ErrCompressedGhost
	}

	block := data[ghostHeaderLen:]
	if len(block) > GhostInputBlockLen {
		block = block[:GhostInputBlockLen]
	}
	inputs, err := DecodeInputs(block)
	if err != nil {
		return nil, err
	}

	return &Ghost{Header: header, Inputs: inputs}, nil
}

func decodeGhostHeader(data []byte) GhostHeader {
	var h GhostHeader
	r := bitReader{buf: data}

	r.skip(32)
	h.FinishTime = r.time()
	h.CourseID = uint8(r.read(6))
	r.skip(2)
	h.VehicleID = uint8(r.read(6))
	h.CharacterID = uint8(r.read(6))
	h.Year = uint8(r.read(7))
	h.Month = uint8(r.read(4))
	h.Day = uint8(r.read(5))
	h.ControllerID = uint8(r.read(4))
	r.skip(4)
	h.Compressed = r.read(1) != 0
	r.skip(2)
	h.GhostType = uint8(r.read(7))
	h.DriftType = uint8(r.read(1))
	r.skip(1)
	h.InputDataLength = uint16(r.read(16))
	h.LapCount = uint8(r.read(8))
	for i := range h.LapTimes {
		h.LapTimes[i] = r.time()
	}
	r.skip(0x14 * 8)
	h.CountryCode = uint8(r.read(8))
	h.StateCode = uint8(r.read(8))
	h.LocationCode = uint16(r.read(16))
	h.Unknown = r.read(32)
	for i := range h.Mii {
		h.Mii[i] = uint8(r.read(8))
	}
	h.CRC16 = uint16(r.read(16))

	return h
}

// DecodeInputs expands the run-length face button, direction and trick sections
// of a ghost input block into one input per frame. The frame count is the sum of
// the face button runs; a shorter direction or trick section leaves the remaining
// frames neutral.
func DecodeInputs(block []byte) ([]player.Input, error) {
	if len(block) < ghostInputHeaderLen {
		return nil, fmt.Errorf("%w: input block of %d bytes", ErrBadGhost, len(block))
	}

	faceCount := int(binary.BigEndian.Uint16(block[0:]))
	dirCount := int(binary.BigEndian.Uint16(block[2:]))
	trickCount := int(binary.BigEndian.Uint16(block[4:]))

	need := ghostInputHeaderLen + 2*(faceCount+dirCount+trickCount)
	if len(block) < need {
		return nil, fmt.Errorf("%w: input sections need %d bytes, have %d", ErrBadGhost, need, len(block))
	}

	entries := func(start, count int) []uint16 {
		out := make([]uint16, count)
		for i := range out {
			out[i] = binary.BigEndian.Uint16(block[start+2*i:])
		}
		return out
	}
	faces := entries(ghostInputHeaderLen, faceCount)
	dirs := entries(ghostInputHeaderLen+2*faceCount, dirCount)
	tricks := entries(ghostInputHeaderLen+2*(faceCount+dirCount), trickCount)

	total := 0
	for _, v := range faces {
		total += int(v & 0xFF)
	}
	inputs := make([]player.Input, total)

	frame := 0
	for _, v := range faces {
		num, val := int(v&0xFF), v>>8
		for j := 0; j < num; j++ {
			in := &inputs[frame]
			in.Accelerate = val&faceAccelerate != 0
			in.Brake = val&faceBrake != 0
			in.UseItem = val&faceUseItem != 0
			in.Drift = val&faceDrift != 0
			frame++
		}
	}

	frame = 0
	for _, v := range dirs {
		num, val := int(v&0xFF), v>>8
		if frame+num > total {
			return nil, fmt.Errorf("%w: direction runs exceed %d frames", ErrBadGhost, total)
		}
		x, y := stickValue(val>>4), stickValue(val&0x0F)
		for j := 0; j < num; j++ {
			inputs[frame].StickX = x
			inputs[frame].StickY = y
			frame++
		}
	}

	frame = 0
	for _, v := range tricks {
		num, val := int(v&0xFFF), player.TrickInput(v>>12)
		if frame+num > total {
			return nil, fmt.Errorf("%w: trick runs exceed %d frames", ErrBadGhost, total)
		}
		for j := 0; j < num; j++ {
			inputs[frame].Trick = val
			frame++
		}
	}

	return inputs, nil
}

// EncodeInputs is the inverse of DecodeInputs. Sticks are quantized to the
// nearest of the 15 stored positions; the block is padded to GhostInputBlockLen.
func EncodeInputs(inputs []player.Input) ([]byte, error) {
	var faces, dirs, tricks []uint16

	for i := 0; i < len(inputs); {
		face := faceBits(&inputs[i])
		n := 1
		for i+n < len(inputs) && n < 0xFF && faceBits(&inputs[i+n]) == face {
			n++
		}
		faces = append(faces, face<<8|uint16(n))
		i += n
	}

	for i := 0; i < len(inputs); {
		dir := stickRaw(inputs[i].StickX)<<4 | stickRaw(inputs[i].StickY)
		n := 1
		for i+n < len(inputs) && n < 0xFF &&
			stickRaw(inputs[i+n].StickX)<<4|stickRaw(inputs[i+n].StickY) == dir {
			n++
		}
		dirs = append(dirs, dir<<8|uint16(n))
		i += n
	}

	for i := 0; i < len(inputs); {
		trick := uint16(inputs[i].Trick)
		n := 1
		for i+n < len(inputs) && n < 0xFFF && uint16(inputs[i+n].Trick) == trick {
			n++
		}
		tricks = append(tricks, trick<<12|uint16(n))
		i += n
	}

	size := ghostInputHeaderLen + 2*(len(faces)+len(dirs)+len(tricks))
	if size > GhostInputBlockLen {
		return nil, fmt.Errorf("%w: %d input bytes exceed the %d byte block", ErrBadGhost, size, GhostInputBlockLen)
	}

	block := make([]byte, GhostInputBlockLen)
	binary.BigEndian.PutUint16(block[0:], uint16(len(faces)))
	binary.BigEndian.PutUint16(block[2:], uint16(len(dirs)))
	binary.BigEndian.PutUint16(block[4:], uint16(len(tricks)))

	off := ghostInputHeaderLen
	for _, section := range [][]uint16{faces, dirs, tricks} {
		for _, v := range section {
			binary.BigEndian.PutUint16(block[off:], v)
			off += 2
		}
	}

	return block, nil
}

func faceBits(in *player.Input) uint16 {
	var v uint16
	if in.Accelerate {
		v |= faceAccelerate
	}
	if in.Brake {
		v |= faceBrake
	}
	if in.UseItem {
		v |= faceUseItem
	}
	if in.Drift {
		v |= faceDrift
	}
	return v
}

func stickValue(raw uint16) float32 {
	return (float32(raw) - 7) / 7
}

func stickRaw(v float32) uint16 {
	switch {
	case !(v > -1):
		return 0
	case v >= 1:
		return 14
	}
	return uint16(v*7 + 7.5)
}

// bitReader reads most significant bit first. Reads past the end return zeros.
type bitReader struct {
	buf []byte
	pos int
}

func (r *bitReader) read(n int) uint32 {
	var v uint32
	for i := 0; i < n; i++ {
		v <<= 1
		byteIdx := r.pos >> 3
		if byteIdx < len(r.buf) {
			v |= uint32(r.buf[byteIdx]>>(7-r.pos&7)) & 1
		}
		r.pos++
	}
	return v
}

func (r *bitReader) skip(n int) {
	r.pos += n
}

func (r *bitReader) time() GhostTime {
	return GhostTime{
		Minutes:      uint8(r.read(7)),
		Seconds:      uint8(r.read(7)),
		Milliseconds: uint16(r.read(10)),
	}
}
