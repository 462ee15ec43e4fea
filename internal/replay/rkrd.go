package replay

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/OCAP2/kartreplay/internal/mathf"
)

// Reference log layout: a "RKRD" magic, a big-endian version, then fixed-size
// big-endian frame records.
const (
	referenceMagic     = "RKRD"
	referenceVersion   = 2
	referenceHeaderLen = 8
	// ReferenceFrameSize is the encoded size of one ReferenceFrame: eight vectors,
	// two scalars, two quaternions and two 16-bit counters.
	ReferenceFrameSize = 8*12 + 2*4 + 2*16 + 2*2
)

// ErrBadReferenceLog is returned for a reference log that cannot be decoded.
var ErrBadReferenceLog = errors.New("bad reference log")

// ReadReferenceLog decodes a whole reference log.
func ReadReferenceLog(r io.Reader) ([]ReferenceFrame, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading reference log: %w", err)
	}
	return DecodeReferenceLog(data)
}

// DecodeReferenceLog decodes a reference log held in memory.
func DecodeReferenceLog(data []byte) ([]ReferenceFrame, error) {
	if len(data) < referenceHeaderLen || string(data[:4]) != referenceMagic {
		return nil, fmt.Errorf("%w: bad header", ErrBadReferenceLog)
	}
	if v := binary.BigEndian.Uint32(data[4:8]); v != referenceVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadReferenceLog, v)
	}

	body := data[referenceHeaderLen:]
	if len(body)%ReferenceFrameSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes of frames is not a multiple of %d",
			ErrBadReferenceLog, len(body), ReferenceFrameSize)
	}

	frames := make([]ReferenceFrame, len(body)/ReferenceFrameSize)
	rd := frameReader{buf: body}
	for i := range frames {
		f := &frames[i]
		f.RotVec2 = rd.vec3()
		f.Speed1SoftLimit = rd.float()
		f.Speed1 = rd.float()
		f.FloorNormal = rd.vec3()
		f.Dir = rd.vec3()
		f.Pos = rd.vec3()
		f.Vel0 = rd.vec3()
		f.RotVec0 = rd.vec3()
		f.Vel2 = rd.vec3()
		f.Vel = rd.vec3()
		f.MainRot = rd.quat()
		f.FullRot = rd.quat()
		f.Animation = rd.u16()
		f.CheckpointIdx = rd.u16()
	}

	return frames, nil
}

// WriteReferenceLog encodes frames in the reference log format.
func WriteReferenceLog(w io.Writer, frames []ReferenceFrame) error {
	var buf bytes.Buffer
	buf.Grow(referenceHeaderLen + len(frames)*ReferenceFrameSize)

	buf.WriteString(referenceMagic)
	wr := frameWriter{buf: &buf}
	wr.u32(referenceVersion)

	for i := range frames {
		f := &frames[i]
		wr.vec3(f.RotVec2)
		wr.float(f.Speed1SoftLimit)
		wr.float(f.Speed1)
		wr.vec3(f.FloorNormal)
		wr.vec3(f.Dir)
		wr.vec3(f.Pos)
		wr.vec3(f.Vel0)
		wr.vec3(f.RotVec0)
		wr.vec3(f.Vel2)
		wr.vec3(f.Vel)
		wr.quat(f.MainRot)
		wr.quat(f.FullRot)
		wr.u16(f.Animation)
		wr.u16(f.CheckpointIdx)
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing reference log: %w", err)
	}
	return nil
}

type frameReader struct {
	buf []byte
	off int
}

func (r *frameReader) u16() uint16 {
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v
}

func (r *frameReader) float() float32 {
	v := math.Float32frombits(binary.BigEndian.Uint32(r.buf[r.off:]))
	r.off += 4
	return v
}

func (r *frameReader) vec3() mathf.Vec3 {
	return mathf.Vec3{r.float(), r.float(), r.float()}
}

func (r *frameReader) quat() mathf.Quat {
	return mathf.Quat{r.float(), r.float(), r.float(), r.float()}
}

type frameWriter struct {
	buf *bytes.Buffer
	tmp [4]byte
}

func (w *frameWriter) u16(v uint16) {
	binary.BigEndian.PutUint16(w.tmp[:2], v)
	w.buf.Write(w.tmp[:2])
}

func (w *frameWriter) u32(v uint32) {
	binary.BigEndian.PutUint32(w.tmp[:], v)
	w.buf.Write(w.tmp[:])
}

func (w *frameWriter) float(v float32) {
	w.u32(math.Float32bits(v))
}

func (w *frameWriter) vec3(v mathf.Vec3) {
	w.float(v[0])
	w.float(v[1])
	w.float(v[2])
}

func (w *frameWriter) quat(q mathf.Quat) {
	for _, c := range q {
		w.float(c)
	}
}
