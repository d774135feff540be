package framing

import (
	"encoding/binary"

	"github.com/flowmux/rsocket/internal/common"
)

// FrameResume is the RESUME frame sent by a reconnecting client.
type FrameResume struct {
	*BaseFrame
}

// NewFrameResume constructs an outbound RESUME frame.
func NewFrameResume(major, minor uint16, token []byte, lastReceivedServerPosition, firstClientPosition uint64) *FrameResume {
	bb := common.NewByteBuff()
	var head [4]byte
	binary.BigEndian.PutUint16(head[0:2], major)
	binary.BigEndian.PutUint16(head[2:4], minor)
	_, _ = bb.Write(head[:])
	var tl [2]byte
	binary.BigEndian.PutUint16(tl[:], uint16(len(token)))
	_, _ = bb.Write(tl[:])
	_, _ = bb.Write(token)
	var pos [16]byte
	binary.BigEndian.PutUint64(pos[0:8], lastReceivedServerPosition)
	binary.BigEndian.PutUint64(pos[8:16], firstClientPosition)
	_, _ = bb.Write(pos[:])
	return &FrameResume{NewBaseFrame(NewFrameHeader(0, FrameTypeResume, 0), bb)}
}

// Version returns the proposed protocol version.
func (f *FrameResume) Version() (uint16, uint16) {
	body := f.Body()
	return binary.BigEndian.Uint16(body[0:2]), binary.BigEndian.Uint16(body[2:4])
}

// Token returns the resume token.
func (f *FrameResume) Token() []byte {
	body := f.Body()
	tl := int(binary.BigEndian.Uint16(body[4:6]))
	return body[6 : 6+tl]
}

// LastReceivedServerPosition returns the last server position the client saw.
func (f *FrameResume) LastReceivedServerPosition() uint64 {
	body := f.Body()
	off := 6 + int(binary.BigEndian.Uint16(body[4:6]))
	return binary.BigEndian.Uint64(body[off : off+8])
}

// FirstClientPosition returns the earliest client position the server must retain.
func (f *FrameResume) FirstClientPosition() uint64 {
	body := f.Body()
	off := 6 + int(binary.BigEndian.Uint16(body[4:6])) + 8
	return binary.BigEndian.Uint64(body[off : off+8])
}

// Validate checks minimum body length given the encoded token length.
func (f *FrameResume) Validate() error {
	body := f.Body()
	if len(body) < 6 {
		return ErrInvalidFrame
	}
	tl := int(binary.BigEndian.Uint16(body[4:6]))
	if len(body) < 6+tl+16 {
		return ErrInvalidFrame
	}
	return nil
}

func (f *FrameResume) String() string { return "FrameResume{}" }

// FrameResumeOK is the server's acknowledgement of a successful resume.
type FrameResumeOK struct {
	*BaseFrame
}

// NewFrameResumeOK constructs an outbound RESUME_OK frame.
func NewFrameResumeOK(lastReceivedClientPosition uint64) *FrameResumeOK {
	bb := common.NewByteBuff()
	var pos [8]byte
	binary.BigEndian.PutUint64(pos[:], lastReceivedClientPosition)
	_, _ = bb.Write(pos[:])
	return &FrameResumeOK{NewBaseFrame(NewFrameHeader(0, FrameTypeResumeOK, 0), bb)}
}

// LastReceivedClientPosition returns the acknowledged client position.
func (f *FrameResumeOK) LastReceivedClientPosition() uint64 {
	return binary.BigEndian.Uint64(f.Body()[0:8])
}

// Validate checks the body carries a full 8-byte position.
func (f *FrameResumeOK) Validate() error {
	if len(f.Body()) < 8 {
		return ErrInvalidFrame
	}
	return nil
}

func (f *FrameResumeOK) String() string { return "FrameResumeOK{}" }
