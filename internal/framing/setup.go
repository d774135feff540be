package framing

import (
	"encoding/binary"

	"github.com/flowmux/rsocket/internal/common"
)

// FrameSetup is the SETUP frame: the client's opening handshake, carrying
// protocol version, keepalive timings, optional resume token, and MIME types.
type FrameSetup struct {
	*BaseFrame
}

// SetupInfo bundles the parameters needed to build an outbound SETUP.
type SetupInfo struct {
	Major, Minor         uint16
	KeepaliveIntervalMs  uint32
	MaxLifetimeMs        uint32
	Token                []byte
	MetadataMimeType     string
	DataMimeType         string
	Data, Metadata       []byte
	Lease                bool
}

// NewFrameSetup constructs an outbound SETUP frame.
func NewFrameSetup(info SetupInfo) *FrameSetup {
	var flags FrameFlag
	hasMeta := info.Metadata != nil
	if hasMeta {
		flags |= FlagMetadata
	}
	if info.Token != nil {
		flags |= FlagResume
	}
	if info.Lease {
		flags |= FlagLease
	}
	bb := common.NewByteBuff()
	var hdr [12]byte
	binary.BigEndian.PutUint16(hdr[0:2], info.Major)
	binary.BigEndian.PutUint16(hdr[2:4], info.Minor)
	binary.BigEndian.PutUint32(hdr[4:8], info.KeepaliveIntervalMs)
	binary.BigEndian.PutUint32(hdr[8:12], info.MaxLifetimeMs)
	_, _ = bb.Write(hdr[:])
	if info.Token != nil {
		var tl [2]byte
		binary.BigEndian.PutUint16(tl[:], uint16(len(info.Token)))
		_, _ = bb.Write(tl[:])
		_, _ = bb.Write(info.Token)
	}
	writeMimeType(bb, info.MetadataMimeType)
	writeMimeType(bb, info.DataMimeType)
	writeMetadataData(bb, info.Metadata, info.Data, hasMeta)
	return &FrameSetup{NewBaseFrame(NewFrameHeader(0, FrameTypeSetup, flags), bb)}
}

func writeMimeType(bb *common.ByteBuff, mime string) {
	_ = bb.WriteByte(byte(len(mime)))
	_, _ = bb.Write([]byte(mime))
}

// Version returns the (major, minor) protocol version the SETUP proposes.
func (f *FrameSetup) Version() (uint16, uint16) {
	body := f.Body()
	return binary.BigEndian.Uint16(body[0:2]), binary.BigEndian.Uint16(body[2:4])
}

// KeepaliveInterval returns the requested keepalive interval in milliseconds.
func (f *FrameSetup) KeepaliveInterval() uint32 {
	return binary.BigEndian.Uint32(f.Body()[4:8])
}

// MaxLifetime returns the requested max lifetime in milliseconds.
func (f *FrameSetup) MaxLifetime() uint32 {
	return binary.BigEndian.Uint32(f.Body()[8:12])
}

// Token returns the resume token, if RESUME_ENABLE is set.
func (f *FrameSetup) Token() []byte {
	if !f.Header().Flag().Check(FlagResume) {
		return nil
	}
	body := f.Body()
	tl := int(binary.BigEndian.Uint16(body[12:14]))
	return body[14 : 14+tl]
}

func (f *FrameSetup) mimeOffset() int {
	off := 12
	if f.Header().Flag().Check(FlagResume) {
		tl := int(binary.BigEndian.Uint16(f.Body()[12:14]))
		off = 14 + tl
	}
	return off
}

// MetadataMimeType returns the declared metadata MIME type.
func (f *FrameSetup) MetadataMimeType() string {
	body := f.Body()
	off := f.mimeOffset()
	l := int(body[off])
	return string(body[off+1 : off+1+l])
}

// DataMimeType returns the declared data MIME type.
func (f *FrameSetup) DataMimeType() string {
	body := f.Body()
	off := f.mimeOffset()
	l := int(body[off])
	off += 1 + l
	l2 := int(body[off])
	return string(body[off+1 : off+1+l2])
}

func (f *FrameSetup) payloadOffset() int {
	body := f.Body()
	off := f.mimeOffset()
	l := int(body[off])
	off += 1 + l
	l2 := int(body[off])
	off += 1 + l2
	return off
}

// Metadata returns the SETUP's own metadata, if present.
func (f *FrameSetup) Metadata() ([]byte, bool) {
	md, _, _ := splitMetadataData(f.Body(), f.payloadOffset(), f.Header().Flag().Check(FlagMetadata))
	return md, f.Header().Flag().Check(FlagMetadata)
}

// Data returns the SETUP's own data.
func (f *FrameSetup) Data() []byte {
	_, data, _ := splitMetadataData(f.Body(), f.payloadOffset(), f.Header().Flag().Check(FlagMetadata))
	return data
}

// Validate checks minimum body length and internal length fields.
func (f *FrameSetup) Validate() error {
	if len(f.Body()) < 12 {
		return ErrInvalidFrame
	}
	_, _, err := splitMetadataData(f.Body(), f.payloadOffset(), f.Header().Flag().Check(FlagMetadata))
	return err
}

func (f *FrameSetup) String() string { return "FrameSetup{}" }
