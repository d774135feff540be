// Package payload defines the RSocket application payload: an optional
// metadata byte slice paired with an optional data byte slice.
package payload

// Payload is the immutable (data, metadata) pair carried by most frames.
type Payload interface {
	// Data returns the data section. Never nil; may be empty.
	Data() []byte
	// Metadata returns the metadata section and whether it was present.
	Metadata() ([]byte, bool)
}

type simplePayload struct {
	data     []byte
	metadata []byte
	hasMeta  bool
}

func (p *simplePayload) Data() []byte {
	return p.data
}

func (p *simplePayload) Metadata() ([]byte, bool) {
	return p.metadata, p.hasMeta
}

// New creates a Payload from raw data and optional metadata.
func New(data, metadata []byte) Payload {
	if data == nil {
		data = []byte{}
	}
	p := &simplePayload{data: data}
	if metadata != nil {
		p.metadata = metadata
		p.hasMeta = true
	}
	return p
}

// NewString creates a Payload from string data and optional string metadata.
func NewString(data, metadata string) Payload {
	var md []byte
	if metadata != "" {
		md = []byte(metadata)
	}
	return New([]byte(data), md)
}

// Clone makes a defensive copy of p, safe to retain beyond the frame that
// produced it (decoded payloads alias pooled frame buffers).
func Clone(p Payload) Payload {
	data := append([]byte(nil), p.Data()...)
	md, ok := p.Metadata()
	if !ok {
		return New(data, nil)
	}
	return New(data, append([]byte(nil), md...))
}
