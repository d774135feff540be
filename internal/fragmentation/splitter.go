package fragmentation

import "github.com/flowmux/rsocket/internal/framing"

// SplitPayload splits a (metadata, data) pair larger than mtu into a FOLLOWS
// chain: a leading frame built by first (carrying the declared frame type's
// own fields) followed by zero or more FramePayload continuations with NEXT
// and COMPLETE cleared; FOLLOWS is set on every frame but the last. mtu <= 0 disables
// splitting and SplitPayload returns a single-element slice from first alone.
//
// This is the mirror of Accumulator: it is what actually produces the
// FOLLOWS chains the accumulator reassembles, so both directions round-trip.
func SplitPayload(streamID uint32, metadata, data []byte, mtu int, buildFirst func(chunkMeta, chunkData []byte, follows bool) framing.Frame) []framing.Frame {
	if mtu <= 0 {
		return []framing.Frame{buildFirst(metadata, data, false)}
	}

	var frames []framing.Frame
	metaRemaining, dataRemaining := metadata, data
	hasMeta := metadata != nil

	firstMeta, firstData, restMeta, restData := takeChunk(metaRemaining, dataRemaining, mtu)
	more := len(restMeta) > 0 || len(restData) > 0
	frames = append(frames, buildFirst(orNil(firstMeta, hasMeta), firstData, more))
	metaRemaining, dataRemaining = restMeta, restData

	for len(metaRemaining) > 0 || len(dataRemaining) > 0 {
		chunkMeta, chunkData, nextMeta, nextData := takeChunk(metaRemaining, dataRemaining, mtu)
		metaRemaining, dataRemaining = nextMeta, nextData
		more = len(metaRemaining) > 0 || len(dataRemaining) > 0
		frames = append(frames, framing.NewFramePayloadFragment(streamID, chunkData, orNil(chunkMeta, hasMeta), false, false, more))
	}
	return frames
}

func orNil(b []byte, present bool) []byte {
	if !present {
		return nil
	}
	return b
}

// takeChunk greedily fills up to mtu bytes from metadata first, then data.
func takeChunk(metadata, data []byte, mtu int) (chunkMeta, chunkData, restMeta, restData []byte) {
	budget := mtu
	if len(metadata) > 0 {
		n := len(metadata)
		if n > budget {
			n = budget
		}
		chunkMeta = metadata[:n]
		restMeta = metadata[n:]
		budget -= n
	}
	if budget > 0 && len(data) > 0 {
		n := len(data)
		if n > budget {
			n = budget
		}
		chunkData = data[:n]
		restData = data[n:]
	} else {
		restData = data
	}
	return
}
