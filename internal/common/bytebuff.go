package common

import (
	"bytes"
	"sync"
)

var byteBuffPool = sync.Pool{
	New: func() interface{} {
		return new(ByteBuff)
	},
}

// ByteBuff is a pooled growable byte buffer used as the backing store for
// decoded frame bodies.
type ByteBuff struct {
	bytes.Buffer
}

// NewByteBuff borrows a ByteBuff from the pool.
func NewByteBuff() *ByteBuff {
	return byteBuffPool.Get().(*ByteBuff)
}

// ReleaseByteBuff resets bb and returns it to the pool. Callers must not use
// bb after calling this.
func ReleaseByteBuff(bb *ByteBuff) {
	if bb == nil {
		return
	}
	bb.Reset()
	byteBuffPool.Put(bb)
}
