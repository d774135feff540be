package socket

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientStreamIDsStartsAtOneAndIsOdd(t *testing.T) {
	ids := ClientStreamIDs()
	first, err := ids.Next()
	require.NoError(t, err)
	second, err := ids.Next()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), first)
	assert.Equal(t, uint32(3), second)
}

func TestServerStreamIDsStartsAtTwoAndIsEven(t *testing.T) {
	ids := ServerStreamIDs()
	first, err := ids.Next()
	require.NoError(t, err)
	second, err := ids.Next()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), first)
	assert.Equal(t, uint32(4), second)
}

func TestStreamIDsExhaustedAtUpperBound(t *testing.T) {
	ids := &StreamIDs{}
	ids.cur.Store(maxStreamID)
	id, err := ids.Next()
	require.NoError(t, err)
	assert.Equal(t, maxStreamID, id)

	_, err = ids.Next()
	assert.True(t, errors.Is(err, ErrStreamIDsExhausted))
}

func TestStreamIDsExhaustedAtZero(t *testing.T) {
	ids := &StreamIDs{}
	ids.cur.Store(0)
	_, err := ids.Next()
	assert.True(t, errors.Is(err, ErrStreamIDsExhausted))
}
