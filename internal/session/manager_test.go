package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSocket struct {
	closed bool
}

func (f *fakeSocket) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSocket) IsClosed() bool { return f.closed }

func TestManagerPopReturnsNearestDeadlineFirst(t *testing.T) {
	m := NewManager()
	now := time.Now()
	far := NewSession(now.Add(time.Hour), []byte("far"), &fakeSocket{})
	near := NewSession(now.Add(time.Minute), []byte("near"), &fakeSocket{})
	mid := NewSession(now.Add(time.Minute*30), []byte("mid"), &fakeSocket{})

	m.Push(far)
	m.Push(near)
	m.Push(mid)

	require.Equal(t, 3, m.Len())
	assert.Equal(t, near, m.Pop())
	assert.Equal(t, mid, m.Pop())
	assert.Equal(t, far, m.Pop())
	assert.Nil(t, m.Pop())
}

func TestManagerLoadRemovesSessionFromHeapAndIndex(t *testing.T) {
	m := NewManager()
	s := NewSession(time.Now().Add(time.Minute), []byte("tok"), &fakeSocket{})
	other := NewSession(time.Now().Add(time.Hour), []byte("other"), &fakeSocket{})
	m.Push(s)
	m.Push(other)

	got, ok := m.Load([]byte("tok"))
	require.True(t, ok)
	assert.Equal(t, s, got)
	assert.Equal(t, 1, m.Len())

	_, ok = m.Load([]byte("tok"))
	assert.False(t, ok)

	assert.Equal(t, other, m.Pop())
}

func TestManagerLoadMissingTokenReturnsFalse(t *testing.T) {
	m := NewManager()
	_, ok := m.Load([]byte("nope"))
	assert.False(t, ok)
}

func TestSessionIsDeadWhenDeadlinePassed(t *testing.T) {
	s := NewSession(time.Now().Add(-time.Second), []byte("tok"), &fakeSocket{})
	assert.True(t, s.IsDead())
}

func TestSessionIsDeadWhenSocketAlreadyClosed(t *testing.T) {
	sock := &fakeSocket{closed: true}
	s := NewSession(time.Now().Add(time.Hour), []byte("tok"), sock)
	assert.True(t, s.IsDead())
}

func TestSessionIsAliveOtherwise(t *testing.T) {
	s := NewSession(time.Now().Add(time.Hour), []byte("tok"), &fakeSocket{})
	assert.False(t, s.IsDead())
}

func TestSessionCloseDelegatesToSocket(t *testing.T) {
	sock := &fakeSocket{}
	s := NewSession(time.Now().Add(time.Hour), []byte("tok"), sock)
	require.NoError(t, s.Close())
	assert.True(t, sock.closed)
}
