package websocket

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomchat/internal/testutil"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := newKeyedMutex()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("room")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Zero(t, k.size())
}

func TestKeyedMutex_DistinctKeysDoNotBlock(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		k.Lock("b")()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
}

func TestKeyedMutex_LockAllOverlappingSets(t *testing.T) {
	k := newKeyedMutex()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			k.LockAll("x", "y", "")()
		}()
		go func() {
			defer wg.Done()
			k.LockAll("y", "x", "x")()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("LockAll deadlocked")
	}
	assert.Zero(t, k.size())
}

func TestRoom_AddRemoveBroadcast(t *testing.T) {
	r := NewRoom("General", testutil.DiscardLogger())
	a, b := &fakeConn{id: "a"}, &fakeConn{id: "b"}

	assert.True(t, r.Add(a))
	assert.False(t, r.Add(a))
	assert.True(t, r.Add(b))
	assert.Equal(t, []string{"a", "b"}, r.ConnIDs())

	frame, err := Encode(EventUserTyping, UserTypingPayload{Username: "x", Room: "General"})
	require.NoError(t, err)
	r.Broadcast(frame, "a")
	assert.Empty(t, a.events())
	assert.Equal(t, []EventType{EventUserTyping}, b.events())

	// a closed member is skipped, the rest still receive
	require.NoError(t, b.Close())
	r.Broadcast(frame, "")
	assert.Len(t, a.events(), 1)

	assert.True(t, r.Remove("b"))
	assert.False(t, r.Remove("b"))
	assert.False(t, r.Has("b"))
	assert.Equal(t, 1, r.Count())
}
