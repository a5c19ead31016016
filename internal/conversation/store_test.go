package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	store.Current().AddUserMessage("hello")
	store.Current().AddAssistantMessage("hi there", "A")
	sessionID := store.Current().SessionID

	require.NoError(t, store.Save())

	other := NewStore(dir)
	loaded, err := other.Load(sessionID)
	require.NoError(t, err)

	assert.Equal(t, store.Current().Messages, loaded.Messages)
}

func TestEmptySessionIsNeverPersisted(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, store.Save())

	sessions, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestStartNewFlushesPriorSession(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	store.Current().AddUserMessage("keep me")
	prevID := store.Current().SessionID

	_, err := store.StartNew()
	require.NoError(t, err)

	sessions, err := store.List()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, prevID, sessions[0].SessionID)
}

func TestListOrdersNewestFirst(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	store.Current().AddUserMessage("first")
	require.NoError(t, store.Save())

	_, err := store.StartNew()
	require.NoError(t, err)
	// Space the two writes apart so their modification times differ.
	time.Sleep(20 * time.Millisecond)
	store.Current().AddUserMessage("second")
	secondID := store.Current().SessionID
	require.NoError(t, store.Save())

	sessions, err := store.List()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, secondID, sessions[0].SessionID)
}
