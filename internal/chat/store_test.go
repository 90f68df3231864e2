package chat

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alkime/rapidvoice/internal/voice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestStore_InsertAndGet(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	sent := time.UnixMilli(1_700_000_000_000)
	vm := &voice.VoiceMessage{
		ID:        "v1",
		FilePath:  "/tmp/recording_1.mp3",
		Duration:  2500 * time.Millisecond,
		SizeBytes: 4096,
		CreatedAt: sent.Add(-time.Second),
	}

	require.NoError(t, s.Insert(ctx, Message{ID: "m1", Kind: KindVoice, Voice: vm, SentAt: sent}))

	got, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, KindVoice, got.Kind)
	assert.True(t, got.SentAt.Equal(sent))
	require.NotNil(t, got.Voice)
	assert.Equal(t, vm.ID, got.Voice.ID)
	assert.Equal(t, vm.FilePath, got.Voice.FilePath)
	assert.Equal(t, vm.Duration, got.Voice.Duration)
	assert.Equal(t, vm.SizeBytes, got.Voice.SizeBytes)
	assert.True(t, got.Voice.CreatedAt.Equal(vm.CreatedAt))
}

func TestStore_AudioPaths(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	paths, err := s.AudioPaths(ctx)
	require.NoError(t, err)
	assert.Empty(t, paths)

	now := time.Now()
	for _, m := range []Message{
		{ID: "m1", Kind: KindVoice, Voice: &voice.VoiceMessage{ID: "v1", FilePath: "/cache/a.mp3"}, SentAt: now},
		{ID: "m2", Kind: KindText, Content: "hi", SentAt: now},
		{ID: "m3", Kind: KindVoice, Voice: &voice.VoiceMessage{ID: "v2", FilePath: "/cache/b.mp3"}, SentAt: now},
		{ID: "m4", Kind: KindVoice, Voice: &voice.VoiceMessage{ID: "v2", FilePath: "/cache/b.mp3"}, SentAt: now},
	} {
		require.NoError(t, s.Insert(ctx, m))
	}

	paths, err = s.AudioPaths(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/cache/a.mp3", "/cache/b.mp3"}, paths)
}

func TestStore_TextMessage(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, Message{ID: "t1", Kind: KindText, Content: "hello", SentAt: time.Now()}))

	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
	assert.Nil(t, got.Voice)
}

func TestStore_GetMissing(t *testing.T) {
	s := openMemory(t)

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DuplicateID(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	m := Message{ID: "dup", Kind: KindText, Content: "a", SentAt: time.Now()}
	require.NoError(t, s.Insert(ctx, m))
	assert.Error(t, s.Insert(ctx, m))
}

func TestStore_ListOrdered(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	base := time.UnixMilli(1_700_000_000_000)
	for i, id := range []string{"c", "a", "b"} {
		m := Message{ID: id, Kind: KindText, Content: id, SentAt: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, s.Insert(ctx, m))
	}

	list, err := s.List(ctx)
	require.NoError(t, err)

	var ids []string
	for _, m := range list {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestStore_Delete(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, Message{ID: "x", Kind: KindText, Content: "x", SentAt: time.Now()}))

	ok, err := s.Delete(ctx, "x")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Delete(ctx, "x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_PersistsToFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "messages.sqlite")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, Message{ID: "keep", Kind: KindText, Content: "kept", SentAt: time.Now()}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Content)
}
