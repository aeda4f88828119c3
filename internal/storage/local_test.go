package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutAndDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir(), "/files/")
	require.NoError(t, err)

	file, err := store.Put(ctx, "chat_uploads/alice", "Holiday.JPG", []byte("jpeg-bytes"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(file.PublicID, "chat_uploads/alice/"))
	assert.True(t, strings.HasSuffix(file.PublicID, ".jpg"))
	assert.Equal(t, "/files/"+file.PublicID, file.URL)
	assert.Equal(t, "jpg", file.Format)
	assert.Equal(t, int64(10), file.Bytes)

	data, err := os.ReadFile(filepath.Join(store.Root(), filepath.FromSlash(file.PublicID)))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	thumb, err := store.ThumbnailURL(file.PublicID, 150, 100)
	require.NoError(t, err)
	assert.Contains(t, thumb, "h=100")
	assert.Contains(t, thumb, "w=150")

	require.NoError(t, store.Delete(ctx, file.PublicID))
	assert.ErrorIs(t, store.Delete(ctx, file.PublicID), ErrNotFound)

	_, err = store.ThumbnailURL(file.PublicID, 150, 100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/files")
	require.NoError(t, err)

	assert.ErrorIs(t, store.Delete(context.Background(), "../etc/passwd"), ErrInvalidPublic)
	assert.ErrorIs(t, store.Delete(context.Background(), ""), ErrInvalidPublic)
}

func TestLocalStore_EmptyFolderDefaults(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/files")
	require.NoError(t, err)

	file, err := store.Put(context.Background(), "", "notes.txt", []byte("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(file.PublicID, "uploads/"))
}

func TestLocalStore_List(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir(), "/files")
	require.NoError(t, err)

	files, err := store.List(ctx, "chat_uploads/alice", 10)
	require.NoError(t, err)
	assert.Empty(t, files)

	older, err := store.Put(ctx, "chat_uploads/alice", "a.txt", []byte("a"))
	require.NoError(t, err)
	newer, err := store.Put(ctx, "chat_uploads/alice", "b.PDF", []byte("bb"))
	require.NoError(t, err)
	_, err = store.Put(ctx, "chat_uploads/bob", "c.txt", []byte("c"))
	require.NoError(t, err)
	stamp := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(store.Root(), filepath.FromSlash(older.PublicID)), stamp, stamp))

	files, err = store.List(ctx, "chat_uploads/alice", 10)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, newer.PublicID, files[0].PublicID)
	assert.Equal(t, "pdf", files[0].Format)
	assert.Equal(t, int64(2), files[0].Bytes)
	assert.Equal(t, "/files/"+older.PublicID, files[1].URL)

	files, err = store.List(ctx, "chat_uploads/alice", 1)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, newer.PublicID, files[0].PublicID)
}
