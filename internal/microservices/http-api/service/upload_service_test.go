package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomchat/internal/microservices/http-api/models"
	"roomchat/internal/security"
	"roomchat/internal/storage"
)

func newTestUploads(t *testing.T, s *testStack) UploadService {
	store, err := storage.NewLocalStore(t.TempDir(), "/files")
	require.NoError(t, err)
	return NewUploadService(store, s.rooms, security.NewClassifier(), 10)
}

func TestUploadService_Upload(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t)
	uploads := newTestUploads(t, s)
	_, err := s.rooms.Create(ctx, CreateRoomInput{Name: "Media", Type: models.RoomTypeMultimedia, Pin: strPtr(""), MaxFileMB: 1})
	require.NoError(t, err)
	_, err = s.rooms.Create(ctx, CreateRoomInput{Name: "General", Type: models.RoomTypeText, Pin: strPtr("")})
	require.NoError(t, err)
	alice := &models.User{Username: "alice"}

	resp, err := uploads.Upload(ctx, alice, "Media", "report.pdf", []byte("%PDF-1.7"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.PublicID, "chat_uploads/alice/"))
	assert.Equal(t, "pdf", resp.Format)
	assert.Equal(t, security.RiskLow, resp.SecurityCheck.RiskLevel)

	_, err = uploads.Upload(ctx, alice, "Media", "big.pdf", bytes.Repeat([]byte("a"), 1024*1024+1))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = uploads.Upload(ctx, alice, "Media", "tool.exe", []byte("MZ"))
	assert.ErrorIs(t, err, ErrFileTypeRejected)

	_, err = uploads.Upload(ctx, alice, "Media", "hidden.png", []byte("\x89PNG steghide payload"))
	assert.ErrorIs(t, err, ErrUnsafeFile)

	_, err = uploads.Upload(ctx, alice, "General", "notes.txt", []byte("hi"))
	assert.ErrorIs(t, err, ErrFilesNotAllowed)

	_, err = uploads.Upload(ctx, alice, "Nope", "notes.txt", []byte("hi"))
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestUploadService_Validate(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t)
	uploads := newTestUploads(t, s)

	ok, err := uploads.Validate(ctx, "photo.jpg", 1024, "")
	require.NoError(t, err)
	assert.True(t, ok.Valid)
	assert.Equal(t, 10, ok.MaxSizeMB)

	bad, err := uploads.Validate(ctx, "virus.exe", 20*1024*1024, "")
	require.NoError(t, err)
	assert.False(t, bad.Valid)
	assert.Len(t, bad.Errors, 2)
}

func TestUploadService_DeleteOwnership(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t)
	uploads := newTestUploads(t, s)
	alice := &models.User{Username: "alice"}
	bob := &models.User{Username: "bob"}
	admin := &models.User{Username: "root", IsAdmin: true}

	first, err := uploads.Upload(ctx, alice, "", "a.txt", []byte("a"))
	require.NoError(t, err)
	second, err := uploads.Upload(ctx, alice, "", "b.txt", []byte("b"))
	require.NoError(t, err)

	assert.ErrorIs(t, uploads.Delete(ctx, bob, first.PublicID), ErrForbidden)
	assert.NoError(t, uploads.Delete(ctx, alice, first.PublicID))
	assert.ErrorIs(t, uploads.Delete(ctx, alice, first.PublicID), ErrFileNotFound)
	assert.NoError(t, uploads.Delete(ctx, admin, second.PublicID))

	_, err = uploads.Thumbnail(ctx, second.PublicID, 100, 100)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestUploadService_ListOwnFiles(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t)
	uploads := newTestUploads(t, s)
	alice := &models.User{Username: "alice"}
	bob := &models.User{Username: "bob"}

	files, err := uploads.List(ctx, alice, 0)
	require.NoError(t, err)
	assert.Empty(t, files)

	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		_, err := uploads.Upload(ctx, alice, "", name, []byte(name))
		require.NoError(t, err)
	}
	_, err = uploads.Upload(ctx, bob, "", "d.txt", []byte("d"))
	require.NoError(t, err)

	files, err = uploads.List(ctx, alice, 0)
	require.NoError(t, err)
	assert.Len(t, files, 3)
	for _, f := range files {
		assert.True(t, strings.HasPrefix(f.PublicID, "chat_uploads/alice/"))
	}

	files, err = uploads.List(ctx, alice, 2)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}
