package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/ditto-upload/internal/apperror"
	"github.com/marmos91/ditto-upload/internal/catalogmodel"
)

func newTestFile(owner, path, name string) *catalogmodel.File {
	return &catalogmodel.File{
		ID:       catalogmodel.NewFileID(),
		OwnerID:  owner,
		FileName: name,
		Path:     path,
		FileType: "application/octet-stream",
		FileSize: 0,
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	f := newTestFile("owner-1", "", "a.txt")
	require.NoError(t, store.CreateFile(ctx, f))

	got, err := store.Get(ctx, "owner-1", f.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, f.FileName, got.FileName)

	missing, err := store.Get(ctx, "owner-1", catalogmodel.NewFileID())
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestStore_CreateFile_DuplicateID(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	f := newTestFile("owner-2", "", "dup.txt")
	require.NoError(t, store.CreateFile(ctx, f))

	dup := *f
	err := store.CreateFile(ctx, &dup)
	require.Error(t, err)
	require.Equal(t, apperror.AlreadyExists, apperror.CodeOf(err))
}

func TestStore_MarkUploadComplete(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	f := newTestFile("owner-3", "", "upload.bin")
	require.NoError(t, store.CreateFile(ctx, f))

	require.NoError(t, store.MarkUploadComplete(ctx, f.ID, "upload-123", 4096))

	got, err := store.Get(ctx, "owner-3", f.ID)
	require.NoError(t, err)
	require.True(t, got.UploadCompleted)
	require.Equal(t, int64(4096), got.FileSize)

	err = store.MarkUploadComplete(ctx, catalogmodel.NewFileID(), "nope", 1)
	require.Error(t, err)
	require.Equal(t, apperror.NotFound, apperror.CodeOf(err))
}

func TestStore_ListByPrefixAndMovePrefix(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	owner := "owner-4"
	require.NoError(t, store.CreateMany(ctx, []*catalogmodel.File{
		newTestFile(owner, "docs", "one.txt"),
		newTestFile(owner, "docs/sub", "two.txt"),
		newTestFile(owner, "other", "three.txt"),
	}))

	under, err := store.ListByPrefix(ctx, owner, "docs")
	require.NoError(t, err)
	require.Len(t, under, 2)

	require.NoError(t, store.MovePrefix(ctx, owner, "docs", "archive"))

	moved, err := store.ListByPrefix(ctx, owner, "archive")
	require.NoError(t, err)
	require.Len(t, moved, 2)

	gone, err := store.ListByPrefix(ctx, owner, "docs")
	require.NoError(t, err)
	require.Len(t, gone, 0)
}

func TestStore_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	owner := "owner-5"
	require.NoError(t, store.CreateMany(ctx, []*catalogmodel.File{
		newTestFile(owner, "tmp", "a.txt"),
		newTestFile(owner, "tmp/nested", "b.txt"),
	}))

	require.NoError(t, store.DeletePrefix(ctx, owner, "tmp"))

	remaining, err := store.ListByPrefix(ctx, owner, "tmp")
	require.NoError(t, err)
	require.Len(t, remaining, 0)
}

func TestStore_Ping(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.Ping(context.Background()))
}
