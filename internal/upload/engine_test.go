package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/ditto-upload/internal/apperror"
	catalogmem "github.com/marmos91/ditto-upload/internal/catalog/memory"
	"github.com/marmos91/ditto-upload/internal/catalogmodel"
	"github.com/marmos91/ditto-upload/internal/objectstore"
	objectmem "github.com/marmos91/ditto-upload/internal/objectstore/memory"
)

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func newTestEngine() (*Engine, *catalogmem.Store, *objectmem.Store) {
	cat := catalogmem.New()
	obj := objectmem.New()
	return New(obj, cat, Config{MaxParallelParts: 3, RetryDelay: time.Millisecond}), cat, obj
}

func TestEngine_SinglePartUploadCompletes(t *testing.T) {
	ctx := context.Background()
	engine, cat, _ := newTestEngine()

	created, err := engine.CreateUpload(ctx, "owner-1", "file.txt", "docs", "text/plain")
	require.NoError(t, err)

	body := []byte("hello world")
	err = engine.UploadPart(ctx, created.UploadID, created.FileID, 1, 1, body, checksum(body))
	require.NoError(t, err)

	require.Equal(t, 0, engine.ActiveSessions())

	record, err := cat.Get(ctx, "owner-1", created.FileID)
	require.NoError(t, err)
	require.True(t, record.UploadCompleted)
	require.Equal(t, int64(len(body)), record.FileSize)
	require.Equal(t, "text/plain", record.FileType)
}

func TestEngine_MultiPartUpload_OutOfOrderCompletesOnLastPart(t *testing.T) {
	ctx := context.Background()
	engine, cat, obj := newTestEngine()

	created, err := engine.CreateUpload(ctx, "owner-2", "big.bin", "", "application/octet-stream")
	require.NoError(t, err)

	p2 := []byte("part-two--")
	p1 := []byte("part-one--")
	p3 := []byte("part-three")

	require.NoError(t, engine.UploadPart(ctx, created.UploadID, created.FileID, 2, 3, p2, checksum(p2)))
	require.Equal(t, 1, engine.ActiveSessions())

	require.NoError(t, engine.UploadPart(ctx, created.UploadID, created.FileID, 1, 3, p1, checksum(p1)))
	require.Equal(t, 1, engine.ActiveSessions())

	require.NoError(t, engine.UploadPart(ctx, created.UploadID, created.FileID, 3, 3, p3, checksum(p3)))
	require.Equal(t, 0, engine.ActiveSessions())

	record, err := cat.Get(ctx, "owner-2", created.FileID)
	require.NoError(t, err)
	require.True(t, record.UploadCompleted)

	objectKey := record.OwnerID + "/" + record.ID.String()
	body, err := obj.GetObject(ctx, objectKey, 0, -1)
	require.NoError(t, err)
	defer body.Close()
	got, err := io.ReadAll(body)
	require.NoError(t, err)
	require.Equal(t, "part-one--part-two--part-three", string(got))
}

func TestEngine_UploadPart_ChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine()

	created, err := engine.CreateUpload(ctx, "owner-3", "f.bin", "", "")
	require.NoError(t, err)

	wrong := checksum([]byte("different bytes"))
	err = engine.UploadPart(ctx, created.UploadID, created.FileID, 1, 1, []byte("data"), wrong)
	require.Error(t, err)
	require.Equal(t, apperror.ChecksumMismatch, apperror.CodeOf(err))

	// The session survives a failed part so the client can resend it.
	require.Equal(t, 1, engine.ActiveSessions())

	body := []byte("data")
	require.NoError(t, engine.UploadPart(ctx, created.UploadID, created.FileID, 1, 1, body, checksum(body)))
	require.Equal(t, 0, engine.ActiveSessions())
}

func TestEngine_UploadPart_MalformedChecksumRejected(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine()

	created, err := engine.CreateUpload(ctx, "owner-3b", "f.bin", "", "")
	require.NoError(t, err)

	err = engine.UploadPart(ctx, created.UploadID, created.FileID, 1, 1, []byte("data"), "not-hex")
	require.Error(t, err)
	require.Equal(t, apperror.BadRequest, apperror.CodeOf(err))
}

func TestEngine_UploadPart_UnknownSession(t *testing.T) {
	engine, _, _ := newTestEngine()

	body := []byte("x")
	err := engine.UploadPart(context.Background(), "nonexistent", catalogmodel.FileID{}, 1, 1, body, checksum(body))
	require.Error(t, err)
	require.Equal(t, apperror.NotFound, apperror.CodeOf(err))
}

func TestEngine_UploadPart_FileIDMismatchIsConflict(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine()

	created, err := engine.CreateUpload(ctx, "owner-7", "f.bin", "", "")
	require.NoError(t, err)

	body := []byte("x")
	wrongFileID := catalogmodel.FileID{1, 2, 3}
	err = engine.UploadPart(ctx, created.UploadID, wrongFileID, 1, 1, body, checksum(body))
	require.Error(t, err)
	require.Equal(t, apperror.Conflict, apperror.CodeOf(err))
}

func TestEngine_UploadPart_EmptyBodyRejected(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine()

	created, err := engine.CreateUpload(ctx, "owner-4", "f.bin", "", "")
	require.NoError(t, err)

	err = engine.UploadPart(ctx, created.UploadID, created.FileID, 1, 2, nil, checksum(nil))
	require.Error(t, err)
	require.Equal(t, apperror.BadRequest, apperror.CodeOf(err))
}

func TestEngine_UploadPart_PartNumberOutOfRange(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine()

	created, err := engine.CreateUpload(ctx, "owner-4b", "f.bin", "", "")
	require.NoError(t, err)

	body := []byte("x")
	for _, partNumber := range []int{0, 3, -1} {
		err = engine.UploadPart(ctx, created.UploadID, created.FileID, partNumber, 2, body, checksum(body))
		require.Error(t, err)
		require.Equal(t, apperror.BadRequest, apperror.CodeOf(err))
	}
}

func TestEngine_UploadPart_TotalsMustStayConsistent(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine()

	created, err := engine.CreateUpload(ctx, "owner-4c", "f.bin", "", "")
	require.NoError(t, err)

	p1 := []byte("one")
	require.NoError(t, engine.UploadPart(ctx, created.UploadID, created.FileID, 1, 3, p1, checksum(p1)))

	p2 := []byte("two")
	err = engine.UploadPart(ctx, created.UploadID, created.FileID, 2, 4, p2, checksum(p2))
	require.Error(t, err)
	require.Equal(t, apperror.BadRequest, apperror.CodeOf(err))
}

func TestEngine_UploadPart_DuplicateResendIsAccepted(t *testing.T) {
	ctx := context.Background()
	engine, cat, _ := newTestEngine()

	created, err := engine.CreateUpload(ctx, "owner-4d", "f.bin", "", "")
	require.NoError(t, err)

	p1 := []byte("first-part")
	require.NoError(t, engine.UploadPart(ctx, created.UploadID, created.FileID, 1, 2, p1, checksum(p1)))
	require.NoError(t, engine.UploadPart(ctx, created.UploadID, created.FileID, 1, 2, p1, checksum(p1)))
	require.Equal(t, 1, engine.ActiveSessions())

	p2 := []byte("second")
	require.NoError(t, engine.UploadPart(ctx, created.UploadID, created.FileID, 2, 2, p2, checksum(p2)))

	record, err := cat.Get(ctx, "owner-4d", created.FileID)
	require.NoError(t, err)
	require.True(t, record.UploadCompleted)
	require.Equal(t, int64(len(p1)+len(p2)), record.FileSize)
}

func TestEngine_AbortUpload(t *testing.T) {
	ctx := context.Background()
	engine, cat, _ := newTestEngine()

	created, err := engine.CreateUpload(ctx, "owner-5", "f.bin", "", "")
	require.NoError(t, err)

	require.NoError(t, engine.AbortUpload(ctx, created.UploadID))
	require.Equal(t, 0, engine.ActiveSessions())

	record, err := cat.Get(ctx, "owner-5", created.FileID)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.False(t, record.UploadCompleted)

	err = engine.AbortUpload(ctx, created.UploadID)
	require.Error(t, err)
	require.Equal(t, apperror.NotFound, apperror.CodeOf(err))
}

// gaugedStore counts concurrent UploadPart calls to verify the
// per-session permit.
type gaugedStore struct {
	objectstore.Store
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (g *gaugedStore) UploadPart(ctx context.Context, key, uploadID string, partNumber int, body io.Reader, size int64, checksumSHA256 string) (string, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		peak := g.peak.Load()
		if n <= peak || g.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	return g.Store.UploadPart(ctx, key, uploadID, partNumber, body, size, checksumSHA256)
}

func TestEngine_PermitBoundsConcurrentParts(t *testing.T) {
	ctx := context.Background()
	cat := catalogmem.New()
	gauged := &gaugedStore{Store: objectmem.New()}
	engine := New(gauged, cat, Config{MaxParallelParts: 2})

	const totalParts = 5
	created, err := engine.CreateUpload(ctx, "owner-6", "f.bin", "", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 1; i <= totalParts; i++ {
		wg.Add(1)
		go func(partNumber int) {
			defer wg.Done()
			body := []byte{byte(partNumber)}
			_ = engine.UploadPart(ctx, created.UploadID, created.FileID, partNumber, totalParts, body, checksum(body))
		}(i)
	}
	wg.Wait()

	require.LessOrEqual(t, int(gauged.peak.Load()), 2)
	require.Equal(t, 0, engine.ActiveSessions())

	record, err := cat.Get(ctx, "owner-6", created.FileID)
	require.NoError(t, err)
	require.True(t, record.UploadCompleted)
	require.Equal(t, int64(totalParts), record.FileSize)
}

// flakyCompleteStore fails CompleteMultipart a fixed number of times
// before letting it through.
type flakyCompleteStore struct {
	objectstore.Store
	failures atomic.Int32
}

func (f *flakyCompleteStore) CompleteMultipart(ctx context.Context, key, uploadID string, parts []objectstore.CompletedPart) error {
	if f.failures.Add(-1) >= 0 {
		return apperror.New(apperror.Backend, "simulated complete failure")
	}
	return f.Store.CompleteMultipart(ctx, key, uploadID, parts)
}

func TestEngine_CommitFailureRetainsSessionForRetry(t *testing.T) {
	ctx := context.Background()
	cat := catalogmem.New()
	flaky := &flakyCompleteStore{Store: objectmem.New()}
	flaky.failures.Store(1)
	engine := New(flaky, cat, Config{})

	created, err := engine.CreateUpload(ctx, "owner-8", "f.bin", "", "")
	require.NoError(t, err)

	body := []byte("only part")
	err = engine.UploadPart(ctx, created.UploadID, created.FileID, 1, 1, body, checksum(body))
	require.Error(t, err)
	require.Equal(t, apperror.Backend, apperror.CodeOf(err))
	require.Equal(t, 1, engine.ActiveSessions())

	// Resending the final part retries the commit.
	require.NoError(t, engine.UploadPart(ctx, created.UploadID, created.FileID, 1, 1, body, checksum(body)))
	require.Equal(t, 0, engine.ActiveSessions())

	record, err := cat.Get(ctx, "owner-8", created.FileID)
	require.NoError(t, err)
	require.True(t, record.UploadCompleted)
}

// failingCatalog fails MarkUploadComplete while delegating everything
// else.
type failingCatalog struct {
	*catalogmem.Store
}

func (f *failingCatalog) MarkUploadComplete(ctx context.Context, id catalogmodel.FileID, uploadID string, size int64) error {
	return apperror.New(apperror.Backend, "simulated catalog outage")
}

func TestEngine_CatalogFailureAfterCompleteLeavesObjectBehind(t *testing.T) {
	ctx := context.Background()
	cat := &failingCatalog{Store: catalogmem.New()}
	obj := objectmem.New()
	engine := New(obj, cat, Config{})

	created, err := engine.CreateUpload(ctx, "owner-9", "f.bin", "", "")
	require.NoError(t, err)

	body := []byte("committed bytes")
	err = engine.UploadPart(ctx, created.UploadID, created.FileID, 1, 1, body, checksum(body))
	require.Error(t, err)
	require.Equal(t, apperror.Backend, apperror.CodeOf(err))

	// The multipart upload committed, so the session is gone and the
	// object exists; only the catalog row is stale.
	require.Equal(t, 0, engine.ActiveSessions())

	objectKey := catalogmodel.ObjectKey("owner-9", created.FileID)
	meta, err := obj.Head(ctx, objectKey)
	require.NoError(t, err)
	require.NotNil(t, meta)
	require.Equal(t, int64(len(body)), meta.Size)

	record, err := cat.Get(ctx, "owner-9", created.FileID)
	require.NoError(t, err)
	require.False(t, record.UploadCompleted)
}

func TestEngine_CreateUpload_RejectsDotDotPath(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine()

	_, err := engine.CreateUpload(ctx, "owner-10", "f.bin", "a/../b", "")
	require.Error(t, err)
	require.Equal(t, apperror.BadRequest, apperror.CodeOf(err))
}

// badDigestStore rejects every part the way a provider reports a
// checksum mismatch, counting attempts.
type badDigestStore struct {
	objectstore.Store
	attempts atomic.Int32
}

func (b *badDigestStore) UploadPart(ctx context.Context, key, uploadID string, partNumber int, body io.Reader, size int64, checksumSHA256 string) (string, error) {
	b.attempts.Add(1)
	return "", apperror.New(apperror.ChecksumMismatch, "provider rejected part checksum")
}

func TestEngine_ProviderBadDigestIsNotRetried(t *testing.T) {
	ctx := context.Background()
	cat := catalogmem.New()
	store := &badDigestStore{Store: objectmem.New()}
	engine := New(store, cat, Config{RetryDelay: time.Millisecond})

	created, err := engine.CreateUpload(ctx, "owner-11", "f.bin", "", "")
	require.NoError(t, err)

	body := []byte("bytes")
	err = engine.UploadPart(ctx, created.UploadID, created.FileID, 1, 1, body, checksum(body))
	require.Error(t, err)
	require.Equal(t, apperror.ChecksumMismatch, apperror.CodeOf(err))
	require.Equal(t, int32(1), store.attempts.Load())
}
