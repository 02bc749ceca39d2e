package upload

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/marmos91/ditto-upload/internal/apperror"
	"github.com/marmos91/ditto-upload/internal/catalog"
	"github.com/marmos91/ditto-upload/internal/catalogmodel"
	"github.com/marmos91/ditto-upload/internal/logger"
	"github.com/marmos91/ditto-upload/internal/metrics"
	"github.com/marmos91/ditto-upload/internal/objectstore"
	"github.com/marmos91/ditto-upload/internal/pathutil"
	"github.com/marmos91/ditto-upload/internal/telemetry"
)

// Config tunes the Engine's retry and concurrency policy.
type Config struct {
	// MaxParallelParts bounds concurrent part uploads per session.
	MaxParallelParts int

	// PartRetries is the number of additional attempts after the first
	// on a transient object-store failure.
	PartRetries int

	// RetryDelay is the pause between attempts; never more than a second.
	RetryDelay time.Duration

	// MaxPartSize caps the body of any single UploadPart call, in bytes.
	// A client sending a larger part gets a BadRequest rather than tying
	// up a goroutine copying an oversized buffer. Zero selects the 64 MiB
	// default.
	MaxPartSize int64

	// Metrics, if non-nil, receives Prometheus observations for every
	// part upload and session lifecycle transition. Safe to leave nil.
	Metrics *metrics.Metrics
}

func (c *Config) applyDefaults() {
	if c.MaxParallelParts == 0 {
		c.MaxParallelParts = 3
	}
	if c.PartRetries == 0 {
		c.PartRetries = 2
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 200 * time.Millisecond
	}
	if c.RetryDelay > time.Second {
		c.RetryDelay = time.Second
	}
	if c.MaxPartSize == 0 {
		c.MaxPartSize = 64 << 20
	}
}

// Engine owns the live set of in-flight upload sessions: a map guarded
// by a sync.RWMutex, so session lookups never block other lookups, and
// each session's own semaphore bounds its part parallelism.
type Engine struct {
	cfg Config

	objects objectstore.Store
	catalog catalog.Catalog
	metrics *metrics.Metrics

	mu       sync.RWMutex
	sessions map[string]*session
}

// New creates an Engine over the given stores.
func New(objects objectstore.Store, cat catalog.Catalog, cfg Config) *Engine {
	cfg.applyDefaults()
	return &Engine{
		cfg:      cfg,
		objects:  objects,
		catalog:  cat,
		metrics:  cfg.Metrics,
		sessions: make(map[string]*session),
	}
}

// CreatedUpload is the result of CreateUpload.
type CreatedUpload struct {
	FileID   catalogmodel.FileID
	UploadID string
}

// CreateUpload starts a new resumable upload: it derives the object key
// from owner and a fresh file id (never from path, so moves and renames
// stay catalog-only), opens the multipart upload, inserts the catalog
// row, and registers the in-memory session. If the catalog insert fails
// the multipart upload is aborted so no orphan is left behind.
func (e *Engine) CreateUpload(ctx context.Context, ownerID, fileName, path, contentType string) (*CreatedUpload, error) {
	if ownerID == "" {
		return nil, apperror.New(apperror.BadRequest, "owner_id is required")
	}
	if fileName == "" {
		return nil, apperror.New(apperror.BadRequest, "file_name is required")
	}

	sanitizedPath, err := pathutil.Sanitize(path)
	if err != nil {
		return nil, err
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	fileID := catalogmodel.NewFileID()
	objectKey := catalogmodel.ObjectKey(ownerID, fileID)

	uploadID, err := e.objects.InitiateMultipart(ctx, objectKey, contentType)
	if err != nil {
		return nil, apperror.Wrap(apperror.Backend, "initiate multipart upload failed", err)
	}

	record := &catalogmodel.File{
		ID:              fileID,
		OwnerID:         ownerID,
		FileName:        fileName,
		Path:            sanitizedPath,
		FileType:        contentType,
		FileSize:        0,
		UploadID:        uploadID,
		UploadCompleted: false,
	}

	if err := e.catalog.CreateFile(ctx, record); err != nil {
		if abortErr := e.objects.AbortMultipart(ctx, objectKey, uploadID); abortErr != nil {
			logger.Error("abort multipart after catalog failure", "upload_id", uploadID, "error", abortErr)
		}
		return nil, err
	}

	sess := newSession(uploadID, fileID, ownerID, objectKey, contentType, e.cfg.MaxParallelParts)

	e.mu.Lock()
	e.sessions[uploadID] = sess
	e.mu.Unlock()
	e.metrics.SetActiveUploads(e.ActiveSessions())

	return &CreatedUpload{FileID: fileID, UploadID: uploadID}, nil
}

func (e *Engine) findSession(uploadID string) (*session, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sess, ok := e.sessions[uploadID]
	return sess, ok
}

func (e *Engine) detachSession(uploadID string) {
	e.mu.Lock()
	delete(e.sessions, uploadID)
	e.mu.Unlock()
	e.metrics.SetActiveUploads(e.ActiveSessions())
}

// UploadPart uploads one part of a live session, verifying its checksum,
// and commits the session when the final part lands. The first part a
// session sees pins totalParts; later parts must repeat it. Duplicate
// part numbers are accepted last-write-wins, so client retries of an
// identical part are safe.
func (e *Engine) UploadPart(ctx context.Context, uploadID string, fileID catalogmodel.FileID, partNumber, totalParts int, body []byte, checksumSHA256Hex string) error {
	sess, ok := e.findSession(uploadID)
	if !ok {
		return apperror.New(apperror.NotFound, "no live session for upload_id")
	}
	if sess.fileID != fileID {
		return apperror.New(apperror.Conflict, "upload_id does not match file_id")
	}
	if len(body) == 0 {
		return apperror.New(apperror.BadRequest, "part body must not be empty")
	}
	if e.cfg.MaxPartSize > 0 && int64(len(body)) > e.cfg.MaxPartSize {
		return apperror.New(apperror.BadRequest, "part body exceeds max_part_size")
	}
	if totalParts < 1 {
		return apperror.New(apperror.BadRequest, "totalChunks must be positive")
	}
	if partNumber < 1 || partNumber > totalParts {
		return apperror.New(apperror.BadRequest, "part_number out of range")
	}

	checksumB64, err := verifyChecksum(body, checksumSHA256Hex)
	if err != nil {
		return err
	}

	if err := sess.registerTotals(totalParts); err != nil {
		return err
	}

	if err := sess.acquire(ctx); err != nil {
		return err
	}

	etag, err := e.uploadPartWithRetry(ctx, sess, partNumber, body, checksumB64)
	if err != nil {
		sess.release()
		return err
	}

	sess.addPart(Part{PartNumber: partNumber, ETag: normalizeETag(etag), Size: int64(len(body))})
	sess.release()

	if !sess.tryBeginCommit() {
		return nil
	}
	return e.commit(ctx, sess)
}

// verifyChecksum checks the client-supplied hex SHA-256 against body and
// returns the base64 form the object store wants.
func verifyChecksum(body []byte, expectedHex string) (string, error) {
	if expectedHex == "" {
		return "", apperror.New(apperror.BadRequest, "checksum_sha256_hex is required")
	}
	if len(expectedHex) != sha256.Size*2 {
		return "", apperror.New(apperror.BadRequest, "checksum must be 64 hex characters")
	}
	if _, err := hex.DecodeString(expectedHex); err != nil {
		return "", apperror.New(apperror.BadRequest, "checksum must be 64 hex characters")
	}
	sum := sha256.Sum256(body)
	if !strings.EqualFold(hex.EncodeToString(sum[:]), expectedHex) {
		return "", apperror.New(apperror.ChecksumMismatch, "sha256 checksum mismatch")
	}
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

func normalizeETag(etag string) string {
	return strings.Trim(etag, `"`)
}

// uploadPartWithRetry retries transient object-store failures up to
// cfg.PartRetries additional attempts. A ChecksumMismatch from the
// provider (BadDigest) is surfaced immediately, never retried.
func (e *Engine) uploadPartWithRetry(ctx context.Context, sess *session, partNumber int, body []byte, checksumB64 string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= e.cfg.PartRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", apperror.Wrap(apperror.Cancelled, "context cancelled during retry", ctx.Err())
			case <-time.After(e.cfg.RetryDelay):
			}
		}

		spanCtx, span := telemetry.StartObjectSpan(ctx, telemetry.SpanObjectPut, sess.objectKey, telemetry.PartNumber(partNumber), telemetry.Bytes(int64(len(body))))
		start := time.Now()
		etag, err := e.objects.UploadPart(spanCtx, sess.objectKey, sess.uploadID, partNumber, bytes.NewReader(body), int64(len(body)), checksumB64)
		telemetry.RecordError(spanCtx, err)
		span.End()
		e.metrics.ObserveObjectOp("UploadPart", time.Since(start), err)
		if err == nil {
			e.metrics.RecordBytes("write", int64(len(body)))
			e.metrics.RecordPartNumber(partNumber)
			return etag, nil
		}
		if apperror.CodeOf(err) == apperror.ChecksumMismatch {
			return "", err
		}
		lastErr = err
	}
	return "", apperror.Wrap(apperror.Backend, "upload part failed after retries", lastErr)
}

// commit finalizes a complete session. CompleteMultipart is attempted
// once per claim: if it fails the session stays in the live set with the
// commit claim released, so a client retry of the final part can try
// again. Once the object store has assembled the object the session is
// detached; a catalog failure after that point leaves the row
// upload_completed=false and is surfaced as Backend. The object exists
// and the scanner will still index it.
func (e *Engine) commit(ctx context.Context, sess *session) error {
	parts := sess.snapshot()

	completed := make([]objectstore.CompletedPart, len(parts))
	var totalSize int64
	for i, p := range parts {
		completed[i] = objectstore.CompletedPart{PartNumber: p.PartNumber, ETag: p.ETag}
		totalSize += p.Size
	}

	spanCtx, span := telemetry.StartObjectSpan(ctx, telemetry.SpanObjectComplete, sess.objectKey, telemetry.Bytes(totalSize))
	start := time.Now()
	err := e.objects.CompleteMultipart(spanCtx, sess.objectKey, sess.uploadID, completed)
	telemetry.RecordError(spanCtx, err)
	span.End()
	e.metrics.ObserveObjectOp("CompleteMultipart", time.Since(start), err)
	if err != nil {
		sess.failCommit()
		return apperror.Wrap(apperror.Backend, "complete multipart upload failed", err)
	}

	e.detachSession(sess.uploadID)

	if err := e.catalog.MarkUploadComplete(ctx, sess.fileID, sess.uploadID, totalSize); err != nil {
		return apperror.Wrap(apperror.Backend, "mark upload complete failed", err)
	}

	logger.Info("upload complete", "upload_id", sess.uploadID, "object_key", sess.objectKey,
		"parts", len(parts), "size", humanize.Bytes(uint64(totalSize)))
	return nil
}

// AbortUpload best-effort cancels a live session's multipart upload and
// removes it from the live set. The catalog row is left in place with
// upload_completed=false for an out-of-band reaper.
func (e *Engine) AbortUpload(ctx context.Context, uploadID string) error {
	sess, ok := e.findSession(uploadID)
	if !ok {
		return apperror.New(apperror.NotFound, "no live session for upload_id")
	}

	e.detachSession(uploadID)

	if err := e.objects.AbortMultipart(ctx, sess.objectKey, sess.uploadID); err != nil {
		logger.Error("best-effort abort multipart failed", "upload_id", uploadID, "error", err)
	}
	return nil
}

// ActiveSessions returns the number of in-flight sessions, for tests and
// diagnostics.
func (e *Engine) ActiveSessions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sessions)
}
