// Package upload implements the resumable multipart upload engine. It
// owns the live set of in-flight sessions, enforces per-session
// concurrency and checksum integrity, and commits each session exactly
// once.
package upload

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/marmos91/ditto-upload/internal/apperror"
	"github.com/marmos91/ditto-upload/internal/catalogmodel"
)

// Part is one uploaded, acknowledged part of a session.
type Part struct {
	PartNumber int
	ETag       string
	Size       int64
}

// session is the mutable state for one in-flight multipart upload. It is
// never shared outside this package; callers interact through Engine.
type session struct {
	uploadID    string
	fileID      catalogmodel.FileID
	ownerID     string
	objectKey   string
	contentType string

	createdAt    time.Time
	lastActivity time.Time

	gate chan struct{} // buffered to maxParallelParts, acts as a semaphore

	mu            sync.Mutex
	expectedParts int // first seen totalChunks; 0 until the first part arrives
	committing    bool
	parts         map[int]Part
	totalBytes    int64
}

func newSession(uploadID string, fileID catalogmodel.FileID, ownerID, objectKey, contentType string, maxParallelParts int) *session {
	now := time.Now()
	return &session{
		uploadID:     uploadID,
		fileID:       fileID,
		ownerID:      ownerID,
		objectKey:    objectKey,
		contentType:  contentType,
		createdAt:    now,
		lastActivity: now,
		gate:         make(chan struct{}, maxParallelParts),
		parts:        make(map[int]Part),
	}
}

// acquire blocks until a concurrency permit is available or ctx is
// cancelled.
func (s *session) acquire(ctx context.Context) error {
	select {
	case s.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return apperror.Wrap(apperror.Cancelled, "context cancelled waiting for part permit", ctx.Err())
	}
}

// release returns a concurrency permit.
func (s *session) release() {
	<-s.gate
}

// registerTotals pins the session's expected part count to the first
// totalChunks a client sends; every later part must repeat the same
// value.
func (s *session) registerTotals(total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expectedParts == 0 {
		s.expectedParts = total
		return nil
	}
	if s.expectedParts != total {
		return apperror.Newf(apperror.BadRequest, "totalChunks %d does not match the session's expected %d", total, s.expectedParts)
	}
	return nil
}

// addPart records a successfully uploaded part. Duplicate part numbers
// are last-write-wins.
func (s *session) addPart(p Part) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prior, exists := s.parts[p.PartNumber]; exists {
		s.totalBytes += p.Size - prior.Size
	} else {
		s.totalBytes += p.Size
	}
	s.parts[p.PartNumber] = p
	s.lastActivity = time.Now()
}

// tryBeginCommit atomically checks whether every expected part has been
// recorded and, if so, claims the commit. The check and the claim happen
// under the same lock, so exactly one caller observes the final
// condition even when the last two parts race.
func (s *session) tryBeginCommit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.committing || s.expectedParts == 0 || len(s.parts) < s.expectedParts {
		return false
	}
	s.committing = true
	return true
}

// failCommit releases the commit claim after a failed CompleteMultipart
// so a later part retry can attempt it again.
func (s *session) failCommit() {
	s.mu.Lock()
	s.committing = false
	s.mu.Unlock()
}

// snapshot returns the parts sorted by part number ascending, for commit.
func (s *session) snapshot() []Part {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Part, 0, len(s.parts))
	for _, p := range s.parts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartNumber < out[j].PartNumber })
	return out
}
