// Package memory implements objectstore.Store entirely in process
// memory, for tests that exercise the upload engine and scanner without
// a real S3-compatible backend.
package memory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/ditto-upload/internal/apperror"
	"github.com/marmos91/ditto-upload/internal/objectstore"
)

type object struct {
	data         []byte
	lastModified time.Time
}

type multipartSession struct {
	mu    sync.Mutex
	parts map[int][]byte
}

// Store is an in-memory objectstore.Store.
type Store struct {
	mu      sync.RWMutex
	objects map[string]*object

	sessionsMu sync.Mutex
	sessions   map[string]*multipartSession
}

// New creates an empty in-memory object store.
func New() *Store {
	return &Store{
		objects:  make(map[string]*object),
		sessions: make(map[string]*multipartSession),
	}
}

func (s *Store) EnsureBucket(ctx context.Context) error { return nil }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Head(ctx context.Context, key string) (*objectstore.ObjectMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, nil
	}
	return &objectstore.ObjectMeta{
		Key:          key,
		Size:         int64(len(obj.data)),
		LastModified: obj.lastModified,
	}, nil
}

func (s *Store) GetObject(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, apperror.New(apperror.NotFound, "object not found")
	}

	data := obj.data
	if offset < 0 {
		offset = 0
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	end := int64(len(data))
	if length >= 0 && offset+length < end {
		end = offset + length
	}
	return io.NopCloser(bytes.NewReader(data[offset:end])), nil
}

func (s *Store) CopyObject(ctx context.Context, srcKey, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.objects[srcKey]
	if !ok {
		return apperror.New(apperror.NotFound, "object not found")
	}
	data := make([]byte, len(src.data))
	copy(data, src.data)
	s.objects[dstKey] = &object{data: data, lastModified: time.Now()}
	return nil
}

func (s *Store) PutEmpty(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = &object{data: nil, lastModified: time.Now()}
	return nil
}

func (s *Store) DeleteObject(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *Store) DeleteObjects(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.objects, k)
	}
	return nil
}

func (s *Store) ListPage(ctx context.Context, prefix, delimiter, cursor string) (objectstore.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	page := objectstore.Page{}
	seenPrefixes := make(map[string]bool)

	for _, k := range keys {
		if cursor != "" && k <= cursor {
			continue
		}

		rest := k[len(prefix):]
		if delimiter != "" {
			if idx := strings.Index(rest, delimiter); idx >= 0 {
				common := prefix + rest[:idx+len(delimiter)]
				if !seenPrefixes[common] {
					seenPrefixes[common] = true
					page.CommonPrefixes = append(page.CommonPrefixes, common)
				}
				continue
			}
		}

		obj := s.objects[k]
		if len(obj.data) == 0 {
			continue
		}
		page.Objects = append(page.Objects, objectstore.ObjectMeta{
			Key:          k,
			Size:         int64(len(obj.data)),
			LastModified: obj.lastModified,
		})
	}

	return page, nil
}

func (s *Store) InitiateMultipart(ctx context.Context, key, contentType string) (string, error) {
	uploadID := key + ":" + time.Now().UTC().Format(time.RFC3339Nano)

	s.sessionsMu.Lock()
	s.sessions[uploadID] = &multipartSession{parts: make(map[int][]byte)}
	s.sessionsMu.Unlock()

	return uploadID, nil
}

func (s *Store) UploadPart(ctx context.Context, key, uploadID string, partNumber int, body io.Reader, size int64, checksumSHA256 string) (string, error) {
	s.sessionsMu.Lock()
	sess, ok := s.sessions[uploadID]
	s.sessionsMu.Unlock()
	if !ok {
		return "", apperror.New(apperror.NotFound, "upload session not found")
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return "", apperror.Wrap(apperror.Backend, "read part body failed", err)
	}

	if checksumSHA256 != "" {
		sum := sha256.Sum256(data)
		if base64.StdEncoding.EncodeToString(sum[:]) != checksumSHA256 {
			return "", apperror.New(apperror.ChecksumMismatch, "part checksum does not match body")
		}
	}

	sess.mu.Lock()
	sess.parts[partNumber] = data
	sess.mu.Unlock()

	return etagFor(data), nil
}

func etagFor(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:8])
}

func (s *Store) CompleteMultipart(ctx context.Context, key, uploadID string, parts []objectstore.CompletedPart) error {
	s.sessionsMu.Lock()
	sess, ok := s.sessions[uploadID]
	s.sessionsMu.Unlock()
	if !ok {
		return apperror.New(apperror.NotFound, "upload session not found")
	}

	sess.mu.Lock()
	sorted := make([]objectstore.CompletedPart, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	var buf bytes.Buffer
	for _, p := range sorted {
		data, ok := sess.parts[p.PartNumber]
		if !ok {
			sess.mu.Unlock()
			return apperror.Newf(apperror.Backend, "missing part %d", p.PartNumber)
		}
		buf.Write(data)
	}
	sess.mu.Unlock()

	s.mu.Lock()
	s.objects[key] = &object{data: buf.Bytes(), lastModified: time.Now()}
	s.mu.Unlock()

	s.sessionsMu.Lock()
	delete(s.sessions, uploadID)
	s.sessionsMu.Unlock()

	return nil
}

func (s *Store) AbortMultipart(ctx context.Context, key, uploadID string) error {
	s.sessionsMu.Lock()
	delete(s.sessions, uploadID)
	s.sessionsMu.Unlock()
	return nil
}

var _ objectstore.Store = (*Store)(nil)
