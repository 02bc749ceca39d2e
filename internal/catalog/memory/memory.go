// Package memory implements catalog.Catalog entirely in process memory.
// It exists for unit tests that exercise the upload engine and scanner
// without a real PostgreSQL instance.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/marmos91/ditto-upload/internal/apperror"
	"github.com/marmos91/ditto-upload/internal/catalog"
	"github.com/marmos91/ditto-upload/internal/catalogmodel"
	"github.com/marmos91/ditto-upload/internal/pathutil"
)

// Store is an in-memory catalog.Catalog.
type Store struct {
	mu   sync.RWMutex
	rows map[catalogmodel.FileID]*catalogmodel.File
}

// New creates an empty in-memory catalog.
func New() *Store {
	return &Store{rows: make(map[catalogmodel.FileID]*catalogmodel.File)}
}

func clone(f *catalogmodel.File) *catalogmodel.File {
	c := *f
	return &c
}

func (s *Store) Get(ctx context.Context, owner string, id catalogmodel.FileID) (*catalogmodel.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperror.Wrap(apperror.Cancelled, "context cancelled", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[id]
	if !ok || row.OwnerID != owner {
		return nil, nil
	}
	return clone(row), nil
}

func (s *Store) GetMany(ctx context.Context, owner string, ids []catalogmodel.FileID) ([]*catalogmodel.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperror.Wrap(apperror.Cancelled, "context cancelled", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*catalogmodel.File, 0, len(ids))
	for _, id := range ids {
		if row, ok := s.rows[id]; ok && row.OwnerID == owner {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

func (s *Store) ListByPath(ctx context.Context, owner, path string) ([]*catalogmodel.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*catalogmodel.File
	for _, row := range s.rows {
		if row.OwnerID == owner && row.Path == path {
			out = append(out, clone(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	return out, nil
}

func (s *Store) ListByPrefix(ctx context.Context, owner, prefix string) ([]*catalogmodel.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*catalogmodel.File
	for _, row := range s.rows {
		if row.OwnerID == owner && pathutil.HasPrefix(row.Path, prefix) {
			out = append(out, clone(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *Store) create(record *catalogmodel.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[record.ID]; exists {
		return apperror.New(apperror.AlreadyExists, "file id already exists")
	}
	s.rows[record.ID] = clone(record)
	return nil
}

func (s *Store) CreateFile(ctx context.Context, record *catalogmodel.File) error {
	return s.create(record)
}

func (s *Store) CreateDirectory(ctx context.Context, dir *catalogmodel.File) error {
	dir.FileType = catalogmodel.DirectoryType
	return s.create(dir)
}

func (s *Store) CreateMany(ctx context.Context, records []*catalogmodel.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range records {
		if _, exists := s.rows[record.ID]; exists {
			return apperror.New(apperror.AlreadyExists, "file id already exists")
		}
	}
	for _, record := range records {
		s.rows[record.ID] = clone(record)
	}
	return nil
}

func (s *Store) MarkUploadComplete(ctx context.Context, id catalogmodel.FileID, uploadID string, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return apperror.New(apperror.NotFound, "file not found")
	}
	row.UploadID = uploadID
	row.UploadCompleted = true
	row.FileSize = size
	return nil
}

func (s *Store) Rename(ctx context.Context, owner string, id catalogmodel.FileID, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok || row.OwnerID != owner {
		return apperror.New(apperror.NotFound, "file not found")
	}
	row.FileName = newName
	return nil
}

func (s *Store) MoveOne(ctx context.Context, owner string, id catalogmodel.FileID, newPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok || row.OwnerID != owner {
		return apperror.New(apperror.NotFound, "file not found")
	}
	row.Path = newPath
	return nil
}

func (s *Store) MoveMany(ctx context.Context, owner string, ids []catalogmodel.FileID, newPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if row, ok := s.rows[id]; ok && row.OwnerID == owner {
			row.Path = newPath
		}
	}
	return nil
}

func (s *Store) MovePrefix(ctx context.Context, owner, oldPrefix, newPrefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.rows {
		if row.OwnerID == owner && pathutil.HasPrefix(row.Path, oldPrefix) {
			row.Path = pathutil.ReplacePrefix(row.Path, oldPrefix, newPrefix)
		}
	}
	return nil
}

func (s *Store) DeleteOne(ctx context.Context, owner string, id catalogmodel.FileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.rows[id]; ok && row.OwnerID == owner {
		delete(s.rows, id)
	}
	return nil
}

func (s *Store) DeleteMany(ctx context.Context, owner string, ids []catalogmodel.FileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if row, ok := s.rows[id]; ok && row.OwnerID == owner {
			delete(s.rows, id)
		}
	}
	return nil
}

func (s *Store) DeletePrefix(ctx context.Context, owner, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, row := range s.rows {
		if row.OwnerID == owner && pathutil.HasPrefix(row.Path, prefix) {
			delete(s.rows, id)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

var _ catalog.Catalog = (*Store)(nil)
