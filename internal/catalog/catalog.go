// Package catalog defines the Catalog contract: the only component
// allowed to read or write file records. Every method is owner-scoped
// and takes owner_id explicitly; concrete drivers live in subpackages
// (postgres, memory).
package catalog

import (
	"context"

	"github.com/marmos91/ditto-upload/internal/catalogmodel"
)

// Catalog is the transactional row store keyed by file id, with
// secondary access by (owner_id, path) and prefix match on path.
//
// Every implementation must return *apperror.Error with the codes noted
// per method; NotFound is returned as a nil, nil for Get-style lookups
// that found nothing (callers distinguish "not found" from "found").
type Catalog interface {
	// Get returns the row for id if it exists and is owned by owner, or
	// (nil, nil) if no such row exists. Returns apperror.Backend on
	// store failure.
	Get(ctx context.Context, owner string, id catalogmodel.FileID) (*catalogmodel.File, error)

	// GetMany returns the rows among ids that exist and are owned by
	// owner, in no particular order. Missing ids are silently omitted.
	GetMany(ctx context.Context, owner string, ids []catalogmodel.FileID) ([]*catalogmodel.File, error)

	// ListByPath returns rows with an exact path match.
	ListByPath(ctx context.Context, owner, path string) ([]*catalogmodel.File, error)

	// ListByPrefix returns rows whose path starts with prefix, ordered
	// by path ascending.
	ListByPrefix(ctx context.Context, owner, prefix string) ([]*catalogmodel.File, error)

	// CreateFile inserts a fresh file row. Returns apperror.AlreadyExists
	// if record.ID collides with an existing row.
	CreateFile(ctx context.Context, record *catalogmodel.File) error

	// CreateDirectory inserts a fresh directory row (file_type =
	// catalogmodel.DirectoryType). Same error semantics as CreateFile.
	CreateDirectory(ctx context.Context, dir *catalogmodel.File) error

	// CreateMany batch-inserts records; all rows commit or none do.
	CreateMany(ctx context.Context, records []*catalogmodel.File) error

	// MarkUploadComplete sets upload_completed=true, file_size=size, and
	// preserves upload_id, on the row identified by id. Returns
	// apperror.NotFound if no such row exists.
	MarkUploadComplete(ctx context.Context, id catalogmodel.FileID, uploadID string, size int64) error

	// Rename updates file_name.
	Rename(ctx context.Context, owner string, id catalogmodel.FileID, newName string) error

	// MoveOne updates path for a single row.
	MoveOne(ctx context.Context, owner string, id catalogmodel.FileID, newPath string) error

	// MoveMany updates path for a batch of rows.
	MoveMany(ctx context.Context, owner string, ids []catalogmodel.FileID, newPath string) error

	// MovePrefix replaces the leading oldPrefix of path with newPrefix
	// for every row under oldPrefix.
	MovePrefix(ctx context.Context, owner, oldPrefix, newPrefix string) error

	// DeleteOne removes a single row.
	DeleteOne(ctx context.Context, owner string, id catalogmodel.FileID) error

	// DeleteMany removes a batch of rows.
	DeleteMany(ctx context.Context, owner string, ids []catalogmodel.FileID) error

	// DeletePrefix removes every row with path under prefix.
	DeletePrefix(ctx context.Context, owner, prefix string) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}
