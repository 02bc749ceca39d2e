// Package catalogmodel defines the row shape the Catalog stores and
// returns. It has no store-specific dependencies so both the postgres and
// memory catalog implementations, and the upload engine, can share it.
package catalogmodel

import (
	"time"

	"github.com/google/uuid"
)

// DirectoryType is the file_type sentinel used for directory rows. Rows
// with this type never have a corresponding object-store object.
const DirectoryType = "directory"

// FileID is the opaque 128-bit identifier every FileRecord is keyed by.
type FileID uuid.UUID

// NewFileID generates a fresh, random FileID.
func NewFileID() FileID {
	return FileID(uuid.New())
}

// String renders the canonical hyphenated form.
func (id FileID) String() string {
	return uuid.UUID(id).String()
}

// ParseFileID parses the canonical hyphenated form produced by String.
func ParseFileID(s string) (FileID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return FileID{}, err
	}
	return FileID(u), nil
}

// IsZero reports whether id is the unset zero value.
func (id FileID) IsZero() bool {
	return id == FileID{}
}

// File is one Catalog row: a logical file or directory owned by a single
// user. FileType is the MIME type for files and DirectoryType for
// directories. Path is the logical parent directory, slash-separated
// with no leading or trailing slash; the empty string is the root.
type File struct {
	ID              FileID
	OwnerID         string
	FileName        string
	Path            string
	FileType        string
	FileSize        int64
	UploadID        string
	UploadCompleted bool
	CreatedAt       time.Time
}

// IsDirectory reports whether the row represents a directory.
func (f *File) IsDirectory() bool {
	return f.FileType == DirectoryType
}

// ObjectKey returns the object-store key the completed upload for this
// file lives at. Directories never have one; callers must not call this
// on a directory row.
func ObjectKey(ownerID string, id FileID) string {
	return ownerID + "/" + id.String()
}
