package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marmos91/ditto-upload/internal/apperror"
	"github.com/marmos91/ditto-upload/internal/catalogmodel"
)

const uniqueViolation = "23505"

// mapPgError turns a pgx/pgconn error into the apperror.Code the rest of
// the system expects.
func mapPgError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.New(apperror.NotFound, op+": not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return apperror.New(apperror.AlreadyExists, op+": already exists")
	}
	return apperror.Wrap(apperror.Backend, op+" failed", err)
}

func scanRow(row pgx.Row) (*catalogmodel.File, error) {
	var (
		f        catalogmodel.File
		id       [16]byte
		uploadID *string
	)
	err := row.Scan(&id, &f.OwnerID, &f.FileName, &f.Path, &f.FileType,
		&f.FileSize, &uploadID, &f.UploadCompleted, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	f.ID = catalogmodel.FileID(id)
	if uploadID != nil {
		f.UploadID = *uploadID
	}
	return &f, nil
}

const selectColumns = `id, owner_id, file_name, path, file_type, file_size, upload_id, upload_completed, created_at`

func (s *Store) Get(ctx context.Context, owner string, id catalogmodel.FileID) (*catalogmodel.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperror.Wrap(apperror.Cancelled, "context cancelled", err)
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM files WHERE id = $1 AND owner_id = $2`,
		uuidBytes(id), owner)

	f, err := scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapPgError(err, "Get")
	}
	return f, nil
}

func (s *Store) GetMany(ctx context.Context, owner string, ids []catalogmodel.FileID) ([]*catalogmodel.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperror.Wrap(apperror.Cancelled, "context cancelled", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	raw := make([][]byte, len(ids))
	for i, id := range ids {
		raw[i] = uuidBytes(id)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM files WHERE owner_id = $1 AND id = ANY($2)`,
		owner, raw)
	if err != nil {
		return nil, mapPgError(err, "GetMany")
	}
	defer rows.Close()

	return collect(rows)
}

func collect(rows pgx.Rows) ([]*catalogmodel.File, error) {
	var out []*catalogmodel.File
	for rows.Next() {
		f, err := scanRow(rows)
		if err != nil {
			return nil, mapPgError(err, "scan")
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err, "iterate rows")
	}
	return out, nil
}

func (s *Store) ListByPath(ctx context.Context, owner, path string) ([]*catalogmodel.File, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM files WHERE owner_id = $1 AND path = $2 ORDER BY file_name`,
		owner, path)
	if err != nil {
		return nil, mapPgError(err, "ListByPath")
	}
	defer rows.Close()
	return collect(rows)
}

func (s *Store) ListByPrefix(ctx context.Context, owner, prefix string) ([]*catalogmodel.File, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM files
		 WHERE owner_id = $1 AND (path = $2 OR path LIKE $2 || '/%')
		 ORDER BY path ASC`,
		owner, prefix)
	if err != nil {
		return nil, mapPgError(err, "ListByPrefix")
	}
	defer rows.Close()
	return collect(rows)
}

func (s *Store) insert(ctx context.Context, q pgxQuerier, record *catalogmodel.File) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	var uploadID *string
	if record.UploadID != "" {
		uploadID = &record.UploadID
	}

	_, err := q.Exec(ctx,
		`INSERT INTO files (id, owner_id, file_name, path, file_type, file_size, upload_id, upload_completed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuidBytes(record.ID), record.OwnerID, record.FileName, record.Path,
		record.FileType, record.FileSize, uploadID, record.UploadCompleted, record.CreatedAt)
	if err != nil {
		return mapPgError(err, "insert file")
	}
	return nil
}

func (s *Store) CreateFile(ctx context.Context, record *catalogmodel.File) error {
	return s.insert(ctx, s.pool, record)
}

func (s *Store) CreateDirectory(ctx context.Context, dir *catalogmodel.File) error {
	dir.FileType = catalogmodel.DirectoryType
	return s.insert(ctx, s.pool, dir)
}

func (s *Store) CreateMany(ctx context.Context, records []*catalogmodel.File) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapPgError(err, "begin CreateMany")
	}
	defer tx.Rollback(ctx)

	for _, record := range records {
		if err := s.insert(ctx, tx, record); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgError(err, "commit CreateMany")
	}
	return nil
}

func (s *Store) MarkUploadComplete(ctx context.Context, id catalogmodel.FileID, uploadID string, size int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE files SET upload_completed = true, file_size = $1, upload_id = $2 WHERE id = $3`,
		size, uploadID, uuidBytes(id))
	if err != nil {
		return mapPgError(err, "MarkUploadComplete")
	}
	if tag.RowsAffected() == 0 {
		return apperror.New(apperror.NotFound, "MarkUploadComplete: file not found")
	}
	return nil
}

func (s *Store) Rename(ctx context.Context, owner string, id catalogmodel.FileID, newName string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE files SET file_name = $1 WHERE id = $2 AND owner_id = $3`,
		newName, uuidBytes(id), owner)
	if err != nil {
		return mapPgError(err, "Rename")
	}
	return nil
}

func (s *Store) MoveOne(ctx context.Context, owner string, id catalogmodel.FileID, newPath string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE files SET path = $1 WHERE id = $2 AND owner_id = $3`,
		newPath, uuidBytes(id), owner)
	if err != nil {
		return mapPgError(err, "MoveOne")
	}
	return nil
}

func (s *Store) MoveMany(ctx context.Context, owner string, ids []catalogmodel.FileID, newPath string) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([][]byte, len(ids))
	for i, id := range ids {
		raw[i] = uuidBytes(id)
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE files SET path = $1 WHERE owner_id = $2 AND id = ANY($3)`,
		newPath, owner, raw)
	if err != nil {
		return mapPgError(err, "MoveMany")
	}
	return nil
}

func (s *Store) MovePrefix(ctx context.Context, owner, oldPrefix, newPrefix string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE files
		 SET path = CASE
		     WHEN path = $1 THEN $2
		     ELSE $2 || substring(path FROM length($1) + 1)
		 END
		 WHERE owner_id = $3 AND (path = $1 OR path LIKE $1 || '/%')`,
		oldPrefix, newPrefix, owner)
	if err != nil {
		return mapPgError(err, "MovePrefix")
	}
	return nil
}

func (s *Store) DeleteOne(ctx context.Context, owner string, id catalogmodel.FileID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM files WHERE id = $1 AND owner_id = $2`, uuidBytes(id), owner)
	if err != nil {
		return mapPgError(err, "DeleteOne")
	}
	return nil
}

func (s *Store) DeleteMany(ctx context.Context, owner string, ids []catalogmodel.FileID) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([][]byte, len(ids))
	for i, id := range ids {
		raw[i] = uuidBytes(id)
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM files WHERE owner_id = $1 AND id = ANY($2)`, owner, raw)
	if err != nil {
		return mapPgError(err, "DeleteMany")
	}
	return nil
}

func (s *Store) DeletePrefix(ctx context.Context, owner, prefix string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM files WHERE owner_id = $1 AND (path = $2 OR path LIKE $2 || '/%')`,
		owner, prefix)
	if err != nil {
		return mapPgError(err, "DeletePrefix")
	}
	return nil
}

// uuidBytes renders a FileID as the 16-byte slice pgx binds to a
// PostgreSQL uuid column.
func uuidBytes(id catalogmodel.FileID) []byte {
	b := [16]byte(id)
	return b[:]
}

// pgxQuerier is the subset of pgxpool.Pool / pgx.Tx that insert needs,
// letting CreateMany share the single-row insert helper inside a
// transaction.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ pgxQuerier = (*pgxpool.Pool)(nil)
var _ pgxQuerier = (pgx.Tx)(nil)
