package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when no files row matches the id.
var ErrNotFound = errors.New("record not found")

// FileRecord is one row of the files table.
type FileRecord struct {
	ID         uuid.UUID
	FileName   string
	ObjectKey  string
	URL        string
	UploadDate time.Time
}

// Store runs the metadata queries against a pool opened by OpenDB.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InsertFile writes rec. A zero UploadDate lets the column default apply.
// The stored upload date is returned.
func (s *Store) InsertFile(ctx context.Context, rec FileRecord) (time.Time, error) {
	var uploaded time.Time
	var err error
	if rec.UploadDate.IsZero() {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO files (id, file_name, object_key, url)
			VALUES ($1, $2, $3, $4)
			RETURNING upload_date
		`, rec.ID, rec.FileName, rec.ObjectKey, rec.URL).Scan(&uploaded)
	} else {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO files (id, file_name, object_key, url, upload_date)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING upload_date
		`, rec.ID, rec.FileName, rec.ObjectKey, rec.URL, rec.UploadDate).Scan(&uploaded)
	}
	if err != nil {
		return time.Time{}, errors.Wrap(err, "insert file")
	}
	return uploaded, nil
}

func (s *Store) GetFile(ctx context.Context, id uuid.UUID) (FileRecord, error) {
	rec := FileRecord{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, file_name, object_key, url, upload_date
		FROM files
		WHERE id = $1
	`, id).Scan(&rec.ID, &rec.FileName, &rec.ObjectKey, &rec.URL, &rec.UploadDate)
	if errors.Is(err, sql.ErrNoRows) {
		return FileRecord{}, ErrNotFound
	}
	if err != nil {
		return FileRecord{}, errors.Wrap(err, "get file")
	}
	return rec, nil
}

// DeleteFile removes the row for id, returning ErrNotFound if none existed.
func (s *Store) DeleteFile(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete file")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "delete file rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertHealthCheck appends one probe row.
func (s *Store) InsertHealthCheck(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO health_checks DEFAULT VALUES`); err != nil {
		return errors.Wrap(err, "insert health check")
	}
	return nil
}

// PruneHealthChecks deletes probe rows checked before cutoff.
func (s *Store) PruneHealthChecks(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM health_checks WHERE checked_at < $1`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "prune health checks")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "prune health checks rows affected")
	}
	return n, nil
}

func (s *Store) CountHealthChecks(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM health_checks`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count health checks")
	}
	return n, nil
}
