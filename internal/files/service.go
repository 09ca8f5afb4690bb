// Package files sequences uploads and deletes across the object store and
// the metadata store. Each operation touches the object first; a failed
// metadata insert after a stored object triggers one best-effort delete of
// that object.
package files

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"filedrop/internal/db"
	"filedrop/internal/logging"
	"filedrop/internal/storage"
)

// Record is the metadata kept for an uploaded file.
type Record = db.FileRecord

// ObjectStore is the part of storage.ObjectStore the service drives.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// Repository persists file records.
type Repository interface {
	InsertFile(ctx context.Context, rec db.FileRecord) (time.Time, error)
	GetFile(ctx context.Context, id uuid.UUID) (db.FileRecord, error)
	DeleteFile(ctx context.Context, id uuid.UUID) error
}

// Recorder receives operation outcomes, typically for metrics.
type Recorder interface {
	RecordUpload(bytes int64, duration time.Duration)
	RecordUploadError()
	RecordDelete()
	RecordDeleteError()
	RecordCompensation(ok bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordUpload(int64, time.Duration) {}
func (nopRecorder) RecordUploadError()                {}
func (nopRecorder) RecordDelete()                     {}
func (nopRecorder) RecordDeleteError()                {}
func (nopRecorder) RecordCompensation(bool)           {}

// UploadInput describes one uploaded file.
type UploadInput struct {
	Body        io.Reader
	Size        int64 // -1 when unknown
	ContentType string
	FileName    string
}

type Service struct {
	store    ObjectStore
	repo     Repository
	recorder Recorder
	maxBytes int64

	now   func() time.Time
	newID func() uuid.UUID
}

type Option func(*Service)

// WithRecorder reports outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithMaxBytes rejects uploads larger than n bytes. Zero means no limit.
func WithMaxBytes(n int64) Option {
	return func(s *Service) { s.maxBytes = n }
}

func NewService(store ObjectStore, repo Repository, opts ...Option) *Service {
	s := &Service{
		store:    store,
		repo:     repo,
		recorder: nopRecorder{},
		now:      time.Now,
		newID:    uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxBytes is the configured upload limit, zero when unlimited.
func (s *Service) MaxBytes() int64 { return s.maxBytes }

// ObjectKey is the storage key for a file id and display name.
func ObjectKey(id uuid.UUID, fileName string) string {
	return id.String() + "-" + SanitizeFilename(fileName)
}

// Upload stores the bytes, then records the metadata. If the record cannot
// be written the stored object is deleted once and the insert error is
// returned either way.
func (s *Service) Upload(ctx context.Context, in UploadInput) (Record, error) {
	start := s.now()

	name := strings.TrimSpace(in.FileName)
	if name == "" {
		return Record{}, errors.Wrap(ErrInvalidInput, "file name is empty")
	}
	if s.maxBytes > 0 && in.Size > s.maxBytes {
		return Record{}, errors.Wrapf(ErrTooLarge, "%d bytes exceeds limit of %d", in.Size, s.maxBytes)
	}

	id := s.newID()
	key := ObjectKey(id, name)

	if err := s.store.Put(ctx, key, in.Body, in.Size, in.ContentType); err != nil {
		s.recorder.RecordUploadError()
		if errors.Is(err, storage.ErrInvalidKey) {
			return Record{}, errors.Wrap(ErrInvalidInput, err.Error())
		}
		return Record{}, upstream(OpObjectPut, err)
	}

	rec := Record{
		ID:         id,
		FileName:   name,
		ObjectKey:  key,
		URL:        s.store.URL(key),
		UploadDate: start.UTC(),
	}

	uploaded, err := s.repo.InsertFile(ctx, rec)
	if err != nil {
		s.recorder.RecordUploadError()
		s.compensate(ctx, key, err)
		return Record{}, upstream(OpMetadataInsert, err)
	}
	if !uploaded.IsZero() {
		rec.UploadDate = uploaded
	}

	s.recorder.RecordUpload(in.Size, s.now().Sub(start))
	logging.Info(ctx, "file uploaded", logging.Fields{
		"file_id":    id.String(),
		"object_key": key,
		"size_bytes": in.Size,
	})
	return rec, nil
}

// compensate removes an object whose record could not be written. One
// attempt only; the outcome is logged and never returned.
func (s *Service) compensate(ctx context.Context, key string, cause error) {
	fields := logging.Fields{"object_key": key, "cause": cause.Error()}

	// The request context may already be cancelled; the cleanup still runs.
	ctx = context.WithoutCancel(ctx)
	if err := s.store.Delete(ctx, key); err != nil {
		s.recorder.RecordCompensation(false)
		logging.Error(ctx, "upload compensation failed, object orphaned", err, fields)
		return
	}
	s.recorder.RecordCompensation(true)
	logging.Warn(ctx, "upload compensated, object removed after metadata insert failure", fields)
}

// Get looks up a record by its id. An id that is not a UUID is reported as
// not found.
func (s *Service) Get(ctx context.Context, rawID string) (Record, error) {
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return Record{}, ErrNotFound
	}
	rec, err := s.repo.GetFile(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, upstream(OpMetadataGet, err)
	}
	return rec, nil
}

// Delete removes the object and then the record. The object is not
// restored when the record delete fails.
func (s *Service) Delete(ctx context.Context, rawID string) error {
	rec, err := s.Get(ctx, rawID)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, rec.ObjectKey); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.dropOrphan(ctx, rec)
			return ErrNotFound
		}
		s.recorder.RecordDeleteError()
		return upstream(OpObjectDelete, err)
	}

	if err := s.repo.DeleteFile(ctx, rec.ID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrNotFound
		}
		s.recorder.RecordDeleteError()
		logging.Error(ctx, "record delete failed after object removal", err, logging.Fields{
			"file_id":    rec.ID.String(),
			"object_key": rec.ObjectKey,
		})
		return upstream(OpMetadataDelete, err)
	}

	s.recorder.RecordDelete()
	logging.Info(ctx, "file deleted", logging.Fields{"file_id": rec.ID.String()})
	return nil
}

// dropOrphan removes a record whose object is already gone so the id
// stops resolving. The caller still reports not found.
func (s *Service) dropOrphan(ctx context.Context, rec Record) {
	fields := logging.Fields{
		"file_id":    rec.ID.String(),
		"object_key": rec.ObjectKey,
	}
	err := s.repo.DeleteFile(ctx, rec.ID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		s.recorder.RecordDeleteError()
		logging.Error(ctx, "orphaned record delete failed", err, fields)
		return
	}
	logging.Warn(ctx, "object missing, orphaned record removed", fields)
}
