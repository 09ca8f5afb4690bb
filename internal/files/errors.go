package files

import "github.com/pkg/errors"

// Client errors.
var (
	ErrNotFound     = errors.New("file not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrTooLarge     = errors.New("file too large")
)

// Upstream operations reported in UpstreamError.Op.
const (
	OpObjectPut      = "object_put"
	OpObjectDelete   = "object_delete"
	OpMetadataInsert = "metadata_insert"
	OpMetadataGet    = "metadata_get"
	OpMetadataDelete = "metadata_delete"
)

// UpstreamError is a failure of the object store or the metadata store.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ObjectStore reports whether the failing call went to the object store.
func (e *UpstreamError) ObjectStore() bool {
	return e.Op == OpObjectPut || e.Op == OpObjectDelete
}

func upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}
