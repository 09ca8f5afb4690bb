package server

import (
	"encoding/json"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"filedrop/internal/files"
	"filedrop/internal/logging"
)

const (
	// multipartMemory is kept in RAM while parsing; larger parts spill to disk.
	multipartMemory = 32 << 20
	// multipartSlack covers boundaries and part headers on top of the file limit.
	multipartSlack = 1 << 20

	dateLayout = "2006-01-02"
)

// fileResp is the JSON form of a file record.
type fileResp struct {
	FileName   string `json:"file_name"`
	ID         string `json:"id"`
	URL        string `json:"url"`
	UploadDate string `json:"upload_date"`
}

func toFileResp(rec files.Record) fileResp {
	return fileResp{
		FileName:   rec.FileName,
		ID:         rec.ID.String(),
		URL:        rec.URL,
		UploadDate: rec.UploadDate.UTC().Format(dateLayout),
	}
}

// handleUpload handles POST /v1/file with a multipart "file" field.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if limit := s.files.MaxBytes(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartSlack)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, files.ErrTooLarge)
			return
		}
		writeError(w, r, errors.Wrap(files.ErrInvalidInput, "bad multipart body"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, errors.Wrap(files.ErrInvalidInput, `missing "file" field`))
		return
	}
	defer file.Close()

	rec, err := s.files.Upload(r.Context(), files.UploadInput{
		Body:        file,
		Size:        header.Size,
		ContentType: contentTypeFor(header.Header.Get("Content-Type"), header.Filename),
		FileName:    header.Filename,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toFileResp(rec))
}

// handleMissingID answers GET and DELETE on the collection path.
func (s *Server) handleMissingID(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, errors.Wrap(files.ErrInvalidInput, "no file id given"))
}

// handleGet handles GET /v1/file/{id}.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.files.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFileResp(rec))
}

// handleDelete handles DELETE /v1/file/{id}.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.files.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// contentTypeFor prefers the part's declared type, then the extension.
func contentTypeFor(declared, filename string) string {
	if ct := strings.TrimSpace(declared); ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, files.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, files.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, files.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	}

	var upErr *files.UpstreamError
	if errors.As(err, &upErr) && upErr.ObjectStore() {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError is the single place errors become responses. Server-side
// failures are logged and their details kept out of the body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	if status >= http.StatusInternalServerError {
		logging.Error(r.Context(), "request failed", err, logging.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": status,
		})
		http.Error(w, http.StatusText(status), status)
		return
	}

	logging.Debug(r.Context(), "request rejected", logging.Fields{
		"status": status,
		"reason": err.Error(),
	})
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
