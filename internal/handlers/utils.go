package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/akolanti/TenantRAG/internal/adapter"
	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/pkg/errors_i"
	"github.com/akolanti/TenantRAG/pkg/logger_i"
)

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// headers are already out, nothing left to tell the client
		logger_i.NewLogger("RequestHandler").Error("Error encoding response", "error", err)
	}
}

func WriteErrorResponse(w http.ResponseWriter, r *http.Request, httpCode int, code errors_i.Code, message string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(code, message, traceId(r)))
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	writeJsonResponse(w, adapter.HTTPStatusFor(err), adapter.ToErrorResponse(err, traceId(r)))
}

func traceId(r *http.Request) string {
	if r == nil {
		return ""
	}
	id, _ := r.Context().Value(config.TRACE_ID_KEY).(string)
	return id
}

// saveUpload copies the upload into the temp directory; the pipeline removes it when done.
func (h *Handlers) saveUpload(src multipart.File, name string) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0750); err != nil {
		return "", err
	}
	path := filepath.Join(h.uploadDir, fmt.Sprintf("%d-%s", time.Now().UnixNano(), filepath.Base(name)))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err = copyUpload(dst, path, src); err != nil {
		return "", err
	}
	return path, nil
}

// copyUpload closes dst and removes path unless the whole copy landed.
func copyUpload(dst io.WriteCloser, path string, src io.Reader) error {
	_, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close upload: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}
