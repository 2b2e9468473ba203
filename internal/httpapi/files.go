package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/miikkis-gh/glassfile/internal/fsutil"
	"github.com/miikkis-gh/glassfile/internal/store"
)

// multipartMemory caps the in-memory portion of multipart parsing;
// larger parts spill to temporary files.
const multipartMemory = 32 << 20

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	records, err := s.Store.List()
	if err != nil {
		s.Logger.Error("list files failed", "err", err)
		s.writeError(w, r, http.StatusInternalServerError, "Failed to list files")
		return
	}
	s.writeData(w, http.StatusOK, map[string]any{
		"files": records,
		"total": len(records),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	// The body cap leaves headroom for multipart framing; the store
	// enforces the exact content limit.
	r.Body = http.MaxBytesReader(w, r.Body, s.Cfg.MaxFileSizeBytes()+(1<<20))

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.uploadTooLarge(w, r)
			return
		}
		s.writeError(w, r, http.StatusBadRequest, "No file provided")
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()
	if hdr.Filename == "" {
		s.writeError(w, r, http.StatusBadRequest, "No file selected")
		return
	}

	rec, err := s.Store.Save(hdr.Filename, file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, store.ErrInvalidName):
			s.writeError(w, r, http.StatusBadRequest, "Invalid filename")
		case errors.Is(err, store.ErrExtension):
			s.writeError(w, r, http.StatusBadRequest, "File type not allowed")
		case errors.Is(err, store.ErrPathTraversal):
			s.logTraversal(r, hdr.Filename)
			s.writeError(w, r, http.StatusBadRequest, "Invalid filename")
		case errors.Is(err, store.ErrTooLarge), errors.As(err, &tooLarge):
			s.uploadTooLarge(w, r)
		default:
			s.Logger.Error("upload failed", "err", err)
			s.writeError(w, r, http.StatusInternalServerError, "Failed to upload file")
		}
		return
	}

	s.Logger.Info("file uploaded", "name", rec.Name, "size", rec.Size, "remote_ip", clientIP(r))
	s.writeData(w, http.StatusOK, rec)
}

func (s *Server) uploadTooLarge(w http.ResponseWriter, r *http.Request) {
	max := store.FormatSize(s.Cfg.MaxFileSizeBytes())
	s.writeError(w, r, http.StatusRequestEntityTooLarge,
		fmt.Sprintf("File too large. Maximum size is %s", max))
}

// handleFileByName routes /api/files/{name} and /api/files/{name}/info.
func (s *Server) handleFileByName(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/files/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		name := parts[0]
		switch r.Method {
		case http.MethodDelete:
			s.handleDelete(w, r, name)
		case http.MethodPut:
			s.handleRename(w, r, name)
		default:
			s.writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		}
	case len(parts) == 2 && parts[1] == "info":
		if r.Method != http.MethodGet {
			s.writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		s.handleInfo(w, r, parts[0])
	default:
		s.writeError(w, r, http.StatusNotFound, "Not found")
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, name string) {
	if err := s.Store.Delete(name); err != nil {
		s.fileOpError(w, r, err, name)
		return
	}
	safe, _ := fsutil.SanitizeName(name)
	s.Logger.Info("file deleted", "name", safe, "remote_ip", clientIP(r))
	s.writeData(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("File %s deleted", safe),
	})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request, name string) {
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		s.writeError(w, r, http.StatusBadRequest, "Content-Type must be application/json")
		return
	}
	var req struct {
		NewName string `json:"new_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	rec, err := s.Store.Rename(name, req.NewName)
	if err != nil {
		s.fileOpError(w, r, err, name)
		return
	}
	s.Logger.Info("file renamed", "from", name, "to", rec.Name, "remote_ip", clientIP(r))
	s.writeData(w, http.StatusOK, rec)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request, name string) {
	rec, err := s.Store.Info(name)
	if err != nil {
		s.fileOpError(w, r, err, name)
		return
	}
	s.writeData(w, http.StatusOK, rec)
}

// fileOpError maps store errors onto the API status taxonomy.
func (s *Server) fileOpError(w http.ResponseWriter, r *http.Request, err error, name string) {
	switch {
	case errors.Is(err, store.ErrInvalidName):
		s.writeError(w, r, http.StatusBadRequest, "Invalid filename")
	case errors.Is(err, store.ErrExtension):
		s.writeError(w, r, http.StatusBadRequest, "File type not allowed")
	case errors.Is(err, store.ErrPathTraversal):
		s.logTraversal(r, name)
		s.writeError(w, r, http.StatusBadRequest, "Invalid path")
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, r, http.StatusNotFound, "File not found")
	case errors.Is(err, store.ErrConflict):
		s.writeError(w, r, http.StatusConflict, "A file with that name already exists")
	default:
		s.Logger.Error("file operation failed", "err", err, "name", name)
		s.writeError(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

// handleDownload serves raw bytes without authentication. Unsafe names
// answer exactly like missing files so unauthenticated callers cannot
// probe the sanitizer; the attempt is still logged server-side.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/files/")

	f, rec, err := s.Store.Open(name)
	if err != nil {
		if errors.Is(err, store.ErrPathTraversal) {
			s.logTraversal(r, name)
		}
		if errors.Is(err, store.ErrInvalidName) || errors.Is(err, store.ErrPathTraversal) ||
			errors.Is(err, store.ErrNotFound) {
			s.writeError(w, r, http.StatusNotFound, "Not found")
			return
		}
		s.Logger.Error("download failed", "err", err, "name", name)
		s.writeError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer f.Close()

	s.Logger.Info("file download", "name", rec.Name, "remote_ip", clientIP(r))
	w.Header().Set("content-type", "application/octet-stream")
	w.Header().Set("content-disposition", `attachment; filename="`+escapeQuotes(rec.Name)+`"`)
	http.ServeContent(w, r, rec.Name, rec.Modified, f)
}

func (s *Server) logTraversal(r *http.Request, name string) {
	s.Logger.Warn("path traversal attempt", "name", name, "remote_ip", clientIP(r))
}

func escapeQuotes(v string) string {
	return strings.ReplaceAll(v, `"`, "")
}
