package handler

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/aio-mcp/aio-server/internal/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	// maxUploadMemory is the part of a multipart upload kept in memory,
	// the rest is buffered on disk.
	maxUploadMemory = 32 << 20
)

// FilesHandler manages uploaded executables.
type FilesHandler struct {
	store *storage.Store
	log   *zap.Logger
}

func NewFilesHandler(params Params) *FilesHandler {
	return &FilesHandler{
		store: params.Store,
		log:   params.Log.Named("files"),
	}
}

type UploadResponse struct {
	Success     bool   `json:"success"`
	Filename    string `json:"filename,omitempty"`
	Filepath    string `json:"filepath,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	Message     string `json:"message"`
}

type FileInfoResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	File    *storage.FileInfo `json:"file,omitempty"`
}

type FileListResponse struct {
	Success  bool               `json:"success"`
	Message  string             `json:"message"`
	Files    []storage.FileInfo `json:"files"`
	Total    int                `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Upload stores the multipart file field as an executable. The name is
// taken from the filename form field, or from the uploaded file.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.log, r)

	fileType, err := storage.ParseFileType(r.PathValue("file_type"))
	if err != nil {
		writeError(w, log, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, log, fmt.Errorf("%w: %s", ErrInvalidBody, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, log, fmt.Errorf("%w: file is required", ErrInvalidBody))
		return
	}
	defer file.Close()

	name := r.FormValue("filename")
	if name == "" {
		name = filepath.Base(header.Filename)
	}

	info, err := h.store.Save(r.Context(), fileType, name, file)
	if err != nil {
		writeError(w, log, err)
		return
	}

	downloadURL := fmt.Sprintf("%s/download/%s/%s",
		mountPrefix(r), fileType, url.PathEscape(info.Filename))

	writeJSON(w, log, http.StatusOK, UploadResponse{
		Success:     true,
		Filename:    info.Filename,
		Filepath:    info.Filepath,
		DownloadURL: downloadURL,
		Message:     "File upload successful",
	})
}

// List returns a page of stored executables, optionally filtered by
// the file_type query parameter.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.log, r)
	query := r.URL.Query()

	var fileTypes []storage.FileType
	if raw := query.Get("file_type"); raw != "" {
		fileType, err := storage.ParseFileType(raw)
		if err != nil {
			writeDetail(w, log, http.StatusBadRequest, err.Error())
			return
		}
		fileTypes = append(fileTypes, fileType)
	}

	page, err := queryInt(query, "page", 1, 1, 0)
	if err != nil {
		writeError(w, log, err)
		return
	}

	pageSize, err := queryInt(query, "page_size", defaultPageSize, 1, maxPageSize)
	if err != nil {
		writeError(w, log, err)
		return
	}

	files, err := h.store.List(r.Context(), fileTypes...)
	if err != nil {
		writeError(w, log, err)
		return
	}

	total := len(files)

	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)

	writeJSON(w, log, http.StatusOK, FileListResponse{
		Success:  true,
		Message:  fmt.Sprintf("Found %d files", total),
		Files:    append([]storage.FileInfo{}, files[start:end]...),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// Info returns the metadata of one executable.
func (h *FilesHandler) Info(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.log, r)

	fileType, err := storage.ParseFileType(r.PathValue("file_type"))
	if err != nil {
		writeError(w, log, err)
		return
	}

	info, err := h.store.Stat(r.Context(), fileType, r.PathValue("filename"))
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidName) {
		writeJSON(w, log, http.StatusNotFound, FileInfoResponse{
			Message: "File does not exist",
		})
		return
	}
	if err != nil {
		writeError(w, log, err)
		return
	}

	writeJSON(w, log, http.StatusOK, FileInfoResponse{
		Success: true,
		Message: "File information retrieved successfully",
		File:    &info,
	})
}

// Delete removes one executable. A missing file is reported with 200
// and success set to false.
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.log, r)

	fileType, err := storage.ParseFileType(r.PathValue("file_type"))
	if err != nil {
		writeError(w, log, err)
		return
	}

	err = h.store.Delete(r.Context(), fileType, r.PathValue("filename"))
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidName) {
		writeJSON(w, log, http.StatusOK, StatusResponse{
			Message: "File does not exist",
		})
		return
	}
	if err != nil {
		writeError(w, log, err)
		return
	}

	writeJSON(w, log, http.StatusOK, StatusResponse{
		Success: true,
		Message: "File deleted successfully",
	})
}

// Download serves one executable as attachment.
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.log, r)

	fileType, err := storage.ParseFileType(r.PathValue("file_type"))
	if err != nil {
		writeError(w, log, err)
		return
	}

	f, err := h.store.Open(fileType, r.PathValue("filename"))
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidName) {
		writeDetail(w, log, http.StatusNotFound, "File does not exist")
		return
	}
	if err != nil {
		writeError(w, log, err)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		writeError(w, log, err)
		return
	}

	name := filepath.Base(f.Name())

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": name,
	}))

	http.ServeContent(w, r, name, fi.ModTime(), f)
}

// MARK: - Helpers

// mountPrefix returns the path prefix stripped before the request
// reached the api router.
func mountPrefix(r *http.Request) string {
	path := r.URL.EscapedPath()

	original := r.RequestURI
	if i := strings.IndexByte(original, '?'); i >= 0 {
		original = original[:i]
	}

	return strings.TrimSuffix(original, path)
}

func queryInt(query url.Values, key string, def, lo, hi int) (int, error) {
	raw := query.Get(key)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || (hi > 0 && v > hi) {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidBody, key, raw)
	}

	return v, nil
}
