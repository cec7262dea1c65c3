package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	// ErrNotFound is returned if a file or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidName is returned for names that are empty or would
	// escape the executable directory.
	ErrInvalidName = errors.New("invalid file name")

	// ErrInvalidType is returned for unknown file types.
	ErrInvalidType = errors.New("invalid file type")
)

// FileType is the category of an uploaded executable. Each type is
// stored in its own directory.
type FileType string

const (
	FileTypeAgent FileType = "agent"
	FileTypeMCP   FileType = "mcp"
)

// FileTypes lists all known file types.
var FileTypes = []FileType{FileTypeAgent, FileTypeMCP}

// ParseFileType returns the file type named s.
func ParseFileType(s string) (FileType, error) {
	switch t := FileType(strings.ToLower(s)); t {
	case FileTypeAgent, FileTypeMCP:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

// FileInfo describes a stored executable.
type FileInfo struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Filepath  string    `json:"filepath"`
	FileType  FileType  `json:"file_type"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Checksum  string    `json:"checksum,omitempty"`
}

// Registry persists file metadata. It is keyed by file type and name.
type Registry interface {
	// Put creates or replaces the record of info.FileType and info.Filename.
	Put(ctx context.Context, info FileInfo) error

	// Get returns the record, or ErrNotFound.
	Get(ctx context.Context, fileType FileType, name string) (FileInfo, error)

	// Delete removes the record, or returns ErrNotFound.
	Delete(ctx context.Context, fileType FileType, name string) error

	// List returns all records of the given type ordered by name.
	List(ctx context.Context, fileType FileType) ([]FileInfo, error)
}

// NewFileID returns a new sortable file identifier.
func NewFileID(now time.Time) string {
	return "file_" + ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}

// tempSuffix marks hidden files that are still being uploaded.
const tempSuffix = ".tmp"

func isTempName(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, tempSuffix)
}

// ValidateName checks that name is a plain file name. Names of in-flight
// uploads are reserved.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, "/\\\x00") ||
		filepath.Base(name) != name || isTempName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return nil
}
