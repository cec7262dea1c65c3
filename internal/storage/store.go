package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)


// binSuffix is the fallback extension of mcp executables.
const binSuffix = ".bin"

// Config describes where executables and their metadata are stored.
type Config struct {
	// AgentDir is the directory of agent executables.
	AgentDir string `conf:"agent_exec_dir"`

	// MCPDir is the directory of mcp executables.
	MCPDir string `conf:"mcp_exec_dir"`

	// DatabasePath is the sqlite database of the file registry. The
	// registry is kept in memory if empty.
	DatabasePath string `conf:"database_path"`
}

// Store manages executables on disk and their registry records.
type Store struct {
	dirs     map[FileType]string
	registry Registry
	now      func() time.Time
	log      *zap.Logger
}

// NewStore creates the executable directories and returns a store
// backed by them.
func NewStore(config Config, registry Registry, log *zap.Logger) (*Store, error) {
	dirs := map[FileType]string{
		FileTypeAgent: config.AgentDir,
		FileTypeMCP:   config.MCPDir,
	}

	for t, dir := range dirs {
		if dir == "" {
			return nil, fmt.Errorf("directory for %s executables is required", t)
		}

		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("could not resolve %s directory: %w", t, err)
		}

		if err := os.MkdirAll(abs, 0o755); err != nil {
			return nil, fmt.Errorf("could not create %s directory: %w", t, err)
		}

		dirs[t] = abs
	}

	return &Store{
		dirs:     dirs,
		registry: registry,
		now:      time.Now,
		log:      log.Named("store"),
	}, nil
}

// Dir returns the directory of the given file type.
func (s *Store) Dir(fileType FileType) (string, error) {
	dir, ok := s.dirs[fileType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, fileType)
	}

	return dir, nil
}

// ResolvePath returns the path of the named executable. For mcp
// executables, name.bin is used if name itself does not exist. The
// returned path is not guaranteed to exist.
func (s *Store) ResolvePath(fileType FileType, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}

	dir, err := s.Dir(fileType)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, name)

	if fileType == FileTypeMCP && !isRegular(path) && isRegular(path+binSuffix) {
		return path + binSuffix, nil
	}

	return path, nil
}

// Exists reports whether the named executable exists.
func (s *Store) Exists(fileType FileType, name string) bool {
	path, err := s.ResolvePath(fileType, name)
	if err != nil {
		return false
	}

	return isRegular(path)
}

// Contains reports whether path lies inside one of the executable
// directories.
func (s *Store) Contains(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	for _, dir := range s.dirs {
		rel, err := filepath.Rel(dir, abs)
		if err != nil {
			continue
		}
		if rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}

	return false
}

// Save writes r to the named executable, replacing an existing file
// atomically, and records it in the registry. Spaces in name are
// replaced with underscores.
func (s *Store) Save(ctx context.Context, fileType FileType, name string, r io.Reader) (FileInfo, error) {
	name = strings.ReplaceAll(name, " ", "_")

	if err := ValidateName(name); err != nil {
		return FileInfo{}, err
	}

	dir, err := s.Dir(fileType)
	if err != nil {
		return FileInfo{}, err
	}

	log := s.log.With(zap.String("file_type", string(fileType)), zap.String("filename", name))

	tmp, err := os.CreateTemp(dir, "."+name+".*"+tempSuffix)
	if err != nil {
		return FileInfo{}, fmt.Errorf("could not create temporary file: %w", err)
	}

	// no-op once the file has been renamed
	defer os.Remove(tmp.Name())

	hash := md5.New()

	size, err := io.Copy(io.MultiWriter(tmp, hash), r)
	if err != nil {
		tmp.Close()
		return FileInfo{}, fmt.Errorf("could not write file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return FileInfo{}, fmt.Errorf("could not close file: %w", err)
	}

	if err := os.Chmod(tmp.Name(), 0o755); err != nil {
		return FileInfo{}, fmt.Errorf("could not set executable permissions: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return FileInfo{}, fmt.Errorf("could not move file into place: %w", err)
	}

	now := s.now().UTC().Truncate(time.Second)

	info := FileInfo{
		ID:        NewFileID(now),
		Filename:  name,
		Filepath:  path,
		FileType:  fileType,
		Size:      size,
		CreatedAt: now,
		Checksum:  hex.EncodeToString(hash.Sum(nil)),
	}

	if err := s.registry.Put(ctx, info); err != nil {
		return FileInfo{}, fmt.Errorf("could not register file: %w", err)
	}

	log.Info("saved executable", zap.String("id", info.ID), zap.Int64("size", size))

	return info, nil
}

// Stat returns the metadata of the named executable. Files placed in
// the directory without an upload are registered on first access.
func (s *Store) Stat(ctx context.Context, fileType FileType, name string) (FileInfo, error) {
	path, err := s.ResolvePath(fileType, name)
	if err != nil {
		return FileInfo{}, err
	}

	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return FileInfo{}, fmt.Errorf("%s/%s: %w", fileType, name, ErrNotFound)
	}

	// the resolved file may carry the .bin suffix
	name = filepath.Base(path)

	record, err := s.registry.Get(ctx, fileType, name)
	if err == nil && record.Size == fi.Size() {
		record.Filepath = path
		return record, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return FileInfo{}, fmt.Errorf("could not read registry: %w", err)
	}

	return s.register(ctx, fileType, name, path, fi)
}

// List returns the executables of the given types ordered by type and
// name. All types are listed if none are given.
func (s *Store) List(ctx context.Context, fileTypes ...FileType) ([]FileInfo, error) {
	if len(fileTypes) == 0 {
		fileTypes = FileTypes
	}

	var files []FileInfo

	for _, fileType := range fileTypes {
		dir, err := s.Dir(fileType)
		if err != nil {
			return nil, err
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("could not read %s directory: %w", fileType, err)
		}

		records, err := s.registry.List(ctx, fileType)
		if err != nil {
			return nil, fmt.Errorf("could not read registry: %w", err)
		}

		known := make(map[string]FileInfo, len(records))
		for _, record := range records {
			known[record.Filename] = record
		}

		for _, entry := range entries {
			name := entry.Name()
			if !entry.Type().IsRegular() || isTempName(name) {
				continue
			}

			fi, err := entry.Info()
			if err != nil {
				// removed concurrently
				continue
			}

			path := filepath.Join(dir, name)

			if record, ok := known[name]; ok && record.Size == fi.Size() {
				record.Filepath = path
				files = append(files, record)
				continue
			}

			info, err := s.register(ctx, fileType, name, path, fi)
			if err != nil {
				return nil, err
			}
			files = append(files, info)
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].FileType != files[j].FileType {
			return files[i].FileType < files[j].FileType
		}
		return files[i].Filename < files[j].Filename
	})

	return files, nil
}

// Open opens the named executable for reading.
func (s *Store) Open(fileType FileType, name string) (*os.File, error) {
	path, err := s.ResolvePath(fileType, name)
	if err != nil {
		return nil, err
	}

	if !isRegular(path) {
		return nil, fmt.Errorf("%s/%s: %w", fileType, name, ErrNotFound)
	}

	return os.Open(path)
}

// Delete removes the named executable and its registry record.
func (s *Store) Delete(ctx context.Context, fileType FileType, name string) error {
	path, err := s.ResolvePath(fileType, name)
	if err != nil {
		return err
	}

	if !isRegular(path) {
		return fmt.Errorf("%s/%s: %w", fileType, name, ErrNotFound)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("could not delete file: %w", err)
	}

	name = filepath.Base(path)

	if err := s.registry.Delete(ctx, fileType, name); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("could not delete registry record: %w", err)
	}

	s.log.Info("deleted executable",
		zap.String("file_type", string(fileType)),
		zap.String("filename", name),
	)

	return nil
}

func (s *Store) register(ctx context.Context, fileType FileType, name, path string, fi os.FileInfo) (FileInfo, error) {
	checksum, err := checksumFile(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("could not compute checksum: %w", err)
	}

	info := FileInfo{
		ID:        NewFileID(fi.ModTime()),
		Filename:  name,
		Filepath:  path,
		FileType:  fileType,
		Size:      fi.Size(),
		CreatedAt: fi.ModTime().UTC().Truncate(time.Second),
		Checksum:  checksum,
	}

	if err := s.registry.Put(ctx, info); err != nil {
		return FileInfo{}, fmt.Errorf("could not register file: %w", err)
	}

	s.log.Debug("registered existing executable",
		zap.String("file_type", string(fileType)),
		zap.String("filename", name),
	)

	return info, nil
}

// MARK: - Helpers

func isRegular(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
