package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/aio-mcp/aio-server/internal/storage"
)

type key struct {
	fileType storage.FileType
	name     string
}

// Registry is an in-memory implementation of storage.Registry.
type Registry struct {
	files map[key]storage.FileInfo
	mu    sync.RWMutex
	log   *zap.Logger
}

var _ storage.Registry = (*Registry)(nil)

// NewRegistry creates a new memory registry.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}

	return &Registry{
		files: make(map[key]storage.FileInfo),
		log:   log.Named("registry.memory"),
	}
}

func (r *Registry) Put(_ context.Context, info storage.FileInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.files[key{info.FileType, info.Filename}] = info

	r.log.Debug("stored file record", zap.String("id", info.ID))
	return nil
}

func (r *Registry) Get(_ context.Context, fileType storage.FileType, name string) (storage.FileInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.files[key{fileType, name}]
	if !ok {
		return storage.FileInfo{}, fmt.Errorf("file %s/%s: %w", fileType, name, storage.ErrNotFound)
	}

	return info, nil
}

func (r *Registry) Delete(_ context.Context, fileType storage.FileType, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{fileType, name}
	if _, ok := r.files[k]; !ok {
		return fmt.Errorf("file %s/%s: %w", fileType, name, storage.ErrNotFound)
	}

	delete(r.files, k)
	return nil
}

func (r *Registry) List(_ context.Context, fileType storage.FileType) ([]storage.FileInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var files []storage.FileInfo
	for k, info := range r.files {
		if k.fileType == fileType {
			files = append(files, info)
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Filename < files[j].Filename
	})

	return files, nil
}
