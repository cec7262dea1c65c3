package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/aio-mcp/aio-server/internal/storage"
	"github.com/aio-mcp/aio-server/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite registry.
type RepositoryConfig struct {
	DBPath string
	Logger *zap.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	c.Logger = c.Logger.Named("registry.sqlite")
	return nil
}

// Repository is a SQLite implementation of storage.Registry.
type Repository struct {
	db  *sql.DB
	log *zap.Logger
}

var _ storage.Registry = (*Repository)(nil)

// NewRepository opens the database at cfg.DBPath and applies all
// pending migrations.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debug("sqlite registry initialized", zap.String("path", cfg.DBPath))

	return &Repository{db: db, log: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

// Put creates or replaces the record of a file.
func (r *Repository) Put(ctx context.Context, info storage.FileInfo) error {
	query := `
		INSERT INTO files (id, file_type, filename, size, checksum, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (file_type, filename) DO UPDATE SET
			id = excluded.id,
			size = excluded.size,
			checksum = excluded.checksum,
			created_at = excluded.created_at
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		info.ID,
		string(info.FileType),
		info.Filename,
		info.Size,
		info.Checksum,
		info.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("could not upsert file: %w", err)
	}

	r.log.Debug("stored file record", zap.String("id", info.ID))
	return nil
}

// Get returns the record of a file.
func (r *Repository) Get(ctx context.Context, fileType storage.FileType, name string) (storage.FileInfo, error) {
	query := `
		SELECT id, file_type, filename, size, checksum, created_at
		FROM files
		WHERE file_type = ? AND filename = ?
	`

	info, err := scanRow(r.db.QueryRowContext(ctx, query, string(fileType), name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.FileInfo{}, fmt.Errorf("file %s/%s: %w", fileType, name, storage.ErrNotFound)
		}
		return storage.FileInfo{}, fmt.Errorf("could not query file: %w", err)
	}

	return info, nil
}

// Delete removes the record of a file.
func (r *Repository) Delete(ctx context.Context, fileType storage.FileType, name string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM files WHERE file_type = ? AND filename = ?`,
		string(fileType), name,
	)
	if err != nil {
		return fmt.Errorf("could not delete file: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("file %s/%s: %w", fileType, name, storage.ErrNotFound)
	}

	r.log.Debug("deleted file record",
		zap.String("file_type", string(fileType)),
		zap.String("filename", name),
	)
	return nil
}

// List returns all records of a file type ordered by name.
func (r *Repository) List(ctx context.Context, fileType storage.FileType) ([]storage.FileInfo, error) {
	query := `
		SELECT id, file_type, filename, size, checksum, created_at
		FROM files
		WHERE file_type = ?
		ORDER BY filename ASC
	`

	rows, err := r.db.QueryContext(ctx, query, string(fileType))
	if err != nil {
		return nil, fmt.Errorf("could not query files: %w", err)
	}
	defer rows.Close()

	var files []storage.FileInfo
	for rows.Next() {
		info, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		files = append(files, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return files, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (storage.FileInfo, error) {
	var info storage.FileInfo
	var fileType string
	var createdAt int64

	err := s.Scan(
		&info.ID,
		&fileType,
		&info.Filename,
		&info.Size,
		&info.Checksum,
		&createdAt,
	)
	if err != nil {
		return storage.FileInfo{}, err
	}

	info.FileType = storage.FileType(fileType)
	info.CreatedAt = time.Unix(createdAt, 0).UTC()

	return info, nil
}
