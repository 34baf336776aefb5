package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/travel-desk/internal/application/port"
	"github.com/garyjia/travel-desk/internal/domain/entity"
	"github.com/garyjia/travel-desk/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// FileRepository implements port.FileRepository
type FileRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFileRepository creates a new trip file repository
func NewFileRepository(db *sql.DB, logger *zap.Logger) port.FileRepository {
	return &FileRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a trip file record
func (r *FileRepository) Create(ctx context.Context, file *entity.TripFile) error {
	query := `
		INSERT INTO trip_files (trip_id, kind, path, file_name, content_type, size, uploaded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		file.TripID,
		file.Kind,
		file.Path,
		file.FileName,
		file.ContentType,
		file.Size,
		file.UploadedBy,
		file.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create trip file", zap.Int64("trip_id", file.TripID), zap.Error(err))
		return fmt.Errorf("failed to create trip file: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	file.ID = id
	return nil
}

// ListByTripID returns the files of a trip, optionally filtered by kind
func (r *FileRepository) ListByTripID(ctx context.Context, tripID int64, kinds ...string) ([]*entity.TripFile, error) {
	query := `
		SELECT id, trip_id, kind, path, file_name, content_type, size, uploaded_by, created_at
		FROM trip_files WHERE trip_id = ?
	`
	args := []interface{}{tripID}
	if len(kinds) > 0 {
		query += ` AND kind IN (` + placeholders(len(kinds)) + `)`
		for _, k := range kinds {
			args = append(args, k)
		}
	}
	query += ` ORDER BY id`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list trip files", zap.Int64("trip_id", tripID), zap.Error(err))
		return nil, fmt.Errorf("failed to list trip files: %w", err)
	}
	defer rows.Close()

	var files []*entity.TripFile
	for rows.Next() {
		var file entity.TripFile
		if err := rows.Scan(
			&file.ID,
			&file.TripID,
			&file.Kind,
			&file.Path,
			&file.FileName,
			&file.ContentType,
			&file.Size,
			&file.UploadedBy,
			&file.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trip file: %w", err)
		}
		files = append(files, &file)
	}

	return files, rows.Err()
}

// Delete removes a trip file record. Deleting a missing row is not an error.
func (r *FileRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM trip_files WHERE id = ?`

	if _, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, id); err != nil {
		r.logger.Error("Failed to delete trip file", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete trip file: %w", err)
	}
	return nil
}
