package port

import "context"

// FileStore defines blob storage for uploaded trip documents
type FileStore interface {
	Save(ctx context.Context, path string, content []byte, contentType string) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	// Delete is idempotent: deleting a missing path succeeds
	Delete(ctx context.Context, path string) error
}
