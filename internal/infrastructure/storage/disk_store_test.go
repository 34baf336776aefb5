package storage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDiskStore_SaveReadDelete(t *testing.T) {
	tempDir := t.TempDir()
	store := NewDiskStore(tempDir, zap.NewNop())
	ctx := context.Background()

	t.Run("saves and reads file", func(t *testing.T) {
		err := store.Save(ctx, "trips/TRV-1/receipt/r.pdf", []byte("PDF content"), "application/pdf")
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(tempDir, "trips", "TRV-1", "receipt", "r.pdf"))

		content, err := store.Read(ctx, "trips/TRV-1/receipt/r.pdf")
		require.NoError(t, err)
		assert.Equal(t, []byte("PDF content"), content)
		assert.True(t, store.Exists(ctx, "trips/TRV-1/receipt/r.pdf"))
	})

	t.Run("overwrite leaves no temp files", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "trips/TRV-1/receipt/r.pdf", []byte("v2"), "application/pdf"))

		content, err := store.Read(ctx, "trips/TRV-1/receipt/r.pdf")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), content)

		entries, err := os.ReadDir(filepath.Join(tempDir, "trips", "TRV-1", "receipt"))
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("directories are not files", func(t *testing.T) {
		assert.False(t, store.Exists(ctx, "trips/TRV-1"))
	})

	t.Run("delete prunes empty directories and is idempotent", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "trips/TRV-1/receipt/r.pdf"))
		assert.False(t, store.Exists(ctx, "trips/TRV-1/receipt/r.pdf"))
		assert.NoDirExists(t, filepath.Join(tempDir, "trips"))
		assert.DirExists(t, tempDir)
		require.NoError(t, store.Delete(ctx, "trips/TRV-1/receipt/r.pdf"))
	})

	t.Run("read missing file wraps not exist", func(t *testing.T) {
		_, err := store.Read(ctx, "missing.pdf")
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})
}

func TestDiskStore_RejectsEscapingKeys(t *testing.T) {
	tempDir := t.TempDir()
	store := NewDiskStore(filepath.Join(tempDir, "base"), zap.NewNop())
	ctx := context.Background()

	outside := filepath.Join(tempDir, "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0644))

	assert.ErrorIs(t, store.Save(ctx, "../escape.txt", []byte("x"), ""), ErrInvalidKey)
	_, err := store.Read(ctx, "../secret.txt")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.False(t, store.Exists(ctx, "../secret.txt"))
	assert.ErrorIs(t, store.Delete(ctx, "trips/../../secret.txt"), ErrInvalidKey)
	assert.FileExists(t, outside)
}

func TestCleanKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		invalid bool
	}{
		{in: "trips/TRV-1/a.pdf", want: "trips/TRV-1/a.pdf"},
		{in: "/trips/TRV-1/a.pdf", want: "trips/TRV-1/a.pdf"},
		{in: "trips//TRV-1/./a.pdf", want: "trips/TRV-1/a.pdf"},
		{in: "", invalid: true},
		{in: "/", invalid: true},
		{in: "trips/../a.pdf", invalid: true},
		{in: "trips\\a.pdf", invalid: true},
	}

	for _, tt := range tests {
		got, err := CleanKey(tt.in)
		if tt.invalid {
			assert.ErrorIs(t, err, ErrInvalidKey, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"boarding pass.pdf", "boardingpass.pdf"},
		{"../../etc/passwd", "etcpasswd"},
		{"C:\\temp\\r.png", "Ctempr.png"},
		{"...", "file"},
		{"", "file"},
		{"receipt_2026-03-01.jpg", "receipt_2026-03-01.jpg"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeName(tt.in), tt.in)
	}
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("TRV-0A1B2C3D", "receipt", "hotel bill.pdf")

	parts := strings.Split(key, "/")
	require.Len(t, parts, 4)
	assert.Equal(t, "trips", parts[0])
	assert.Equal(t, "TRV-0A1B2C3D", parts[1])
	assert.Equal(t, "receipt", parts[2])
	assert.True(t, strings.HasSuffix(parts[3], "-hotelbill.pdf"))
	assert.NotEqual(t, key, ObjectKey("TRV-0A1B2C3D", "receipt", "hotel bill.pdf"))
}

func TestNewS3FileStorage_RequiresEndpointAndBucket(t *testing.T) {
	_, err := NewS3FileStorage(S3Config{Bucket: "trips"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewS3FileStorage(S3Config{Endpoint: "localhost:9000"}, zap.NewNop())
	assert.Error(t, err)

	store, err := NewS3FileStorage(S3Config{Endpoint: "localhost:9000", Bucket: "trips", Region: "us-east-1"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "trips", store.bucket)
	assert.ErrorIs(t, store.Save(context.Background(), "../x", nil, ""), ErrInvalidKey)
}
