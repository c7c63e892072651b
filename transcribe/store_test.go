package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_Put(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "class_part01.flac")
	content := []byte("fLaC chunk content")
	require.NoError(t, os.WriteFile(src, content, 0o644))

	store := &LocalStore{Root: filepath.Join(dir, "store")}
	obj, err := store.Put(context.Background(), "seminars", "class_part01.flac", src)
	require.NoError(t, err)

	wantPath, err := filepath.Abs(filepath.Join(dir, "store", "seminars", "class_part01.flac"))
	require.NoError(t, err)
	assert.Equal(t, wantPath, obj.Path)
	assert.Equal(t, "file://"+filepath.ToSlash(wantPath), obj.URI)
	assert.Equal(t, fmt.Sprintf("%016x", xxhash.Sum64(content)), obj.Checksum)
	assert.Equal(t, int64(len(content)), obj.Size)

	stored, err := os.ReadFile(obj.Path)
	require.NoError(t, err)
	assert.Equal(t, content, stored)

	// No temporary files are left next to the object.
	entries, err := os.ReadDir(filepath.Dir(obj.Path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalStore_PutIdenticalContentIsKept(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.flac")
	require.NoError(t, os.WriteFile(src, []byte("same"), 0o644))
	store := &LocalStore{Root: dir}

	first, err := store.Put(context.Background(), "b", "a.flac", src)
	require.NoError(t, err)
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(first.Path, old, old))

	second, err := store.Put(context.Background(), "b", "a.flac", src)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	info, err := os.Stat(second.Path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old), "identical object should not be rewritten")

	// Changed content replaces the object.
	require.NoError(t, os.WriteFile(src, []byte("different"), 0o644))
	third, err := store.Put(context.Background(), "b", "a.flac", src)
	require.NoError(t, err)
	assert.NotEqual(t, first.Checksum, third.Checksum)
	stored, err := os.ReadFile(third.Path)
	require.NoError(t, err)
	assert.Equal(t, "different", string(stored))
}

func TestLocalStore_PutErrors(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.flac")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))
	store := &LocalStore{Root: dir}

	tests := []struct {
		name   string
		bucket string
		object string
		src    string
	}{
		{name: "empty bucket", bucket: "", object: "a.flac", src: src},
		{name: "nested object name", bucket: "b", object: "../a.flac", src: src},
		{name: "missing source", bucket: "b", object: "a.flac", src: filepath.Join(dir, "absent.flac")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Put(context.Background(), tt.bucket, tt.object, tt.src)
			assert.Error(t, err)
		})
	}

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := store.Put(ctx, "b", "a.flac", src)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
