package transcribe

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// Object is a chunk stored where the recognizer can read it.
type Object struct {
	// URI is what the recognizer is given, e.g. "file:///srv/store/bucket/a_part01.flac".
	URI string
	// Path is the local path of the stored copy, if there is one.
	Path string
	// Checksum is the xxhash64 of the content, hex encoded.
	Checksum string
	Size     int64
}

// ObjectStore uploads chunks for recognition.
type ObjectStore interface {
	Put(ctx context.Context, bucket, name, src string) (Object, error)
}

// LocalStore stores objects under <Root>/<bucket>/<name>.
type LocalStore struct {
	Root string
}

// Put copies src into the store. An object that already holds identical
// content is not rewritten.
func (s *LocalStore) Put(ctx context.Context, bucket, name, src string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	if bucket == "" || name == "" || filepath.Base(name) != name {
		return Object{}, fmt.Errorf("invalid object name %q in bucket %q", name, bucket)
	}

	dst, err := filepath.Abs(filepath.Join(s.Root, bucket, name))
	if err != nil {
		return Object{}, err
	}

	sum, size, err := checksumFile(src)
	if err != nil {
		return Object{}, fmt.Errorf("reading %s: %w", src, err)
	}
	obj := Object{
		URI:      "file://" + filepath.ToSlash(dst),
		Path:     dst,
		Checksum: sum,
		Size:     size,
	}

	if existing, existingSize, err := checksumFile(dst); err == nil && existing == sum && existingSize == size {
		return obj, nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Object{}, fmt.Errorf("creating bucket directory: %w", err)
	}
	if err := copyFile(src, dst); err != nil {
		return Object{}, fmt.Errorf("uploading %s: %w", name, err)
	}
	return obj, nil
}

func checksumFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := xxhash.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("%016x", h.Sum64()), n, nil
}

// copyFile writes through a temporary file so readers never see a partial object.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
