package localfs

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"avatarpipe/internal/pkg/errors"
	"avatarpipe/internal/ports"
)

// LocalFS implements ports.StorageProvider on a local archive directory.
type LocalFS struct {
	root string
}

func New(root string) *LocalFS {
	return &LocalFS{root: root}
}

func (l *LocalFS) Provider() string { return "localfs" }

func (l *LocalFS) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	const op = "localfs.put"

	if in.ObjectKey == "" {
		return ports.PutObjectOutput{}, errors.ValidationField("object_key", "object_key is required").WithOp(op)
	}

	dst := filepath.Join(l.root, filepath.FromSlash(in.ObjectKey))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ports.PutObjectOutput{}, errors.Wrap(err, op, "create archive directory")
	}

	outF, err := os.Create(dst)
	if err != nil {
		return ports.PutObjectOutput{}, errors.Wrap(err, op, "create archive file")
	}
	defer outF.Close()

	n, err := io.Copy(outF, in.Reader)
	if err != nil {
		return ports.PutObjectOutput{}, errors.Wrap(err, op, "copy object")
	}

	return ports.PutObjectOutput{ObjectKey: in.ObjectKey, Size: n}, nil
}

// Share returns a file:// link; local files carry no permissions to grant.
func (l *LocalFS) Share(ctx context.Context, objectKey string) (string, error) {
	p := filepath.Join(l.root, filepath.FromSlash(objectKey))
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", errors.Wrap(err, "localfs.share", "resolve path")
	}
	if _, err := os.Stat(abs); err != nil {
		return "", errors.NotFound("object", objectKey).WithOp("localfs.share")
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}

func (l *LocalFS) Check(ctx context.Context) error {
	if err := os.MkdirAll(l.root, 0o755); err != nil {
		return errors.Wrap(err, "localfs.check", "archive directory unavailable")
	}
	return nil
}
