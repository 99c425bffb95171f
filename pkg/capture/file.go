package capture

import (
	"context"
	"fmt"
	"os"
)

// FileScanner "captures" by reading an image file from disk. It stands in for
// a camera on machines without one.
type FileScanner struct {
	path string
}

// NewFileScanner returns a scanner that reads path on every scan.
func NewFileScanner(path string) *FileScanner {
	return &FileScanner{path: path}
}

// Available reports whether path exists and is a regular file.
func (f *FileScanner) Available() bool {
	info, err := os.Stat(f.path)
	return err == nil && info.Mode().IsRegular()
}

// Scan reads the file.
func (f *FileScanner) Scan(ctx context.Context, opts ScanOptions) ([]RawImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, &CaptureError{Code: CodeReadFailed, Message: fmt.Sprintf("read %s: %v", f.path, err), Err: err}
	}
	return []RawImage{NewRawImage(data)}, nil
}

// Close is a no-op.
func (f *FileScanner) Close() error { return nil }

var _ Camera = (*FileScanner)(nil)
