package files

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

const defaultMimeType = "application/octet-stream"

var (
	ErrNoFile      = errors.New("no file specified")
	ErrIsDirectory = errors.New("is a directory")
	ErrTooLarge    = errors.New("file exceeds the maximum transfer size")
)

// FileInfo holds information about a file to be sent
type FileInfo struct {
	// Path is the absolute path to the file
	Path string

	// Name is the filename (without directory)
	Name string

	// Size is the file size in bytes
	Size int64

	// MimeType is the detected content type, e.g. "application/pdf"
	MimeType string
}

// ValidateFile checks that path names a readable regular file no larger than
// maxSize (0 disables the bound) and returns its metadata. Empty files are valid.
func ValidateFile(path string, maxSize int64) (FileInfo, error) {
	if path == "" {
		return FileInfo{}, ErrNoFile
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("%s: failed to get absolute path: %w", path, err)
	}

	stat, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return FileInfo{}, fmt.Errorf("%s: file does not exist", path)
		}
		return FileInfo{}, fmt.Errorf("%s: failed to stat file: %w", path, err)
	}

	if stat.IsDir() {
		return FileInfo{}, fmt.Errorf("%s: %w", path, ErrIsDirectory)
	}

	if maxSize > 0 && stat.Size() > maxSize {
		return FileInfo{}, fmt.Errorf("%s: %w", path, ErrTooLarge)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return FileInfo{}, fmt.Errorf("%s: cannot open file (check permissions): %w", path, err)
	}
	file.Close()

	return FileInfo{
		Path:     absPath,
		Name:     filepath.Base(absPath),
		Size:     stat.Size(),
		MimeType: DetectMimeType(absPath),
	}, nil
}

// DetectMimeType sniffs the file content; unknown types become application/octet-stream.
func DetectMimeType(path string) string {
	mtype, err := mimetype.DetectFile(path)
	if err != nil || mtype == nil {
		return defaultMimeType
	}
	return mtype.String()
}

// DetectMimeTypeReader is DetectMimeType for in-memory content.
func DetectMimeTypeReader(r io.Reader) string {
	mtype, err := mimetype.DetectReader(r)
	if err != nil || mtype == nil {
		return defaultMimeType
	}
	return mtype.String()
}
