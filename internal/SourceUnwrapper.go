package internal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// containerExtensions are the file extensions of sources that wrap the real
// media image in an archive
var containerExtensions = ToSet([]string{"zip", "gz"})

// IsContainer reports whether the source file is an archive wrapping the
// media image. Detection is by file extension only.
func IsContainer(path string) bool {
	return hasExtension(path, containerExtensions)
}

// unwrapContainer extracts the media image wrapped by the container into a
// new temporary file in dir and returns its path. For zip archives the first
// entry is used. The caller owns the returned file.
func unwrapContainer(containerPath string, dir string, prefix string) (string, error) {
	tempFile, err := os.CreateTemp(dir, prefix+"-*.unwrapped")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempPath := tempFile.Name()

	var written int64
	switch strings.ToLower(filepath.Ext(containerPath)) {
	case ".gz":
		written, err = extractGzip(tempFile, containerPath)
	default:
		written, err = extractFirstZipEntry(tempFile, containerPath)
	}

	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return "", err
	}

	PushLogDebug(nil, fmt.Sprintf("[Unwrap] Extracted %d bytes from %s to %s", written, containerPath, tempPath))
	return tempPath, nil
}

func extractFirstZipEntry(dst io.Writer, zipPath string) (int64, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open zip archive: %w", err)
	}
	defer zr.Close()

	if len(zr.File) == 0 {
		return 0, errors.New("zip archive has no entries")
	}

	entry, err := zr.File[0].Open()
	if err != nil {
		return 0, fmt.Errorf("failed to open zip entry %s: %w", zr.File[0].Name, err)
	}
	defer entry.Close()

	written, err := io.Copy(dst, entry)
	if err != nil {
		return written, fmt.Errorf("failed to extract zip entry %s: %w", zr.File[0].Name, err)
	}
	return written, nil
}

func extractGzip(dst io.Writer, gzipPath string) (int64, error) {
	file, err := os.Open(gzipPath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return 0, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gzReader.Close()

	// only the first member is the wrapped image
	gzReader.Multistream(false)

	written, err := io.Copy(dst, gzReader)
	if err != nil {
		return written, fmt.Errorf("failed to decompress gzip stream: %w", err)
	}
	return written, nil
}
