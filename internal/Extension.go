package internal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// GetStagingFilenameHash generates a stable name fragment for the temporary
// files that belong to one patch operation
func GetStagingFilenameHash(sourcePath, patchPath string, format PatchFormat) string {
	concatName := fmt.Sprintf("%s$%s$%s", filepath.Base(sourcePath), filepath.Base(patchPath), format)
	h := xxhash.New()
	h.Write([]byte(concatName))
	return BytesToHex(h.Sum(nil))
}

// ToSet converts a slice to a set (map with empty struct values)
func ToSet[T comparable](items []T) map[T]struct{} {
	set := make(map[T]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

// hasExtension reports whether the file name ends with one of the extensions
// in the set. Extensions are stored lower case without the leading dot.
func hasExtension(path string, extensions map[string]struct{}) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	_, ok := extensions[ext]
	return ok
}

// fileSize returns the size of the file at path
func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}

// copyFileTo copies the file at path into dst and returns the number of
// bytes written
func copyFileTo(dst io.Writer, path string) (int64, error) {
	src, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	return io.Copy(dst, src)
}

// removeTemporaryFile deletes a temporary artifact. Failures are only logged
// because cleanup must never mask the outcome of the patch itself.
func removeTemporaryFile(sender interface{}, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		PushLogWarning(sender, fmt.Sprintf("Failed to remove temporary file: %s - %v", path, err))
		return
	}
	PushLogDebug(sender, fmt.Sprintf("Removed temporary file: %s", path))
}
