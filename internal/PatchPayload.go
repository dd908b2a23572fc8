package internal

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// CompressedPatchExtension marks a patch file whose payload is zstd
// compressed. The format extension comes before it, e.g. "fix.ips.zst".
const CompressedPatchExtension = ".zst"

// IsCompressedPatch reports whether the patch payload must be decompressed
// before use
func IsCompressedPatch(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), CompressedPatchExtension)
}

// decompressPatch writes the decompressed payload of a zstd patch to a new
// temporary file in dir and returns its path. The caller owns the file.
// A payload that fails to decode is an invalid patch.
func decompressPatch(patchPath string, dir string, prefix string) (string, error) {
	file, err := os.Open(patchPath)
	if err != nil {
		return "", newPatchError(IO, err)
	}
	defer file.Close()

	zReader, err := zstd.NewReader(file)
	if err != nil {
		return "", newPatchErrorf(InvalidPatchFile, "failed to create zstd reader: %w", err)
	}
	defer zReader.Close()

	tempFile, err := os.CreateTemp(dir, prefix+"-*.patch")
	if err != nil {
		return "", newPatchErrorf(IO, "failed to create temporary file: %w", err)
	}
	tempPath := tempFile.Name()

	written, err := io.Copy(tempFile, zReader)
	closeErr := tempFile.Close()
	if err != nil {
		os.Remove(tempPath)
		return "", newPatchErrorf(InvalidPatchFile, "failed to decompress patch: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return "", newPatchError(IO, closeErr)
	}

	PushLogDebug(nil, fmt.Sprintf("[Payload] Decompressed %s to %s (%d bytes)", patchPath, tempPath, written))
	return tempPath, nil
}
