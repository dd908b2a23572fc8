package internal

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

var fileToPatchData = []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}

func writeTestFile(t *testing.T, dir string, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func createFileToPatch(t *testing.T, dir string) string {
	return writeTestFile(t, dir, "file-to-patch.rom", fileToPatchData)
}

func createPatchFile(t *testing.T, dir string, name string, data []byte) string {
	return writeTestFile(t, dir, name, data)
}

func zipFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(filepath.Base(path))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	return writeTestFile(t, filepath.Dir(path), "zip-file.zip", buf.Bytes())
}

func gzipFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}

	return writeTestFile(t, filepath.Dir(path), filepath.Base(path)+".gz", buf.Bytes())
}

func zstdFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer encoder.Close()

	return writeTestFile(t, filepath.Dir(path), filepath.Base(path)+CompressedPatchExtension, encoder.EncodeAll(data, nil))
}

func readTestFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return data
}

func assertFileData(t *testing.T, path string, expected []byte) {
	t.Helper()
	if diff := cmp.Diff(expected, readTestFile(t, path)); diff != "" {
		t.Errorf("unexpected data in %s (-want +got):\n%s", path, diff)
	}
}

func assertIssue(t *testing.T, err error, expected PatchIssue) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %q error, got nil", expected)
	}
	issue, ok := IssueOf(err)
	if !ok {
		t.Fatalf("expected a PatchError, got %T: %v", err, err)
	}
	if issue != expected {
		t.Fatalf("expected %q, got %q (%v)", expected, issue, err)
	}
}

// assertNoTemporaryFiles checks that a patch left nothing behind in dir
func assertNoTemporaryFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		t.Errorf("temporary file left behind: %s", e.Name())
	}
}

// encodeUpsVarint is the inverse of upsReader.readVarint
func encodeUpsVarint(v uint64) []byte {
	var out []byte
	for {
		x := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, 0x80|x)
		}
		out = append(out, x)
		v--
	}
}

func byteAt(data []byte, i int) byte {
	if i < len(data) {
		return data[i]
	}
	return 0
}

// createUpsPatchData builds a UPS patch that turns source into target
func createUpsPatchData(source, target []byte) []byte {
	patch := []byte(upsHeader)
	patch = append(patch, encodeUpsVarint(uint64(len(source)))...)
	patch = append(patch, encodeUpsVarint(uint64(len(target)))...)

	length := len(source)
	if len(target) > length {
		length = len(target)
	}

	offset := 0
	for i := 0; i < length; {
		if byteAt(source, i)^byteAt(target, i) == 0 {
			i++
			continue
		}

		patch = append(patch, encodeUpsVarint(uint64(i-offset))...)
		for i < length && byteAt(source, i)^byteAt(target, i) != 0 {
			patch = append(patch, byteAt(source, i)^byteAt(target, i))
			i++
		}
		patch = append(patch, 0)

		// the terminator stands for one unchanged byte
		i++
		offset = i
	}

	patch = binary.LittleEndian.AppendUint32(patch, crc32.ChecksumIEEE(source))
	patch = binary.LittleEndian.AppendUint32(patch, crc32.ChecksumIEEE(target))
	return binary.LittleEndian.AppendUint32(patch, crc32.ChecksumIEEE(patch))
}
