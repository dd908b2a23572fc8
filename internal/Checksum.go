package internal

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ChecksumAlgorithm names a digest the checksum provider can compute
type ChecksumAlgorithm int

const (
	Sha1 ChecksumAlgorithm = iota
	Md5
	Crc32
	Xxh64
)

// sourceChecksumOrder is the order in which a caller supplied checksum is
// tried against the source file. Patch metadata may carry any of the three.
var sourceChecksumOrder = []ChecksumAlgorithm{Sha1, Md5, Crc32}

// String returns the algorithm name
func (a ChecksumAlgorithm) String() string {
	switch a {
	case Sha1:
		return "sha1"
	case Md5:
		return "md5"
	case Crc32:
		return "crc32"
	case Xxh64:
		return "xxh64"
	}
	return fmt.Sprintf("checksum(%d)", int(a))
}

func (a ChecksumAlgorithm) newHash() hash.Hash {
	switch a {
	case Sha1:
		return sha1.New()
	case Md5:
		return md5.New()
	case Crc32:
		return crc32.NewIEEE()
	}
	return xxhash.New()
}

// BytesToHex converts a byte slice to a hexadecimal string
func BytesToHex(bytes []byte) string {
	return hex.EncodeToString(bytes)
}

// ChecksumOfReader returns the lowercase hex digest of everything read from r
func ChecksumOfReader(algorithm ChecksumAlgorithm, r io.Reader) (string, error) {
	h := algorithm.newHash()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return BytesToHex(h.Sum(nil)), nil
}

// ChecksumOfFile returns the lowercase hex digest of a file. CRC-32 digests
// are always 8 hex characters long.
func ChecksumOfFile(algorithm ChecksumAlgorithm, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	return ChecksumOfReader(algorithm, file)
}

// Crc32OfFile returns the IEEE CRC-32 of a file
func Crc32OfFile(path string) (uint32, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	h := crc32.NewIEEE()
	if _, err := io.Copy(h, file); err != nil {
		return 0, err
	}
	return h.Sum32(), nil
}

// ChecksumMatches compares a caller supplied checksum against a computed
// digest. The comparison ignores case and surrounding white space. CRC-32
// values are compared numerically so that "1a2b" matches "00001a2b".
func ChecksumMatches(algorithm ChecksumAlgorithm, expected, actual string) bool {
	expected = strings.TrimSpace(expected)
	if strings.EqualFold(expected, actual) {
		return true
	}
	if algorithm != Crc32 || len(expected) == 0 || len(expected) > 8 {
		return false
	}

	want, err := strconv.ParseUint(expected, 16, 32)
	if err != nil {
		return false
	}
	got, err := strconv.ParseUint(actual, 16, 32)
	if err != nil {
		return false
	}
	return want == got
}

// VerifySourceChecksum checks the file against the expected checksum, trying
// SHA-1, then MD5, then CRC-32. The first algorithm that matches is returned.
func VerifySourceChecksum(path string, expected string) (ChecksumAlgorithm, error) {
	for _, algorithm := range sourceChecksumOrder {
		actual, err := ChecksumOfFile(algorithm, path)
		if err != nil {
			return algorithm, newPatchError(IO, err)
		}
		if ChecksumMatches(algorithm, expected, actual) {
			return algorithm, nil
		}
	}
	return Crc32, newPatchErrorf(SourceFileChecksumNotMatch, "%s does not match %q", path, strings.TrimSpace(expected))
}
