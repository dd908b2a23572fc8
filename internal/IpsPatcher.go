package internal

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	ipsHeader = "PATCH"
	ipsEOF    = "EOF"

	minimumIpsSize    = 8
	maximumIpsSize    = 16 << 20
	maximumSourceSize = 16 << 20

	ipsOffsetByteCount   = 3
	ipsSizeByteCount     = 2
	ipsRleSizeByteCount  = 2
	ipsTruncateByteCount = 3
)

// errIpsTruncated is returned by the record reader when a record runs past
// the end of the patch data
var errIpsTruncated = errors.New("ips record runs past end of patch")

type ipsRecordKind int

const (
	ipsLiteral ipsRecordKind = iota
	ipsRle
	ipsEnd
)

// ipsRecord is a single decoded IPS record. For literal records Data aliases
// the patch data.
type ipsRecord struct {
	Kind   ipsRecordKind
	Offset int
	Size   int
	Data   []byte
	Fill   byte
}

// end returns the first offset after the region touched by the record
func (r ipsRecord) end() int {
	return r.Offset + r.Size
}

// ipsRecordReader decodes the IPS record stream one record at a time
type ipsRecordReader struct {
	data []byte
	pos  int
	done bool
}

// newIpsRecordReader checks the header and returns a reader positioned on
// the first record
func newIpsRecordReader(data []byte) (*ipsRecordReader, error) {
	if !bytes.HasPrefix(data, []byte(ipsHeader)) {
		return nil, newPatchErrorf(InvalidPatchFile, "missing %q header", ipsHeader)
	}
	return &ipsRecordReader{
		data: data,
		pos:  len(ipsHeader),
	}, nil
}

func (r *ipsRecordReader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, errIpsTruncated
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// readUint reads a big endian unsigned integer of n bytes
func (r *ipsRecordReader) readUint(n int) (int, error) {
	b, err := r.take(n)
	if err != nil {
		return 0, err
	}
	v := 0
	for _, c := range b {
		v = v<<8 | int(c)
	}
	return v, nil
}

// next returns the next record. The final record has Kind ipsEnd.
func (r *ipsRecordReader) next() (ipsRecord, error) {
	if r.done {
		return ipsRecord{Kind: ipsEnd}, nil
	}

	if bytes.HasPrefix(r.data[r.pos:], []byte(ipsEOF)) {
		r.pos += len(ipsEOF)
		r.done = true
		return ipsRecord{Kind: ipsEnd}, nil
	}

	offset, err := r.readUint(ipsOffsetByteCount)
	if err != nil {
		return ipsRecord{}, err
	}

	size, err := r.readUint(ipsSizeByteCount)
	if err != nil {
		return ipsRecord{}, err
	}

	if size == 0 {
		rleSize, err := r.readUint(ipsRleSizeByteCount)
		if err != nil {
			return ipsRecord{}, err
		}
		fill, err := r.take(1)
		if err != nil {
			return ipsRecord{}, err
		}
		return ipsRecord{Kind: ipsRle, Offset: offset, Size: rleSize, Fill: fill[0]}, nil
	}

	data, err := r.take(size)
	if err != nil {
		return ipsRecord{}, err
	}
	return ipsRecord{Kind: ipsLiteral, Offset: offset, Size: size, Data: data}, nil
}

// truncateLength returns the truncate length that may follow the EOF marker.
// Only exactly three trailing bytes count as a truncate length; anything
// else is ignored.
func (r *ipsRecordReader) truncateLength() (int, bool) {
	if !r.done || len(r.data)-r.pos != ipsTruncateByteCount {
		return 0, false
	}
	v, err := r.readUint(ipsTruncateByteCount)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ipsBuffer is the target buffer mutated by IPS records
type ipsBuffer struct {
	data []byte
}

// ensure grows the buffer with zeros to exactly length bytes if it is shorter
func (b *ipsBuffer) ensure(length int) {
	if length > len(b.data) {
		grown := make([]byte, length)
		copy(grown, b.data)
		b.data = grown
	}
}

func (b *ipsBuffer) apply(record ipsRecord) {
	b.ensure(record.end())

	switch record.Kind {
	case ipsLiteral:
		copy(b.data[record.Offset:], record.Data)
	case ipsRle:
		region := b.data[record.Offset:record.end()]
		for i := range region {
			region[i] = record.Fill
		}
	}
}

// truncate shrinks the buffer when 0 < length < current length
func (b *ipsBuffer) truncate(length int) bool {
	if length > 0 && length < len(b.data) {
		b.data = b.data[:length]
		return true
	}
	return false
}

// applyIpsPatch applies the IPS patch data to a copy of source and returns
// the patched data
func applyIpsPatch(source []byte, patch []byte) ([]byte, error) {
	reader, err := newIpsRecordReader(patch)
	if err != nil {
		return nil, err
	}

	buffer := &ipsBuffer{data: append([]byte(nil), source...)}

	for {
		record, err := reader.next()
		if err != nil {
			return nil, newPatchError(InvalidPatchFile, err)
		}
		if record.Kind == ipsEnd {
			break
		}
		buffer.apply(record)
	}

	if length, ok := reader.truncateLength(); ok {
		if buffer.truncate(length) {
			PushLogDebug(nil, fmt.Sprintf("[Method: IPS] Truncated patched data to 0x%x bytes", length))
		}
	}

	return buffer.data, nil
}

// ipsHandler implements formatHandler for IPS patches
type ipsHandler struct{}

func (ipsHandler) patchFormat() PatchFormat {
	return IPS
}

func (ipsHandler) validate(session *patchSession) error {
	if err := validateFileSize(session.sourcePath, 0, maximumSourceSize, FileToPatchNotPatchable); err != nil {
		return err
	}

	if err := validateFileSize(session.patchPath, minimumIpsSize, maximumIpsSize, InvalidPatchFile); err != nil {
		return err
	}

	if session.job.Checksum != "" && !session.job.SkipChecksumValidation {
		algorithm, err := VerifySourceChecksum(session.sourcePath, session.job.Checksum)
		if err != nil {
			return err
		}
		PushLogDebug(nil, fmt.Sprintf("[Method: IPS] Source %s matched %s checksum", session.sourcePath, algorithm))
	}

	return nil
}

func (ipsHandler) apply(session *patchSession) error {
	patch, err := os.ReadFile(session.patchPath)
	if err != nil {
		return newPatchError(IO, err)
	}

	if _, err := session.workingFile.Seek(0, io.SeekStart); err != nil {
		return newPatchError(IO, err)
	}
	source, err := io.ReadAll(session.workingFile)
	if err != nil {
		return newPatchError(IO, err)
	}

	patched, err := applyIpsPatch(source, patch)
	if err != nil {
		return err
	}

	if err := session.workingFile.Truncate(0); err != nil {
		return newPatchError(IO, err)
	}
	if _, err := session.workingFile.WriteAt(patched, 0); err != nil {
		return newPatchError(IO, err)
	}

	return nil
}

// validateFileSize checks that the size of the file is within [minLimit, maxLimit]
func validateFileSize(path string, minLimit, maxLimit int64, issue PatchIssue) error {
	size, err := fileSize(path)
	if err != nil {
		return newPatchError(IO, err)
	}
	if size < minLimit || size > maxLimit {
		return newPatchErrorf(issue, "size of %s is %d bytes, expected between %d and %d", path, size, minLimit, maxLimit)
	}
	return nil
}
