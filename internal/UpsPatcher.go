package internal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
)

const (
	upsHeader = "UPS1"

	upsCrcLength       = 4
	upsCrcChecksLength = upsCrcLength * 3

	upsReadBufferSize = 32 << 10
)

var errUpsVarintOverflow = errors.New("ups varint does not fit in 64 bits")

// upsTrailer holds the three CRC-32 fields at the end of a UPS patch, in
// file order. PatchCrc covers every patch byte before it.
type upsTrailer struct {
	SourceCrc uint32
	TargetCrc uint32
	PatchCrc  uint32
}

// upsReader reads the record area of a UPS patch and keeps track of the read
// position within it
type upsReader struct {
	r   *bufio.Reader
	pos int64
}

func newUpsReader(records io.Reader) *upsReader {
	return &upsReader{r: bufio.NewReaderSize(records, upsReadBufferSize)}
}

func (u *upsReader) ReadByte() (byte, error) {
	b, err := u.r.ReadByte()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, err
	}
	u.pos++
	return b, nil
}

// readVarint decodes a UPS variable length integer. Every byte after the
// first adds one before shifting, and a set high bit ends the number.
func (u *upsReader) readVarint() (uint64, error) {
	b, err := u.ReadByte()
	if err != nil {
		return 0, err
	}

	value := uint64(b & 0x7f)
	for index := 1; b&0x80 == 0; index++ {
		// a continuation byte at shift 63 cannot fit
		if 7*index > 56 {
			return 0, errUpsVarintOverflow
		}
		b, err = u.ReadByte()
		if err != nil {
			return 0, err
		}
		value += (uint64(b&0x7f) + 1) << (7 * index)
	}

	return value, nil
}

// readXorStream reads bytes up to and including the terminating zero byte.
// The terminator is not part of the returned data.
func (u *upsReader) readXorStream() ([]byte, error) {
	data, err := u.r.ReadBytes(0)
	u.pos += int64(len(data))
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return data[:len(data)-1], nil
}

// readHeader checks the magic and returns the declared source and target sizes
func (u *upsReader) readHeader() (uint64, uint64, error) {
	magic := make([]byte, len(upsHeader))
	if _, err := io.ReadFull(u.r, magic); err != nil {
		return 0, 0, newPatchErrorf(InvalidPatchFile, "failed to read header: %w", err)
	}
	u.pos += int64(len(magic))

	if string(magic) != upsHeader {
		return 0, 0, newPatchErrorf(InvalidPatchFile, "missing %q header", upsHeader)
	}

	sourceSize, err := u.readVarint()
	if err != nil {
		return 0, 0, newPatchErrorf(InvalidPatchFile, "failed to read source size: %w", err)
	}
	targetSize, err := u.readVarint()
	if err != nil {
		return 0, 0, newPatchErrorf(InvalidPatchFile, "failed to read target size: %w", err)
	}

	return sourceSize, targetSize, nil
}

// upsPatchFile is an open UPS patch with its record area and trailer located.
// The stream owns the underlying file.
type upsPatchFile struct {
	stream   *ChunkStream
	dataSize int64
}

func openUpsPatchFile(path string) (*upsPatchFile, error) {
	size, err := fileSize(path)
	if err != nil {
		return nil, newPatchError(IO, err)
	}

	if size-upsCrcChecksLength <= 0 {
		return nil, newPatchErrorf(InvalidPatchFile, "patch is too small (%d bytes)", size)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, newPatchError(IO, err)
	}

	stream, err := NewChunkStream(file, 0, size, true)
	if err != nil {
		file.Close()
		return nil, newPatchError(IO, err)
	}

	return &upsPatchFile{stream: stream, dataSize: stream.Length() - upsCrcChecksLength}, nil
}

func (p *upsPatchFile) Close() error {
	return p.stream.Close()
}

// records returns a reader over the header and records, excluding the trailer
func (p *upsPatchFile) records() (*upsReader, error) {
	if _, err := p.stream.Seek(0, io.SeekStart); err != nil {
		return nil, newPatchError(IO, err)
	}
	return newUpsReader(io.LimitReader(p.stream, p.dataSize)), nil
}

// trailer reads the CRC fields. A reader returned by records must not be used
// afterwards.
func (p *upsPatchFile) trailer() (upsTrailer, error) {
	if _, err := p.stream.Seek(-upsCrcChecksLength, io.SeekEnd); err != nil {
		return upsTrailer{}, newPatchError(IO, err)
	}

	crcs := make([]byte, upsCrcChecksLength)
	if _, err := io.ReadFull(p.stream, crcs); err != nil {
		return upsTrailer{}, newPatchError(IO, err)
	}

	return upsTrailer{
		SourceCrc: binary.LittleEndian.Uint32(crcs[0:4]),
		TargetCrc: binary.LittleEndian.Uint32(crcs[4:8]),
		PatchCrc:  binary.LittleEndian.Uint32(crcs[8:12]),
	}, nil
}

// upsHandler implements formatHandler for UPS patches
type upsHandler struct{}

func (upsHandler) patchFormat() PatchFormat {
	return UPS
}

func (upsHandler) validate(session *patchSession) error {
	patch, err := openUpsPatchFile(session.patchPath)
	if err != nil {
		return err
	}
	defer patch.Close()

	reader, err := patch.records()
	if err != nil {
		return err
	}
	sourceSize, _, err := reader.readHeader()
	if err != nil {
		return err
	}

	actualSize, err := fileSize(session.sourcePath)
	if err != nil {
		return newPatchError(IO, err)
	}
	if uint64(actualSize) != sourceSize {
		PushLogWarning(nil, fmt.Sprintf("[Method: UPS] %s is %d bytes but the patch expects %d", session.sourcePath, actualSize, sourceSize))
	}

	// the patch CRC field is read but never verified against the patch
	if session.job.SkipChecksumValidation {
		return nil
	}

	trailer, err := patch.trailer()
	if err != nil {
		return err
	}

	sourceCrc, err := Crc32OfFile(session.sourcePath)
	if err != nil {
		return newPatchError(IO, err)
	}
	if sourceCrc != trailer.SourceCrc {
		return newPatchErrorf(SourceFileChecksumNotMatch, "source crc32 is %08x, patch expects %08x", sourceCrc, trailer.SourceCrc)
	}

	return nil
}

func (upsHandler) apply(session *patchSession) error {
	patch, err := openUpsPatchFile(session.patchPath)
	if err != nil {
		return err
	}
	defer patch.Close()

	reader, err := patch.records()
	if err != nil {
		return err
	}
	sourceSize, targetSize, err := reader.readHeader()
	if err != nil {
		return err
	}
	if targetSize > math.MaxInt64 {
		return newPatchErrorf(InvalidPatchFile, "target size %d is too large", targetSize)
	}

	working := session.workingFile

	// records span at most the larger of the two declared images
	limit := targetSize
	if sourceSize > limit {
		limit = sourceSize
	}

	// zero extend or truncate to the target size before any record is applied
	if err := working.Truncate(int64(targetSize)); err != nil {
		return newPatchError(IO, err)
	}
	PushLogDebug(nil, fmt.Sprintf("[Method: UPS] Resized working copy from 0x%x to 0x%x bytes", sourceSize, targetSize))

	var offset uint64
	for reader.pos < patch.dataSize {
		delta, err := reader.readVarint()
		if err != nil {
			return newPatchErrorf(InvalidPatchFile, "failed to read record offset at 0x%x: %w", reader.pos, err)
		}
		if offset > limit || delta > limit-offset {
			return newPatchErrorf(InvalidPatchFile, "record offset 0x%x+0x%x exceeds 0x%x bytes", offset, delta, limit)
		}
		offset += delta

		xorData, err := reader.readXorStream()
		if err != nil {
			return newPatchErrorf(InvalidPatchFile, "unterminated record at 0x%x: %w", offset, err)
		}
		if uint64(len(xorData)) > limit-offset {
			return newPatchErrorf(InvalidPatchFile, "record at 0x%x with 0x%x bytes exceeds 0x%x bytes", offset, len(xorData), limit)
		}

		// bytes past the target size are dropped, the working file never grows
		if offset < targetSize {
			n := uint64(len(xorData))
			if n > targetSize-offset {
				n = targetSize - offset
			}
			if err := xorIntoFile(working, int64(offset), xorData[:n]); err != nil {
				return newPatchError(IO, err)
			}
		}

		// the terminator also advances the offset
		offset += uint64(len(xorData))
		if offset == math.MaxUint64 {
			return newPatchErrorf(InvalidPatchFile, "record offset overflows")
		}
		offset++
	}

	if session.job.SkipChecksumValidation {
		return nil
	}

	trailer, err := patch.trailer()
	if err != nil {
		return err
	}

	h := crc32.NewIEEE()
	if _, err := io.Copy(h, io.NewSectionReader(working, 0, int64(targetSize))); err != nil {
		return newPatchError(IO, err)
	}
	if h.Sum32() != trailer.TargetCrc {
		return newPatchErrorf(InvalidPatchFile, "patched crc32 is %08x, patch expects %08x", h.Sum32(), trailer.TargetCrc)
	}

	return nil
}

// xorIntoFile XORs data into the file at offset
func xorIntoFile(file *os.File, offset int64, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	current := make([]byte, len(data))
	if _, err := file.ReadAt(current, offset); err != nil && err != io.EOF {
		return err
	}

	for i := range current {
		current[i] ^= data[i]
	}

	_, err := file.WriteAt(current, offset)
	return err
}
