package internal

import (
	"errors"
	"fmt"
	"io"
)

// ChunkStream provides a read-only view over a portion of an underlying
// stream. Reading stops with io.EOF at the end of the portion even when the
// underlying stream has more data.
type ChunkStream struct {
	stream      io.ReadSeeker
	start       int64
	end         int64
	curPos      int64
	isDisposing bool
}

// NewChunkStream creates a new ChunkStream over [start, end) of the underlying stream
func NewChunkStream(stream io.ReadSeeker, start, end int64, isDisposing bool) (*ChunkStream, error) {
	// Get the stream length
	streamLen, err := stream.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream length: %w", err)
	}

	if streamLen == 0 {
		return nil, errors.New("the stream must not have 0 bytes")
	}

	if start < 0 || start > end || end > streamLen {
		return nil, fmt.Errorf("argument out of range: start=%d, end=%d, stream length=%d", start, end, streamLen)
	}

	// Set position to start
	_, err = stream.Seek(start, io.SeekStart)
	if err != nil {
		return nil, fmt.Errorf("failed to seek to start position: %w", err)
	}

	return &ChunkStream{
		stream:      stream,
		start:       start,
		end:         end,
		curPos:      0,
		isDisposing: isDisposing,
	}, nil
}

// size returns the size of the chunk
func (cs *ChunkStream) size() int64 {
	return cs.end - cs.start
}

// remain returns the remaining bytes in the chunk
func (cs *ChunkStream) remain() int64 {
	return cs.size() - cs.curPos
}

// Read reads up to len(p) bytes into p from the chunk
func (cs *ChunkStream) Read(p []byte) (n int, err error) {
	if cs.remain() == 0 {
		return 0, io.EOF
	}

	toRead := int64(len(p))
	if toRead > cs.remain() {
		toRead = cs.remain()
	}

	// Set position in the underlying stream
	_, err = cs.stream.Seek(cs.start+cs.curPos, io.SeekStart)
	if err != nil {
		return 0, fmt.Errorf("failed to seek: %w", err)
	}

	read, err := cs.stream.Read(p[:toRead])
	cs.curPos += int64(read)

	// the portion is known to exist so running out early is an error
	if err == io.EOF && cs.remain() > 0 {
		err = io.ErrUnexpectedEOF
	}

	return read, err
}

// Seek sets the position for the next Read on the chunk
func (cs *ChunkStream) Seek(offset int64, whence int) (int64, error) {
	var newPos int64

	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = cs.curPos + offset
	case io.SeekEnd:
		newPos = cs.size() + offset
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}

	if newPos < 0 || newPos > cs.size() {
		return 0, fmt.Errorf("seek position out of range: %d (chunk size %d)", newPos, cs.size())
	}

	cs.curPos = newPos
	return newPos, nil
}

// Close closes the ChunkStream and optionally the underlying stream
func (cs *ChunkStream) Close() error {
	if cs.isDisposing {
		if closer, ok := cs.stream.(io.Closer); ok {
			return closer.Close()
		}
	}
	return nil
}

// Length returns the length of the chunk
func (cs *ChunkStream) Length() int64 {
	return cs.size()
}
