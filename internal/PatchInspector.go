package internal

import (
	"fmt"
	"os"
	"path/filepath"
)

// PatchSummary describes a patch without applying it
type PatchSummary struct {
	Path   string
	Format PatchFormat
	Size   int64

	// IPS only
	LiteralRecords int
	RleRecords     int
	HighestOffset  int
	TruncateLength int
	HasTruncate    bool

	// UPS only
	SourceSize uint64
	TargetSize uint64
	Records    int
	SourceCrc  uint32
	PatchCrc   uint32
	TargetCrc  uint32
}

// InspectPatch decodes every record of a patch and returns a summary. The
// format is taken from the file extension; compressed patches are
// decompressed to a temporary file first.
func InspectPatch(patchPath string, tempDir string) (*PatchSummary, error) {
	format, err := PatchFormatFromPath(patchPath)
	if err != nil {
		return nil, newPatchError(InvalidPatchFile, err)
	}

	path := patchPath
	if IsCompressedPatch(patchPath) {
		prefix := "inspect-" + GetStagingFilenameHash("", patchPath, format)
		path, err = decompressPatch(patchPath, tempDir, prefix)
		if err != nil {
			return nil, err
		}
		defer removeTemporaryFile(nil, path)
	}

	size, err := fileSize(path)
	if err != nil {
		return nil, newPatchError(IO, err)
	}

	summary := &PatchSummary{
		Path:   filepath.Clean(patchPath),
		Format: format,
		Size:   size,
	}

	switch format {
	case IPS:
		err = inspectIps(path, summary)
	case UPS:
		err = inspectUps(path, summary)
	}
	if err != nil {
		return nil, err
	}

	PushLogDebug(nil, fmt.Sprintf("[Inspect] %s is a valid %s patch", patchPath, format))
	return summary, nil
}

func inspectIps(path string, summary *PatchSummary) error {
	if err := validateFileSize(path, minimumIpsSize, maximumIpsSize, InvalidPatchFile); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return newPatchError(IO, err)
	}

	reader, err := newIpsRecordReader(data)
	if err != nil {
		return err
	}

	for {
		record, err := reader.next()
		if err != nil {
			return newPatchError(InvalidPatchFile, err)
		}
		if record.Kind == ipsEnd {
			break
		}

		if record.Kind == ipsRle {
			summary.RleRecords++
		} else {
			summary.LiteralRecords++
		}
		if record.end() > summary.HighestOffset {
			summary.HighestOffset = record.end()
		}
	}

	summary.TruncateLength, summary.HasTruncate = reader.truncateLength()
	return nil
}

func inspectUps(path string, summary *PatchSummary) error {
	patch, err := openUpsPatchFile(path)
	if err != nil {
		return err
	}
	defer patch.Close()

	reader, err := patch.records()
	if err != nil {
		return err
	}

	summary.SourceSize, summary.TargetSize, err = reader.readHeader()
	if err != nil {
		return err
	}

	for reader.pos < patch.dataSize {
		if _, err := reader.readVarint(); err != nil {
			return newPatchErrorf(InvalidPatchFile, "failed to read record offset at 0x%x: %w", reader.pos, err)
		}
		if _, err := reader.readXorStream(); err != nil {
			return newPatchErrorf(InvalidPatchFile, "unterminated record: %w", err)
		}
		summary.Records++
	}

	trailer, err := patch.trailer()
	if err != nil {
		return err
	}
	summary.SourceCrc = trailer.SourceCrc
	summary.PatchCrc = trailer.PatchCrc
	summary.TargetCrc = trailer.TargetCrc

	return nil
}
