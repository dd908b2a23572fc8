package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/riverfog7/RomPatcher/internal"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var sizeSuffixes = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}

// resolveFormat returns the patch format named by the --format flag, falling
// back to the patch file extension for "auto"
func resolveFormat(name string, patchPath string) (internal.PatchFormat, error) {
	if name == "" || strings.EqualFold(name, "auto") {
		return internal.PatchFormatFromPath(patchPath)
	}
	return internal.ParsePatchFormat(name)
}

func PatchCommand(cmd *PatchCmd, tempDir string) int {
	format, err := resolveFormat(cmd.Format, cmd.Patch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	var written int64
	job := internal.PatchJob{
		SourcePath:             cmd.Source,
		PatchPath:              cmd.Patch,
		TargetPath:             cmd.Target,
		SkipChecksumValidation: cmd.SkipChecksum,
		Checksum:               cmd.Checksum,
		WriteDelegate: func(writeBytes int64) {
			written += writeBytes
		},
		CompleteDelegate: func(job internal.PatchJob, destinationPath string) {
			fmt.Printf("Patched: %s (%s)\n", destinationPath, summarizeSizeSimple(float64(written)))
		},
	}

	provider := internal.NewPatcherProvider(tempDir)
	if err := provider.Get(format).Patch(job); err != nil {
		fmt.Fprintf(os.Stderr, "Error applying %s patch: %v\n", format, err)
		return 1
	}

	return 0
}

func InfoCommand(patchPath string, outputPath string, tempDir string) int {
	summary, err := internal.InspectPatch(patchPath, tempDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading patch: %v\n", err)
		return 1
	}

	data, err := summaryToJSON(summary)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding summary: %v\n", err)
		return 1
	}

	if outputPath == "" || outputPath == "-" {
		fmt.Println(string(data))
		return 0
	}

	if err := os.WriteFile(outputPath, append(data, '\n'), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", outputPath, err)
		return 1
	}
	return 0
}

// summaryToJSON renders a patch summary as indented JSON. Only the fields
// that apply to the patch format are included.
func summaryToJSON(summary *internal.PatchSummary) ([]byte, error) {
	fields := map[string]interface{}{
		"path":   summary.Path,
		"format": summary.Format.String(),
		"size":   summary.Size,
	}

	switch summary.Format {
	case internal.IPS:
		fields["literal_records"] = summary.LiteralRecords
		fields["rle_records"] = summary.RleRecords
		fields["highest_offset"] = summary.HighestOffset
		if summary.HasTruncate {
			fields["truncate_length"] = summary.TruncateLength
		}
	case internal.UPS:
		fields["source_size"] = summary.SourceSize
		fields["target_size"] = summary.TargetSize
		fields["records"] = summary.Records
		fields["source_crc32"] = fmt.Sprintf("%08x", summary.SourceCrc)
		fields["patch_crc32"] = fmt.Sprintf("%08x", summary.PatchCrc)
		fields["target_crc32"] = fmt.Sprintf("%08x", summary.TargetCrc)
	}

	message, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}

	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(message)
}

func ChecksumCommand(path string) int {
	for _, algorithm := range []internal.ChecksumAlgorithm{internal.Sha1, internal.Md5, internal.Crc32, internal.Xxh64} {
		sum, err := internal.ChecksumOfFile(algorithm, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error hashing %s: %v\n", path, err)
			return 1
		}
		fmt.Printf("%-6s %s\n", algorithm, sum)
	}
	return 0
}

func summarizeSizeSimple(value float64, decimalPlaces ...int) string {
	if value == 0 {
		return "0 B"
	}

	dp := 2
	if len(decimalPlaces) > 0 {
		dp = decimalPlaces[0]
	}

	// Calculate magnitude
	mag := 0
	for value >= 1024 && mag < len(sizeSuffixes)-1 {
		value /= 1024
		mag++
	}

	// Format with specified decimal places
	return fmt.Sprintf("%."+strconv.Itoa(dp)+"f %s", value, sizeSuffixes[mag])
}
