package internal

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PatchFormat represents the supported binary patch formats
type PatchFormat int

const (
	IPS PatchFormat = iota
	UPS
)

// String returns the conventional upper case name of the format
func (f PatchFormat) String() string {
	switch f {
	case IPS:
		return "IPS"
	case UPS:
		return "UPS"
	}
	return fmt.Sprintf("PatchFormat(%d)", int(f))
}

// Extension returns the file extension used by patches of this format
func (f PatchFormat) Extension() string {
	return "." + strings.ToLower(f.String())
}

// ParsePatchFormat converts a format name (case insensitive) to a PatchFormat
func ParsePatchFormat(name string) (PatchFormat, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "IPS":
		return IPS, nil
	case "UPS":
		return UPS, nil
	}
	return IPS, fmt.Errorf("unsupported patch format: %q", name)
}

// PatchFormatFromPath guesses the patch format from the file name. A trailing
// compression extension (see CompressedPatchExtension) is ignored.
func PatchFormatFromPath(path string) (PatchFormat, error) {
	name := strings.ToLower(filepath.Base(path))
	name = strings.TrimSuffix(name, CompressedPatchExtension)

	switch filepath.Ext(name) {
	case IPS.Extension():
		return IPS, nil
	case UPS.Extension():
		return UPS, nil
	}
	return IPS, fmt.Errorf("cannot determine patch format of %s", path)
}
