package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/riverfog7/RomPatcher/internal"
)

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		name     string
		patch    string
		expected internal.PatchFormat
		ok       bool
	}{
		{"auto", "fix.ups", internal.UPS, true},
		{"", "fix.ips.zst", internal.IPS, true},
		{"ups", "fix.ips", internal.UPS, true},
		{"IPS", "fix.bin", internal.IPS, true},
		{"auto", "fix.bin", internal.IPS, false},
		{"bps", "fix.ips", internal.IPS, false},
	}

	for _, tt := range tests {
		format, err := resolveFormat(tt.name, tt.patch)
		if (err == nil) != tt.ok {
			t.Errorf("resolveFormat(%q, %q) error = %v, want ok=%v", tt.name, tt.patch, err, tt.ok)
			continue
		}
		if tt.ok && format != tt.expected {
			t.Errorf("resolveFormat(%q, %q) = %s, want %s", tt.name, tt.patch, format, tt.expected)
		}
	}
}

func TestSummaryToJSON(t *testing.T) {
	summary := &internal.PatchSummary{
		Path:       "fix.ups",
		Format:     internal.UPS,
		Size:       27,
		SourceSize: 9,
		TargetSize: 9,
		Records:    2,
		SourceCrc:  0x40efab9e,
		TargetCrc:  0xe26fd3e0,
		PatchCrc:   0x0f1b195e,
	}

	data, err := summaryToJSON(summary)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON %s: %v", data, err)
	}

	expected := map[string]interface{}{
		"path":         "fix.ups",
		"format":       "UPS",
		"size":         float64(27),
		"source_size":  float64(9),
		"target_size":  float64(9),
		"records":      float64(2),
		"source_crc32": "40efab9e",
		"target_crc32": "e26fd3e0",
		"patch_crc32":  "0f1b195e",
	}
	if diff := cmp.Diff(expected, decoded); diff != "" {
		t.Errorf("unexpected JSON (-want +got):\n%s", diff)
	}
}

func TestSummaryToJSONIpsWithoutTruncate(t *testing.T) {
	data, err := summaryToJSON(&internal.PatchSummary{
		Path:           "fix.ips",
		Format:         internal.IPS,
		Size:           24,
		LiteralRecords: 1,
		RleRecords:     1,
		HighestOffset:  8,
	})
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if _, ok := decoded["truncate_length"]; ok {
		t.Error("truncate_length should be omitted when the patch has none")
	}
	if decoded["highest_offset"] != float64(8) {
		t.Errorf("highest_offset = %v, want 8", decoded["highest_offset"])
	}
}

func TestPatchCommand(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "game.rom")
	patch := filepath.Join(dir, "fix.ips")
	target := filepath.Join(dir, "game-fixed.rom")

	if err := os.WriteFile(source, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(patch, []byte("PATCH\x00\x00\x02\x00\x03\x07\x08\x09EOF"), 0644); err != nil {
		t.Fatal(err)
	}

	if code := PatchCommand(&PatchCmd{Source: source, Patch: patch, Target: target, Format: "auto"}, t.TempDir()); code != 0 {
		t.Fatalf("PatchCommand returned %d", code)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{1, 2, 7, 8, 9, 6, 7, 8, 9}, data); diff != "" {
		t.Errorf("unexpected target (-want +got):\n%s", diff)
	}

	if code := PatchCommand(&PatchCmd{Source: source, Patch: patch, Format: "bps"}, t.TempDir()); code != 1 {
		t.Errorf("PatchCommand with an unknown format returned %d, want 1", code)
	}
}

func TestInfoCommandWritesFile(t *testing.T) {
	dir := t.TempDir()
	patch := filepath.Join(dir, "fix.ips")
	output := filepath.Join(dir, "fix.json")
	if err := os.WriteFile(patch, []byte("PATCH\x00\x00\x02\x00\x03\x07\x08\x09EOF"), 0644); err != nil {
		t.Fatal(err)
	}

	if code := InfoCommand(patch, output, t.TempDir()); code != 0 {
		t.Fatalf("InfoCommand returned %d", code)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["literal_records"] != float64(1) || decoded["format"] != "IPS" {
		t.Errorf("unexpected summary %v", decoded)
	}
}

func TestSummarizeSizeSimple(t *testing.T) {
	tests := []struct {
		value    float64
		expected string
	}{
		{0, "0 B"},
		{9, "9.00 B"},
		{2048, "2.00 KB"},
		{16 << 20, "16.00 MB"},
	}

	for _, tt := range tests {
		if got := summarizeSizeSimple(tt.value); got != tt.expected {
			t.Errorf("summarizeSizeSimple(%v) = %q, want %q", tt.value, got, tt.expected)
		}
	}
	if got := summarizeSizeSimple(1536, 1); got != "1.5 KB" {
		t.Errorf("summarizeSizeSimple(1536, 1) = %q", got)
	}
}
