package main

import (
	"fmt"
	"os"

	"github.com/alexflint/go-arg"
)

// Define command structs
type PatchCmd struct {
	Source       string `arg:"positional,required" help:"File to patch (.zip and .gz archives are unwrapped)"`
	Patch        string `arg:"positional,required" help:"IPS or UPS patch file, optionally zstd compressed (.zst)"`
	Target       string `arg:"positional" help:"Output file. If omitted the source file is patched in place"`
	Format       string `arg:"-f,--format" default:"auto" help:"Patch format: ips, ups or auto (from the patch extension)"`
	Checksum     string `arg:"--checksum" help:"Expected SHA-1, MD5 or CRC-32 of the source file (IPS only)"`
	SkipChecksum bool   `arg:"--skip-checksum,env:ROMPATCHER_SKIP_CHECKSUM" help:"Do not verify any checksum"`
}

type InfoCmd struct {
	Patch      string `arg:"positional,required" help:"IPS or UPS patch file"`
	OutputPath string `arg:"positional" help:"Path to output JSON file or - for stdout (default)"`
}

type ChecksumCmd struct {
	File string `arg:"positional,required" help:"File to hash"`
}

// Root command struct
type Args struct {
	Patch    *PatchCmd    `arg:"subcommand:patch" help:"Apply an IPS or UPS patch"`
	Info     *InfoCmd     `arg:"subcommand:info" help:"Decode a patch and output a JSON summary"`
	Checksum *ChecksumCmd `arg:"subcommand:checksum" help:"Print the SHA-1, MD5, CRC-32 and XXH64 of a file"`

	Verbose bool   `arg:"-v,--verbose,env:ROMPATCHER_VERBOSE" help:"Log debug messages"`
	LogJSON bool   `arg:"--log-json,env:ROMPATCHER_LOG_JSON" help:"Log as JSON lines"`
	TempDir string `arg:"--temp-dir,env:ROMPATCHER_TEMP_DIR" help:"Directory for temporary files"`
}

// Description is shown at the top of the help text
func (Args) Description() string {
	return "rompatcher applies IPS and UPS patches to ROM and disk images\n"
}

func main() {
	var args Args
	arg.MustParse(&args)

	logger := newLogger(args.Verbose, args.LogJSON)
	installLogHandler(logger)

	code := run(&args)

	logger.Sync()
	os.Exit(code)
}

func run(args *Args) int {
	switch {
	case args.Patch != nil:
		return PatchCommand(args.Patch, args.TempDir)

	case args.Info != nil:
		return InfoCommand(args.Info.Patch, args.Info.OutputPath, args.TempDir)

	case args.Checksum != nil:
		return ChecksumCommand(args.Checksum.File)

	default:
		fmt.Println("No command specified")
		return 1
	}
}
