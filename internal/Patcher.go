package internal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Patcher applies a patch of one format to a file
type Patcher interface {
	// Patch applies job.PatchPath to job.SourcePath. The result is written to
	// job.TargetPath, or over the source when TargetPath is empty. Any
	// returned error is a *PatchError.
	Patch(job PatchJob) error
}

// PatchJob describes a single patch operation
type PatchJob struct {
	// file to patch. may be a .zip or .gz container, in which case the
	// wrapped image is patched and TargetPath must be set
	SourcePath string

	// patch file. a trailing .zst extension marks a zstd compressed payload
	PatchPath string

	// destination of the patched file. empty means patch the source in place.
	// an existing file is overwritten
	TargetPath string

	// skip all checksum checks, including the CRCs embedded in UPS patches
	SkipChecksumValidation bool

	// expected checksum of the source (SHA-1, MD5 or CRC-32 hex). empty
	// means no check. only used by IPS, UPS patches carry their own
	Checksum string

	// optional progress and completion callbacks
	WriteDelegate    DelegateWriteStreamInfo
	CompleteDelegate DelegatePatchComplete
}

// formatHandler is implemented once per patch format. validate runs before
// anything is mutated. apply mutates the session's working file, which
// starts as a copy of the source.
type formatHandler interface {
	patchFormat() PatchFormat
	validate(session *patchSession) error
	apply(session *patchSession) error
}

// filePatcher is the format agnostic part of patching: unwrapping,
// validation, working copy, write-back and cleanup
type filePatcher struct {
	handler formatHandler

	// directory for temporary files. empty means os.TempDir()
	tempDir string
}

func newFilePatcher(handler formatHandler, tempDir string) *filePatcher {
	return &filePatcher{
		handler: handler,
		tempDir: tempDir,
	}
}

// String implements the fmt.Stringer interface
func (p *filePatcher) String() string {
	return p.handler.patchFormat().String() + "Patcher"
}

// patchSession holds everything owned by one Patch call
type patchSession struct {
	job    PatchJob
	format PatchFormat

	// effective source and patch after unwrapping and decompression
	sourcePath string
	patchPath  string

	// copy of the source that the format handler mutates
	workingFile *os.File

	tempDir        string
	stagingName    string
	temporaryFiles []string
}

// createTemporaryFile creates an empty temporary file that is removed when
// the session is cleaned up
func (s *patchSession) createTemporaryFile(suffix string) (*os.File, error) {
	file, err := os.CreateTemp(s.tempDir, s.stagingName+"-*"+suffix)
	if err != nil {
		return nil, err
	}
	s.temporaryFiles = append(s.temporaryFiles, file.Name())
	return file, nil
}

func (s *patchSession) cleanup(sender interface{}) {
	if s.workingFile != nil {
		s.workingFile.Close()
		s.workingFile = nil
	}
	for _, path := range s.temporaryFiles {
		removeTemporaryFile(sender, path)
	}
	s.temporaryFiles = nil
}

// destinationPath returns the path the patched data is written to
func (s *patchSession) destinationPath() string {
	if s.job.TargetPath != "" {
		return s.job.TargetPath
	}
	return s.sourcePath
}

// Patch implements the Patcher interface
func (p *filePatcher) Patch(job PatchJob) error {
	if job.SourcePath == "" || job.PatchPath == "" {
		return newPatchErrorf(IO, "source and patch paths are required")
	}

	format := p.handler.patchFormat()
	session := &patchSession{
		job:         job,
		format:      format,
		sourcePath:  job.SourcePath,
		patchPath:   job.PatchPath,
		tempDir:     p.tempDir,
		stagingName: "patch-" + GetStagingFilenameHash(job.SourcePath, job.PatchPath, format),
	}
	defer session.cleanup(p)

	err := p.patch(session)
	if err != nil {
		PushLogDebug(p, fmt.Sprintf("[Method: %s] Patching %s with %s failed: %v", format, job.SourcePath, job.PatchPath, err))
		return asPatchError(IO, err)
	}

	destination := session.destinationPath()
	PushLogDebug(p, fmt.Sprintf("[Method: %s] Patching %s with %s to %s is completed!", format, job.SourcePath, job.PatchPath, destination))
	if job.CompleteDelegate != nil {
		job.CompleteDelegate(job, destination)
	}
	return nil
}

func (p *filePatcher) patch(session *patchSession) error {
	if err := p.resolveSource(session); err != nil {
		return err
	}

	if err := p.resolvePatch(session); err != nil {
		return err
	}

	if err := p.handler.validate(session); err != nil {
		return err
	}

	if err := p.createWorkingCopy(session); err != nil {
		return err
	}

	if err := p.handler.apply(session); err != nil {
		return err
	}

	return p.commit(session)
}

// resolveSource replaces a container source with a temporary copy of the
// image inside it
func (p *filePatcher) resolveSource(session *patchSession) error {
	if !IsContainer(session.job.SourcePath) {
		return nil
	}

	// the member of an archive cannot be written back into the archive
	if session.job.TargetPath == "" {
		return newPatchErrorf(ZipSourceFileCannotBePatchedDirectly, "%s is an archive", session.job.SourcePath)
	}

	unwrapped, err := unwrapContainer(session.job.SourcePath, session.tempDir, session.stagingName)
	if err != nil {
		return newPatchError(IO, err)
	}
	session.temporaryFiles = append(session.temporaryFiles, unwrapped)
	session.sourcePath = unwrapped

	return nil
}

// resolvePatch replaces a compressed patch with a temporary decompressed copy
func (p *filePatcher) resolvePatch(session *patchSession) error {
	if !IsCompressedPatch(session.job.PatchPath) {
		return nil
	}

	decompressed, err := decompressPatch(session.job.PatchPath, session.tempDir, session.stagingName)
	if err != nil {
		return err
	}
	session.temporaryFiles = append(session.temporaryFiles, decompressed)
	session.patchPath = decompressed

	return nil
}

func (p *filePatcher) createWorkingCopy(session *patchSession) error {
	workingFile, err := session.createTemporaryFile(".work")
	if err != nil {
		return newPatchErrorf(IO, "failed to create working copy: %w", err)
	}
	session.workingFile = workingFile

	if _, err := copyFileTo(workingFile, session.sourcePath); err != nil {
		return newPatchErrorf(IO, "failed to copy %s to working copy: %w", session.sourcePath, err)
	}

	return nil
}

// commit writes the working copy to a staging file in the destination
// directory and renames it into place so that a failure never leaves a
// partially written destination. An existing destination must be writable
// and keeps its mode.
func (p *filePatcher) commit(session *patchSession) error {
	destination := session.destinationPath()

	mode, err := destinationMode(destination)
	if err != nil {
		return err
	}

	if _, err := session.workingFile.Seek(0, io.SeekStart); err != nil {
		return newPatchError(IO, err)
	}

	stagingFile, err := os.CreateTemp(filepath.Dir(destination), "."+filepath.Base(destination)+".*.temp")
	if err != nil {
		return newPatchErrorf(TargetFileCannotWrite, "failed to create staging file for %s: %w", destination, err)
	}
	stagingPath := stagingFile.Name()

	written, err := io.Copy(stagingFile, session.workingFile)
	if err == nil {
		err = stagingFile.Chmod(mode)
	}
	closeErr := stagingFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(stagingPath)
		return newPatchErrorf(TargetFileCannotWrite, "failed to write %s: %w", stagingPath, err)
	}

	if err := os.Rename(stagingPath, destination); err != nil {
		os.Remove(stagingPath)
		return newPatchErrorf(TargetFileCannotWrite, "failed to move patched data to %s: %w", filepath.Clean(destination), err)
	}

	if session.job.WriteDelegate != nil {
		session.job.WriteDelegate(written)
	}

	return nil
}

// destinationMode returns the permission bits the patched file is written
// with. A missing destination gets 0644. An existing one must be a regular
// file that is writable both by mode and by an O_WRONLY open.
func destinationMode(destination string) (os.FileMode, error) {
	info, err := os.Stat(destination)
	if errors.Is(err, os.ErrNotExist) {
		return 0644, nil
	}
	if err != nil {
		return 0, newPatchError(TargetFileCannotWrite, err)
	}
	if !info.Mode().IsRegular() {
		return 0, newPatchErrorf(TargetFileCannotWrite, "%s is not a regular file", destination)
	}
	if info.Mode().Perm()&0200 == 0 {
		return 0, newPatchErrorf(TargetFileCannotWrite, "%s is read-only", destination)
	}

	file, err := os.OpenFile(destination, os.O_WRONLY, 0)
	if err != nil {
		return 0, newPatchError(TargetFileCannotWrite, err)
	}
	file.Close()

	return info.Mode().Perm(), nil
}
