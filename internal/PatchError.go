package internal

import (
	"errors"
	"fmt"
)

// PatchIssue lists every way a patch operation can fail
type PatchIssue int

const (
	InvalidPatchFile PatchIssue = iota
	FileToPatchNotPatchable
	TargetFileCannotWrite
	IO
	SourceFileChecksumNotMatch
	ZipSourceFileCannotBePatchedDirectly
)

var patchIssueNames = map[PatchIssue]string{
	InvalidPatchFile:                     "invalid patch file",
	FileToPatchNotPatchable:              "file to patch is not patchable",
	TargetFileCannotWrite:                "target file cannot be written",
	IO:                                   "i/o error",
	SourceFileChecksumNotMatch:           "source file checksum does not match",
	ZipSourceFileCannotBePatchedDirectly: "zip source file cannot be patched directly",
}

// String returns a human readable description of the issue
func (i PatchIssue) String() string {
	if name, ok := patchIssueNames[i]; ok {
		return name
	}
	return fmt.Sprintf("patch issue(%d)", int(i))
}

// PatchError is the only error type returned by Patcher.Patch. Err holds the
// underlying cause when there is one.
type PatchError struct {
	Issue PatchIssue
	Err   error
}

// Sentinel values for use with errors.Is. Two PatchErrors are equal under
// errors.Is when their issues are the same.
var (
	ErrInvalidPatchFile                     = &PatchError{Issue: InvalidPatchFile}
	ErrFileToPatchNotPatchable              = &PatchError{Issue: FileToPatchNotPatchable}
	ErrTargetFileCannotWrite                = &PatchError{Issue: TargetFileCannotWrite}
	ErrIO                                   = &PatchError{Issue: IO}
	ErrSourceFileChecksumNotMatch           = &PatchError{Issue: SourceFileChecksumNotMatch}
	ErrZipSourceFileCannotBePatchedDirectly = &PatchError{Issue: ZipSourceFileCannotBePatchedDirectly}
)

func newPatchError(issue PatchIssue, err error) *PatchError {
	return &PatchError{Issue: issue, Err: err}
}

func newPatchErrorf(issue PatchIssue, format string, args ...interface{}) *PatchError {
	return &PatchError{Issue: issue, Err: fmt.Errorf(format, args...)}
}

// Error implements the error interface
func (e *PatchError) Error() string {
	if e.Err == nil {
		return e.Issue.String()
	}
	return fmt.Sprintf("%s: %v", e.Issue, e.Err)
}

// Unwrap returns the underlying cause
func (e *PatchError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a PatchError with the same issue
func (e *PatchError) Is(target error) bool {
	t, ok := target.(*PatchError)
	if !ok {
		return false
	}
	return t.Issue == e.Issue
}

// IssueOf extracts the PatchIssue from an error chain
func IssueOf(err error) (PatchIssue, bool) {
	var pe *PatchError
	if errors.As(err, &pe) {
		return pe.Issue, true
	}
	return 0, false
}

// asPatchError keeps an existing PatchError untouched and classifies anything
// else under the given issue
func asPatchError(issue PatchIssue, err error) error {
	if err == nil {
		return nil
	}
	var pe *PatchError
	if errors.As(err, &pe) {
		return pe
	}
	return newPatchError(issue, err)
}
