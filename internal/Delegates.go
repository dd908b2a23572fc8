package internal

// DelegateWriteStreamInfo is a callback function type to report the number of bytes written per cycle to disk
type DelegateWriteStreamInfo func(writeBytes int64)

// DelegatePatchComplete is a callback function type to report the destination
// of a successfully applied patch
type DelegatePatchComplete func(job PatchJob, destinationPath string)
