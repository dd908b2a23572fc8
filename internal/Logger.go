package internal

import "fmt"

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	Info LogLevel = iota
	Warning
	Error
	Debug
)

// String returns the lowercase name of the level
func (l LogLevel) String() string {
	switch l {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Debug:
		return "debug"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// LogStruct represents a log entry with a level and message
type LogStruct struct {
	LogLevel LogLevel
	Message  string
}

// LogHandlerFunc defines the function signature for log handlers
type LogHandlerFunc func(sender interface{}, log LogStruct)

// LogHandler is the global event handler for logs. It is expected to be set
// once before any patch is applied.
var LogHandler LogHandlerFunc

func pushLog(sender interface{}, level LogLevel, message string) {
	if LogHandler != nil {
		LogHandler(sender, LogStruct{
			LogLevel: level,
			Message:  message,
		})
	}
}

// PushLogDebug sends a debug log message
func PushLogDebug(sender interface{}, message string) {
	pushLog(sender, Debug, message)
}

// PushLogInfo sends an info log message
func PushLogInfo(sender interface{}, message string) {
	pushLog(sender, Info, message)
}

// PushLogWarning sends a warning log message
func PushLogWarning(sender interface{}, message string) {
	pushLog(sender, Warning, message)
}

// PushLogError sends an error log message
func PushLogError(sender interface{}, message string) {
	pushLog(sender, Error, message)
}

// SenderName returns a short name for a log sender, used by handlers that
// want to tag entries with their origin
func SenderName(sender interface{}) string {
	switch s := sender.(type) {
	case nil:
		return ""
	case fmt.Stringer:
		return s.String()
	case string:
		return s
	}
	return fmt.Sprintf("%T", sender)
}
