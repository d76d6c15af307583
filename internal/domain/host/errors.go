package host

import "fmt"

// NotDetectedError reports that no device drive was found.
type NotDetectedError struct {
	// OS is the tag of the platform the search ran on.
	OS string
}

// Title returns the short headline shown to the user.
func (e *NotDetectedError) Title() string {
	return NoCPXDetectedErrorTitle
}

// Detail returns the explanation shown under Title.
func (e *NotDetectedError) Detail() string {
	return NoCPXDetectedDetail(e.OS)
}

// Error implements error.
func (e *NotDetectedError) Error() string {
	return e.Title() + ": " + e.Detail()
}

// Is makes errors.Is(err, ErrNoDevice) hold.
func (e *NotDetectedError) Is(target error) bool {
	return target == ErrNoDevice
}

// UnsupportedOSError reports a platform the bridge cannot detect devices on.
type UnsupportedOSError struct {
	// OS is the raw platform name.
	OS string
}

// Error implements error.
func (e *UnsupportedOSError) Error() string {
	return NotSupportedOSMessage(e.OS)
}

// Unwrap makes errors.Is(err, ErrUnsupportedOS) hold.
func (e *UnsupportedOSError) Unwrap() error {
	return ErrUnsupportedOS
}

// SendEventError wraps a failure to deliver an event to the simulator process.
type SendEventError struct {
	Err error
}

// Error renders ErrorSendingEvent followed by the cause.
func (e *SendEventError) Error() string {
	return ErrorSendingEvent + e.Err.Error()
}

// Unwrap returns the cause.
func (e *SendEventError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrSendingEvent) hold.
func (e *SendEventError) Is(target error) bool {
	return target == ErrSendingEvent
}

// TracebackError carries the simulator stderr of a failed execution.
type TracebackError struct {
	Err       error
	Traceback string
}

// Error renders the cause, ErrorTraceback and the captured traceback.
func (e *TracebackError) Error() string {
	return fmt.Sprintf("%v%s%s", e.Err, ErrorTraceback, e.Traceback)
}

// Unwrap returns the cause.
func (e *TracebackError) Unwrap() error {
	return e.Err
}
