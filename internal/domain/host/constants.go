package host

import (
	"errors"
	"fmt"
)

// Field and command names exchanged with clients.
const (
	ActiveDeviceField = "active_device"
	EnableTelemetry   = "enable_telemetry"
	StateField        = "state"

	ExecCommand  = "exec"
	MountCommand = "mount"
)

const (
	// CPXDriveName is the volume label of a Circuit Playground Express in mass storage mode.
	CPXDriveName = "CIRCUITPY"

	// LibraryName is the Python package user code imports to drive the board.
	LibraryName = "adafruit_circuitplayground"

	// PythonLibsDir holds the simulator copy of LibraryName and its dependencies.
	PythonLibsDir = "python_libs"

	// UTFFormat is the encoding of every byte stream exchanged with the simulator.
	UTFFormat = "utf-8"

	// DefaultPort is the local port the bridge listens on.
	DefaultPort = "5577"

	// CPX and Microbit are the supported values of ActiveDeviceField.
	CPX      = "CPX"
	Microbit = "micro:bit"
)

// OS tags reported by the host platform.
const (
	MacOS     = "darwin"
	LinuxOS   = "linux"
	WindowsOS = "win32"
)

// Messages. NoCPXDetectedErrorDetail and NotSupportedOS take exactly one
// argument, the detected OS tag.
const (
	DeviceNotImplementedError = "Device not implemented."

	ErrorSendingEvent = "Error trying to send event to the process : "
	ErrorTraceback    = "\n\tTraceback of code execution : \n"
	ErrorNoFile       = "Error : No file was passed to the process to execute.\n"

	NoCPXDetectedErrorTitle  = "No Circuit Playground Express detected"
	NoCPXDetectedErrorDetail = "Could not find drive with name 'CIRCUITPYTHON'. Detected OS: %s"

	NotSupportedOS      = `The OS "%s" not supported.`
	NotImplementedError = "This method is not implemented by the simulator"
)

var (
	// ErrDeviceNotImplemented is returned for an active device the bridge cannot drive.
	ErrDeviceNotImplemented = errors.New(DeviceNotImplementedError)
	// ErrNoFile is returned when execution or deployment is requested without a file.
	ErrNoFile = errors.New(ErrorNoFile)
	// ErrNoDevice is matched by every device-not-detected error.
	ErrNoDevice = errors.New(NoCPXDetectedErrorTitle)
	// ErrUnsupportedOS is matched by every unsupported OS error.
	ErrUnsupportedOS = errors.New("unsupported operating system")
	// ErrNotImplemented is returned for commands the simulator does not provide.
	ErrNotImplemented = errors.New(NotImplementedError)
	// ErrSendingEvent is matched by every failure to relay an event to the simulator.
	ErrSendingEvent = errors.New("send event")
)

// NoCPXDetectedDetail fills NoCPXDetectedErrorDetail with the OS tag.
func NoCPXDetectedDetail(osTag string) string {
	return fmt.Sprintf(NoCPXDetectedErrorDetail, osTag)
}

// NotSupportedOSMessage fills NotSupportedOS with the OS tag.
func NotSupportedOSMessage(osTag string) string {
	return fmt.Sprintf(NotSupportedOS, osTag)
}

// SupportedDevice reports whether device is a known value of ActiveDeviceField.
func SupportedDevice(device string) bool {
	return device == CPX || device == Microbit
}
