package board

import (
	"errors"
	"time"
)

// User-facing error messages raised by the simulated board API.
const (
	AssignPixelTypeError = "The pixel color value type should be tuple, list or hexadecimal."

	BrightnessRangeError = "The brightness value should be a number between 0 and 1."

	IndexError = "The index is not a valid number, you can access the Neopixels from 0 to 9."

	NotImplementedError = "This method is not implemented by the simulator"

	NotSuitableFileError = "Your .wav file is not suitable for the Circuit Playground Express."

	PixelRangeError = "The pixel hexadicimal color value should be in range #000000 and #FFFFFF."

	ValidPixelAssignError = "The pixel color value should be a tuple with three values between 0 and 255 " +
		"or a hexadecimal color between 0x000000 and 0xFFFFFF."

	// ErrorSendingEvent is a prefix; the failure detail is appended to it.
	ErrorSendingEvent = "Error trying to send event to the process : "
)

const (
	// CPX is the device key of the Circuit Playground Express.
	CPX = "CPX"

	// DefaultPort is the local port the bridge listens on. Kept as a string on purpose,
	// downstream code joins it into addresses without parsing.
	DefaultPort = "5577"

	// TimeDelay is the simulator tick between two state reports.
	TimeDelay = 30 * time.Millisecond

	// PixelCount is the number of NeoPixels on the board.
	PixelCount = 10
)

var (
	// ErrAssignPixelType is returned when a pixel is assigned a value of an unsupported type.
	ErrAssignPixelType = errors.New(AssignPixelTypeError)
	// ErrBrightnessRange is returned for a brightness outside [0, 1].
	ErrBrightnessRange = errors.New(BrightnessRangeError)
	// ErrIndex is returned for a pixel index outside the strip.
	ErrIndex = errors.New(IndexError)
	// ErrNotImplemented is returned for board methods the simulator does not provide.
	ErrNotImplemented = errors.New(NotImplementedError)
	// ErrNotSuitableFile is returned for a .wav file the board cannot play.
	ErrNotSuitableFile = errors.New(NotSuitableFileError)
	// ErrPixelRange is returned for a hexadecimal color above 0xFFFFFF.
	ErrPixelRange = errors.New(PixelRangeError)
	// ErrValidPixelAssign is returned for a malformed color tuple.
	ErrValidPixelAssign = errors.New(ValidPixelAssignError)
)
