package board

import (
	"fmt"
	"math"
	"time"
)

// State field names reported by the simulator.
const (
	FieldPixels     = "pixels"
	FieldBrightness = "brightness"
	FieldRedLED     = "red_led"
)

// DefaultBrightness matches the board library's power-on brightness.
const DefaultBrightness = 1.0

// State is a snapshot of the board outputs driven by user code.
type State struct {
	// Pixels holds the NeoPixel colors from index 0 to 9.
	Pixels [PixelCount]Color
	// Brightness scales every pixel, between 0 and 1.
	Brightness float64
	// RedLED is the small LED next to the USB port.
	RedLED bool
}

// NewState returns the power-on board state.
func NewState() *State {
	return &State{
		Brightness: DefaultBrightness,
	}
}

// Clone returns a copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}

	cloned := *s

	return &cloned
}

// ValidatePixelIndex normalizes index into 0..9. Negative indexes count
// from the end of the strip, down to -10.
func ValidatePixelIndex(index int) (int, error) {
	if index < 0 {
		index += PixelCount
	}

	if index < 0 || index >= PixelCount {
		return 0, ErrIndex
	}

	return index, nil
}

// ValidateBrightness checks that value is within [0, 1].
func ValidateBrightness(value float64) error {
	if math.IsNaN(value) || value < 0 || value > 1 {
		return ErrBrightnessRange
	}

	return nil
}

// SetPixel assigns a color to the pixel at index.
func (s *State) SetPixel(index int, value any) error {
	i, err := ValidatePixelIndex(index)
	if err != nil {
		return err
	}

	c, err := ParseColor(value)
	if err != nil {
		return err
	}

	s.Pixels[i] = c

	return nil
}

// Fill assigns one color to every pixel.
func (s *State) Fill(value any) error {
	c, err := ParseColor(value)
	if err != nil {
		return err
	}

	for i := range s.Pixels {
		s.Pixels[i] = c
	}

	return nil
}

// SetBrightness validates and stores the strip brightness.
func (s *State) SetBrightness(value float64) error {
	if err := ValidateBrightness(value); err != nil {
		return err
	}

	s.Brightness = value

	return nil
}

// ApplyUpdate validates a partial state report and applies it. Unknown
// fields are ignored. Nothing is applied when any field is invalid.
func (s *State) ApplyUpdate(update map[string]any) error {
	next := s.Clone()

	if raw, ok := update[FieldPixels]; ok {
		pixels, ok := raw.([]any)
		if !ok || len(pixels) > PixelCount {
			return fmt.Errorf("%s: %w", FieldPixels, ErrIndex)
		}

		for i, value := range pixels {
			if err := next.SetPixel(i, value); err != nil {
				return fmt.Errorf("%s[%d]: %w", FieldPixels, i, err)
			}
		}
	}

	if raw, ok := update[FieldBrightness]; ok {
		value, ok := raw.(float64)
		if !ok {
			return fmt.Errorf("%s: %w", FieldBrightness, ErrBrightnessRange)
		}

		if err := next.SetBrightness(value); err != nil {
			return fmt.Errorf("%s: %w", FieldBrightness, err)
		}
	}

	if raw, ok := update[FieldRedLED]; ok {
		if value, ok := raw.(bool); ok {
			next.RedLED = value
		}
	}

	*s = *next

	return nil
}

// Map renders the state with JSON-friendly values, pixels as [r, g, b] lists.
func (s *State) Map() map[string]any {
	pixels := make([]any, len(s.Pixels))

	for i, c := range s.Pixels {
		r, g, b := c.Components()
		pixels[i] = []any{int(r), int(g), int(b)}
	}

	return map[string]any{
		FieldPixels:     pixels,
		FieldBrightness: s.Brightness,
		FieldRedLED:     s.RedLED,
	}
}

// Snapshot pairs a board state with the device it was produced for.
type Snapshot struct {
	// Device is the active device key, CPX or micro:bit.
	Device string
	// State is the last reported board state.
	State *State
	// Timestamp is when State was reported.
	Timestamp time.Time
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	return &Snapshot{
		Device:    s.Device,
		State:     s.State.Clone(),
		Timestamp: s.Timestamp,
	}
}
