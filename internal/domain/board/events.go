package board

import "slices"

// Event names a kind of input or sensor change reported by the board or the simulator.
type Event string

// Recognized input events.
const (
	EventButtonA     Event = "button_a"
	EventButtonB     Event = "button_b"
	EventSwitch      Event = "switch"
	EventTemperature Event = "temperature"
	EventLight       Event = "light"
	EventMotionX     Event = "motion_x"
	EventMotionY     Event = "motion_y"
	EventMotionZ     Event = "motion_z"
	EventShake       Event = "shake"
	EventTouch       Event = "touch"
)

//nolint:gochecknoglobals // Read-only tables, only exposed through copying accessors.
var (
	buttonPressEvents   = []Event{EventButtonA, EventButtonB, EventSwitch}
	sensorChangedEvents = []Event{EventTemperature, EventLight, EventMotionX, EventMotionY, EventMotionZ}
	allExpectedEvents   = []Event{
		EventButtonA,
		EventButtonB,
		EventSwitch,
		EventTemperature,
		EventLight,
		EventShake,
		EventMotionX,
		EventMotionY,
		EventMotionZ,
		EventTouch,
	}
)

// ButtonPressEvents returns the events produced by pressing a button or flipping the switch.
func ButtonPressEvents() []Event {
	return slices.Clone(buttonPressEvents)
}

// SensorChangedEvents returns the events produced by a sensor reading change.
func SensorChangedEvents() []Event {
	return slices.Clone(sensorChangedEvents)
}

// AllExpectedInputEvents returns every event the bridge accepts from a client.
func AllExpectedInputEvents() []Event {
	return slices.Clone(allExpectedEvents)
}

// ParseEvent converts a raw name into an Event and reports whether it is expected.
func ParseEvent(name string) (Event, bool) {
	e := Event(name)

	return e, e.IsExpected()
}

// IsExpected reports whether e is one of the recognized input events.
func (e Event) IsExpected() bool {
	return slices.Contains(allExpectedEvents, e)
}

// IsButtonPress reports whether e is a button or switch event.
func (e Event) IsButtonPress() bool {
	return slices.Contains(buttonPressEvents, e)
}

// IsSensorChanged reports whether e is a sensor reading event.
func (e Event) IsSensorChanged() bool {
	return slices.Contains(sensorChangedEvents, e)
}

// String implements fmt.Stringer.
func (e Event) String() string {
	return string(e)
}
