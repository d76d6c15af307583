// Package board holds the hardware-facing vocabulary of the simulated
// Circuit Playground Express: user-facing error messages, the recognized
// input event names and the small board model (pixels, brightness, red LED)
// those messages guard.
package board
