// Package device locates the CIRCUITPY drive a Circuit Playground Express
// mounts when plugged in, using the mechanism native to each host platform.
package device
