// Package state persists the last board snapshot so a restarted bridge
// reports what the board showed before it went down.
package state
