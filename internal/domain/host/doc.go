// Package host defines the vocabulary of the host-side bridge process:
// configuration field names, command names, OS tags, the expected device
// drive name and the messages reported when detection or execution fails.
package host
