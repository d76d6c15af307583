// Package client pushes programs to a running bridge.
package client
