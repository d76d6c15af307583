// Package watcher polls a running bridge and reports board state changes.
package watcher
