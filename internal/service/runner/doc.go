// Package runner executes user code in the board simulator.
//
// The simulator is a Python child process importing the simulated board
// library from the python_libs directory. Input events are written to its
// stdin as JSON lines; board state reports come back on stdout as JSON
// lines of the form {"state": {...}}. Any other stdout line is program output.
package runner
