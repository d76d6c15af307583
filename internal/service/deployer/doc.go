// Package deployer copies user code, and optionally a library directory,
// onto a mounted CIRCUITPY drive. Every file is applied with a SHA-512
// checksum so an interrupted copy leaves the previous version in place.
package deployer
