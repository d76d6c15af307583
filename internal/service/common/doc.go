// Package common holds helpers shared by the bridge commands.
//
// It provides a gRPC client for the bridge service with per-call timeouts and
// detection of the calling user and host, which the server logs for each call.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
