// Package common holds helpers shared by the daemon and the CLI.
//
// It provides a gRPC client wrapper with call timeouts and utilities to
// detect the current system actor (hostname/username) for the audit log.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
