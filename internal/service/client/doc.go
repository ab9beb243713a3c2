// Package client implements the task-alarm CLI operations.
//
// Each operation sends one command to the daemon and prints the reply; Watch
// streams every broadcast event until interrupted.
package client
