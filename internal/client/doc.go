// Package client implements the device application runtime.
//
// It is the composition root: configuration, logging, the local store, the
// backend adapter, the sync engine, and the background workers are wired here
// into a single process lifecycle.
package client
