// Package statusapi exposes a small local HTTP surface reporting the sync
// engine's state.
//
// It serves a read-only status snapshot for UI indicators and admin tooling
// on a loopback address; it is not part of the backend sync protocol.
package statusapi
