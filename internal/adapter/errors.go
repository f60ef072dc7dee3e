package adapter

import "errors"

var (
	// ErrTransient marks failures worth retrying: network errors, timeouts,
	// 5xx responses and throttling.
	ErrTransient = errors.New("transient backend error")
	// ErrPermanent marks failures that will not succeed on retry, such as
	// malformed requests the backend rejected.
	ErrPermanent = errors.New("permanent backend error")
	// ErrUnauthorized indicates a missing, expired or rejected bearer token.
	ErrUnauthorized = errors.New("backend unauthorized")
)
