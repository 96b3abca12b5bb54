package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so services can translate them into
// caller-facing results.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in the store
// - ErrMalformed: a stored entry fails to parse
// - ErrExpired: record exists but its retention window has passed
// - ErrInvalidState: entity in wrong state for the requested operation
// - ErrUnavailable: backing service or resource temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrMalformed    = errors.New("malformed record")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
