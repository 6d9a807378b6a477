package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Gateway, proof, and store layers
// return these (optionally wrapped) so services can translate them into domain
// errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: account or record does not exist
// - ErrRateLimited: remote endpoint returned a rate-limit response
// - ErrAlreadyProcessed: transaction was already accepted under this signature
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: service or resource temporarily unavailable
// - ErrExpired: blockhash or subscription past its validity window
var (
	ErrNotFound         = errors.New("not found")
	ErrRateLimited      = errors.New("rate limited")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrInvalidState     = errors.New("invalid state")
	ErrUnavailable      = errors.New("unavailable")
	ErrExpired          = errors.New("expired")
)
