package domain

import "errors"

// Domain failures. Each is returned after the enclosing unit of work has
// been rolled back, so retrying the same call is safe.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidState        = errors.New("invalid state transition")
	ErrTierInsufficient    = errors.New("subscription tier insufficient")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("not owned by user")
	ErrAlreadyRedeemed     = errors.New("gift already redeemed")
	ErrInvalidRecord       = errors.New("invalid record")
	ErrConfiguration       = errors.New("payment method not configured")

	ErrIdempotencyConflict = errors.New("request in progress")
	ErrIdempotencyMismatch = errors.New("key reuse with mismatched payload")
)
