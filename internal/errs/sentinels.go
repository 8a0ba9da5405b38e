// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSourceInactive indicates the case exists but is not open for purchase.
	ErrSourceInactive = errors.New("case inactive")

	// ErrNoOutcomes indicates a case with no configured drop table (misconfiguration).
	ErrNoOutcomes = errors.New("case has no items")

	// ErrInsufficientBalance indicates the user cannot afford the requested open.
	ErrInsufficientBalance = errors.New("insufficient gems")

	// ErrAlreadySold indicates a second disposal attempt on the same inventory entry.
	ErrAlreadySold = errors.New("already sold")

	// ErrCooldown indicates the bonus claim cooldown has not elapsed yet.
	ErrCooldown = errors.New("cooldown not elapsed")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrPriceUnavailable indicates the external price source yielded nothing usable.
	ErrPriceUnavailable = errors.New("price unavailable")
)
