package engine

import "errors"

// All engine failures are user-facing and recoverable; handlers translate
// them to HTTP statuses. None of them leave partial mutations behind.
var (
	ErrInvalidShareCount  = errors.New("share count must be a positive whole number")
	ErrUnknownSymbol      = errors.New("unknown symbol")
	ErrQuoteUnavailable   = errors.New("quote temporarily unavailable")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrUsernameTaken      = errors.New("username already taken")
)
