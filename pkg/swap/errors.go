package swap

import "errors"

// Every failure rejects the whole operation; nothing is partially applied.
// Callers match with errors.Is.
var (
	ErrOrderExpired         = errors.New("order expired")
	ErrOrderAlreadyTaken    = errors.New("order already taken")
	ErrOrderAlreadyCanceled = errors.New("order already canceled")
	ErrNonceTooLow          = errors.New("nonce too low")
	ErrSenderUnauthorized   = errors.New("sender unauthorized")
	ErrSignerUnauthorized   = errors.New("signer unauthorized")
	ErrSignatureInvalid     = errors.New("signature invalid")
	ErrInvalidAuthDelegate  = errors.New("invalid auth delegate")
	ErrInvalidAuthExpiry    = errors.New("invalid auth expiry")

	// Transfer-layer failures, fatal to the whole settlement call
	ErrKindNotRegistered = errors.New("kind not registered")
	ErrTransferFailed    = errors.New("transfer failed")
)
