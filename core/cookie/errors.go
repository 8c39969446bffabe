package cookie

import "errors"

var (
	ErrNoSecret         = errors.New("cookie: no secret provided")
	ErrSecretTooShort   = errors.New("cookie: secret must be at least 32 characters long")
	ErrNotFound         = errors.New("cookie: not found")
	ErrInvalidFormat    = errors.New("cookie: invalid format")
	ErrInvalidSignature = errors.New("cookie: signature verification failed")
	ErrTooLarge         = errors.New("cookie: value exceeds maximum size")
)
