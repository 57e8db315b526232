package tokens

import "errors"

var (
	// ErrInvalidToken is returned when an access token fails verification or validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrConfig is returned for invalid or missing signing configuration.
	ErrConfig = errors.New("invalid token config")
)
