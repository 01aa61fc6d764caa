package session

import "errors"

var (
	// ErrNoSession is returned when an operation needs a signed-in user and none is stored.
	ErrNoSession = errors.New("no active session")

	// ErrInvalidToken is returned when a token cannot be parsed as a JWT.
	ErrInvalidToken = errors.New("invalid token")
)
