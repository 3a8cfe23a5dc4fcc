package token

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidToken is returned when a token cannot be found, a
	// variant lacks a required capability, or decryption of its
	// payload failed and the token was revoked.
	ErrInvalidToken = errors.New("token is invalid")

	// ErrPasswordless is returned when a password operation hits a
	// token with no stored password. This is an expected condition,
	// not a failure; callers must handle it explicitly.
	ErrPasswordless = errors.New("token has no password stored")

	// ErrTokenNotFound is the store-level absence signal. It is
	// translated to ErrInvalidToken at the provider boundary.
	ErrTokenNotFound = errors.New("token not found")

	// ErrUniqueConstraint is returned by Store.Insert when the token
	// hash already exists. GenerateToken resolves it by reading the
	// winning record instead of surfacing an error.
	ErrUniqueConstraint = errors.New("token hash already exists")
)

// ExpiredTokenError is returned when a token is found but its expiry
// timestamp has passed. It carries the token so callers can offer a
// renewal path instead of forcing re-authentication.
type ExpiredTokenError struct {
	Token Token
}

func (e *ExpiredTokenError) Error() string {
	return fmt.Sprintf("token %s has expired", e.Token.GetID())
}

// WipeRequestError is returned by the manager's read path when a token
// is flagged for remote wipe. It is a control-flow signal: the device
// holding the token must enter the wipe protocol instead of a session.
type WipeRequestError struct {
	Token Token
}

func (e *WipeRequestError) Error() string {
	return fmt.Sprintf("token %s is marked for remote wipe", e.Token.GetID())
}
