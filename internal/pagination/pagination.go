// Package pagination provides utilities around page tokens.
package pagination

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
)

var tokenEncoding = base64.RawURLEncoding

// Validator is implemented by token types that constrain their contents.
type Validator interface {
	Validate() error
}

// TokenError is an opaque error related to pagination tokens. The error message
// does not reveal internal details; use [errors.Unwrap] to access the cause.
type TokenError struct {
	cause error
}

// Error satisfies [error].
func (terr TokenError) Error() string {
	return "invalid pagination token"
}

// Unwrap returns the underlying cause of the token error.
func (terr TokenError) Unwrap() error {
	return terr.cause
}

// FromToken decodes an opaque pagination token into msg. If msg is a
// [Validator] it is validated after decoding. Returns a [TokenError] if
// decoding or validation fails.
func FromToken(tkn string, msg any) error {
	data, err := tokenEncoding.DecodeString(tkn)
	if err != nil {
		return TokenError{cause: err}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err = dec.Decode(msg); err != nil {
		return TokenError{cause: err}
	}
	return validate(msg)
}

// ToToken encodes msg into an opaque pagination token. Returns a [TokenError]
// if validation or encoding fails.
func ToToken(msg any) (string, error) {
	if err := validate(msg); err != nil {
		return "", err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", TokenError{cause: err}
	}
	return tokenEncoding.EncodeToString(data), nil
}

func validate(msg any) error {
	if v, ok := msg.(Validator); ok {
		if err := v.Validate(); err != nil {
			return TokenError{cause: err}
		}
	}
	return nil
}
