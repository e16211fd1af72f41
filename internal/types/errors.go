package types

import "errors"

var ErrNotFound = errors.New("requested item not found")
var ErrConflict = errors.New("item already exists or conflict")
var ErrUnauthenticated = errors.New("authentication required or invalid credentials")
var ErrForbidden = errors.New("action forbidden")
var ErrValidation = errors.New("invalid input")

// ErrInvalidToken covers every verification failure: bad signature, expired,
// malformed payload. Handlers must translate it into a 401, never a 500.
var ErrInvalidToken = errors.New("invalid or expired token")
