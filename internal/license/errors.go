package license

import "errors"

// Domain errors surfaced by activation and admin operations. Transport
// adapters translate these into stable API error codes.
var (
	// ErrAppMismatch indicates the request named a different application id
	// than this server is configured to serve.
	ErrAppMismatch = errors.New("application id mismatch")

	// ErrInvalidKey indicates the license key is not present in the store.
	ErrInvalidKey = errors.New("invalid license key")

	// ErrInactive indicates the key exists but has been deactivated.
	ErrInactive = errors.New("license is not active")

	// ErrExpired indicates the license is past its expiry.
	ErrExpired = errors.New("license expired")

	// ErrBadMachineID indicates machine identity normalization produced an
	// empty fingerprint.
	ErrBadMachineID = errors.New("invalid machine identifier")

	// ErrSeatLimit indicates binding another machine would exceed the
	// license's seat count.
	ErrSeatLimit = errors.New("seat limit reached")

	// ErrNotFound indicates an admin lookup or removal on an unknown key.
	ErrNotFound = errors.New("license key not found")
)
