package http

import (
	"errors"

	"github.com/go-chi/render"

	apierrors "arklicense/internal/errors"
	"arklicense/internal/license"
)

// mapDomainError translates service errors into the API error envelope.
// Unrecognized errors collapse to a generic 500 so internals never leak.
func mapDomainError(err error) render.Renderer {
	switch {
	case errors.Is(err, license.ErrAppMismatch):
		return apierrors.ErrAppMismatch
	case errors.Is(err, license.ErrBadMachineID):
		return apierrors.ErrBadMachineID
	case errors.Is(err, license.ErrInvalidKey):
		return apierrors.ErrInvalidKey
	case errors.Is(err, license.ErrInactive):
		return apierrors.ErrInactive
	case errors.Is(err, license.ErrExpired):
		return apierrors.ErrExpired
	case errors.Is(err, license.ErrSeatLimit):
		return apierrors.ErrSeatLimitExceeded
	case errors.Is(err, license.ErrNotFound):
		return apierrors.ErrKeyNotFound
	default:
		return apierrors.ErrInternal
	}
}
