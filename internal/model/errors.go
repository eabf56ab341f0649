package model

import "errors"

// Domain errors. Repositories and services wrap these with fmt.Errorf("%w")
// so callers can classify failures with errors.Is.
var (
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("conflict")
	ErrValidation            = errors.New("validation failed")
	ErrInvalidOrExpiredCode  = errors.New("invalid or expired trade code")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrNoLocationSaved       = errors.New("no location saved")
	ErrIneligible            = errors.New("site is not eligible")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
	ErrTransient             = errors.New("storage temporarily unavailable")

	// ErrVersionConflict is returned by conditional saves when the stored
	// document changed since it was read. Services retry on it.
	ErrVersionConflict = errors.New("version conflict")
)
