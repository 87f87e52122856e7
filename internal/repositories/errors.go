package repositories

import "errors"

// ErrAlreadyReviewed is returned when a verification decision is made twice.
var ErrAlreadyReviewed = errors.New("verification has already been reviewed")

// ErrImageLimit is returned when a listing already holds the maximum number of images.
var ErrImageLimit = errors.New("listing image limit reached")
