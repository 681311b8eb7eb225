package lyrics

import "errors"

// Service errors.
var (
	ErrTrackNotFound       = errors.New("track version not found")
	ErrWordsExceedDuration = errors.New("words end after track duration")
)
