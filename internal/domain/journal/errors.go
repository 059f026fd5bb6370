package journal

import "errors"

// ErrInvalidInput indicates an unusable journal entry.
var ErrInvalidInput = errors.New("invalid journal entry")
