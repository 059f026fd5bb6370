package syncengine

import "errors"

// ErrAlreadyDraining indicates a drain was requested while one is running.
var ErrAlreadyDraining = errors.New("drain already in progress")
