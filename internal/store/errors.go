package store

import "errors"

// ErrNotFound is returned by all stores when a row does not exist.
// Services map it onto their own sentinels.
var ErrNotFound = errors.New("not found")
