package domain

import "errors"

// ErrNotFound is returned by store lookups and updates that matched nothing.
var ErrNotFound = errors.New("not found")
