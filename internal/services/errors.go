package services

import "errors"

// ErrForbidden is returned when a resource exists but belongs to a
// different user than the one making the request. Kept distinct from
// store.ErrNotFound so the boundary can answer 403 vs 404.
var ErrForbidden = errors.New("forbidden")
