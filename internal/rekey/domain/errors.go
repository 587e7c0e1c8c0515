package domain

import (
	"github.com/allisson/fieldcrypt/internal/errors"
)

// ErrMaxFailuresExceeded aborts the rekey run of a tenant once more records failed
// than the configured threshold allows.
var ErrMaxFailuresExceeded = errors.New("rekey max failure count exceeded")
