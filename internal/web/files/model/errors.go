package model

import "github.com/Laisky/errors/v2"

// ErrNotFound is returned when no record exists for the given id and owner.
var ErrNotFound = errors.New("file record not found")
