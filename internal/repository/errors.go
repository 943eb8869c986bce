// Package repository defines the storage contracts of the task manager and
// the sentinel errors shared by every backend.  Handlers distinguish
// failure scenarios with errors.Is against these values.
package repository

import "errors"

// ErrNotFound is returned when no record matches the id and owner.
// Handlers translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique key (user email, category name
// per owner) is already taken.  Handlers translate it into HTTP 400.
var ErrDuplicate = errors.New("duplicate")

// ErrDefaultsExist is returned when default categories already exist for
// the user.
var ErrDefaultsExist = errors.New("default categories already exist")
