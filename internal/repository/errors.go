package repository

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrNotFound is returned when no document matches the query.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned when a unique index rejects a write.
	ErrDuplicate = errors.New("duplicate document")
)

// translate maps driver sentinel errors onto repository errors and leaves others untouched.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	}
	return err
}
