package services

import (
	"errors"
	"fmt"
)

// Failure kinds returned by the services. Handlers map them to HTTP statuses.
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrAlreadyFriends   = errors.New("users are already friends")
	ErrDuplicateRequest = errors.New("friend request already exists")
	ErrRequestNotFound  = errors.New("friend request not found")
	ErrForbidden        = errors.New("not authorized")
	ErrInvalidState     = errors.New("only pending requests can be resolved")
	ErrNotFriends       = errors.New("user is not in your friends list")
	ErrNotFound         = errors.New("not found")
	ErrInvalidLogin     = errors.New("invalid email or password")
	ErrEmailTaken       = errors.New("email already taken")
)

// StoreError wraps a failure of the underlying data store. Its message never includes
// the cause, which stays reachable through Unwrap for logging.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "store error during " + e.Op
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// invalid returns an ErrInvalidRequest carrying a specific message.
func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, msg)
}
