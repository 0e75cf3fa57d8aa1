package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotLoggedIn   = errors.New("not logged in")
	ErrNotInQuiz     = errors.New("no quiz in progress")
	ErrInvalidAnswer = errors.New("answer must be one of A, B, C, D")
	ErrEmptySheet    = errors.New("no questions found in sheet")
	ErrNoSheetID     = errors.New("sheet id is required")

	ErrUnverifiedToken = errors.New("identity token could not be verified")
	ErrSessionChanged  = errors.New("session changed while loading")
)

// DecodeError reports an identity assertion that could not be read.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode identity token: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// AccessDeniedError is returned for an email outside the allow-list.
type AccessDeniedError struct {
	Email string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied for %s", e.Email)
}

// RemoteReadError wraps a failed question load. Message is meant for users.
type RemoteReadError struct {
	Message string
	Err     error
}

func (e *RemoteReadError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *RemoteReadError) Unwrap() error { return e.Err }

type RemoteWriteError struct {
	Row int
	Err error
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("write response for row %d: %v", e.Row, e.Err)
}

func (e *RemoteWriteError) Unwrap() error { return e.Err }
