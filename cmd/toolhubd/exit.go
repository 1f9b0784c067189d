package main

import (
	"toolhub/internal/domain"
)

type exitError struct {
	code    int
	message string
	silent  bool
}

func (e exitError) Error() string {
	return e.message
}

const (
	exitFailure  = 1
	exitInvalid  = 2
	exitNotFound = 3
	exitBusy     = 4
)

// exitFor maps an error to a process exit status by its domain code.
func exitFor(err error) error {
	if err == nil {
		return nil
	}
	code := exitFailure
	if c, ok := domain.CodeFrom(err); ok {
		switch c {
		case domain.CodeInvalidArgument:
			code = exitInvalid
		case domain.CodeNotFound:
			code = exitNotFound
		case domain.CodeAborted:
			code = exitBusy
		}
	}
	return exitError{code: code, message: err.Error()}
}
