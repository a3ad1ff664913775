package main

import "errors"

var (
	ErrAdvanceInProgress = errors.New("advance already in progress")
	ErrContactNotFound   = errors.New("contact not found")
	ErrNoOpenChat        = errors.New("no chat window is open")
	ErrUnknownSession    = errors.New("unknown session")
	ErrSessionReplaced   = errors.New("session was replaced")
	ErrUnknownTab        = errors.New("unknown tab")
	ErrEventService      = errors.New("event service")
)

var errNothingRendered = errors.New("no fragment rendered")
