package core

import "errors"

var (
	ErrTokenExpired     = errors.New("progress token has expired")
	ErrTokenInvalidated = errors.New("progress token has been invalidated")
	ErrInvalidToken     = errors.New("invalid progress token")
	ErrUnknownQuestion  = errors.New("unknown question")
	ErrOutOfOrder       = errors.New("question is not unlocked yet")
	ErrInvalidBank      = errors.New("invalid question bank")
)
