package client

import "errors"

var (
	ErrUnavailable     = errors.New("server unavailable")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrWrongPassword   = errors.New("wrong master password or code")
	ErrNotFound        = errors.New("not found")
	ErrIntegrity       = errors.New("archive integrity check failed")
	ErrInvalidArgument = errors.New("invalid argument")
)
