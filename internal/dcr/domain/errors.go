package domain

import "errors"

// RFC 7591 error codes surfaced to registration callers.
var (
	ErrInvalidRequest              = errors.New("invalid_request")
	ErrInvalidSoftwareStatement    = errors.New("invalid_software_statement")
	ErrUnapprovedSoftwareStatement = errors.New("unapproved_software_statement")
	ErrRegistrationDisabled        = errors.New("registration_disabled")
	ErrServer                      = errors.New("server_error")

	ErrClientNotFound = errors.New("client not found")
)
