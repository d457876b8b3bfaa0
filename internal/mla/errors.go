package mla

import "errors"

var (
	// ErrTransport covers network and HTTP-level failures. Retry-eligible;
	// sync cursors are never advanced past one of these.
	ErrTransport = errors.New("membership API transport failure")

	// ErrProtocol indicates the envelope decoded but did not carry a success
	// status with a recognized code.
	ErrProtocol = errors.New("membership API returned an unexpected envelope")

	// ErrEmptyResult indicates the envelope carried no data records.
	ErrEmptyResult = errors.New("membership API returned no records")

	// ErrAmbiguousResult indicates more than one record came back where
	// exactly one was expected.
	ErrAmbiguousResult = errors.New("membership API returned multiple records where one was expected")

	// ErrSchema indicates a required property was absent from a record.
	ErrSchema = errors.New("membership API record is missing a required property")

	// ErrAuthentication is the parent of all credential failures.
	ErrAuthentication = errors.New("authentication failed")

	// ErrInvalidCredentials indicates the API rejected the supplied password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInactiveMembership indicates valid credentials but a lapsed membership.
	ErrInactiveMembership = errors.New("membership is not active")
)
