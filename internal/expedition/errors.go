package expedition

import (
	"errors"
)

// Code is a machine-readable error code returned to clients alongside a
// user-presentable message.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Validation errors
	CodePartyIDInvalid     Code = "PARTY_ID_INVALID"
	CodeTooManyItems       Code = "TOO_MANY_ITEMS"
	CodeItemUnknown        Code = "ITEM_UNKNOWN"
	CodeItemNotExploration Code = "ITEM_NOT_EXPLORATION"
	CodeItemInsufficient   Code = "ITEM_INSUFFICIENT"
	CodeSquareInvalid      Code = "SQUARE_INVALID"
	CodeQuadrantInvalid    Code = "QUADRANT_INVALID"
	CodeRegionInvalid      Code = "REGION_INVALID"
	CodeOutcomeInvalid     Code = "OUTCOME_INVALID"
	CodeImageInvalid       Code = "IMAGE_INVALID"
	CodeRequestInvalid     Code = "REQUEST_INVALID"

	// Authorization errors
	CodeUnauthenticated   Code = "UNAUTHENTICATED"
	CodeNotMember         Code = "NOT_MEMBER"
	CodeNotLeader         Code = "NOT_LEADER"
	CodeCharacterNotOwned Code = "CHARACTER_NOT_OWNED"
	CodeWrongSettlement   Code = "WRONG_SETTLEMENT"

	// Not-found errors
	CodePartyNotFound     Code = "PARTY_NOT_FOUND"
	CodePartyExpired      Code = "PARTY_EXPIRED"
	CodePartyCancelled    Code = "PARTY_CANCELLED"
	CodeCharacterNotFound Code = "CHARACTER_NOT_FOUND"
	CodeSquareNotFound    Code = "SQUARE_NOT_FOUND"

	// Conflict errors
	CodePartyNotOpen      Code = "PARTY_NOT_OPEN"
	CodePartyNotStarted   Code = "PARTY_NOT_STARTED"
	CodePartyFull         Code = "PARTY_FULL"
	CodeAlreadyJoined     Code = "ALREADY_JOINED"
	CodePartyEmpty        Code = "PARTY_EMPTY"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeWriteConflict     Code = "WRITE_CONFLICT"

	// Upstream errors
	CodeThreadCreateFailed Code = "THREAD_CREATE_FAILED"
	CodeUploadFailed       Code = "UPLOAD_FAILED"
	CodeBaseLayerMissing   Code = "BASE_LAYER_MISSING"
)

// Kind groups codes by how callers should react to them.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindAuthorization
	KindNotFound
	KindConflict
	KindUpstream
)

// Kind returns the category of c.
func (c Code) Kind() Kind {
	switch c {
	case CodePartyIDInvalid, CodeTooManyItems, CodeItemUnknown, CodeItemNotExploration,
		CodeItemInsufficient, CodeSquareInvalid, CodeQuadrantInvalid, CodeRegionInvalid,
		CodeOutcomeInvalid, CodeImageInvalid, CodeRequestInvalid:
		return KindValidation
	case CodeUnauthenticated:
		return KindUnauthenticated
	case CodeNotMember, CodeNotLeader, CodeCharacterNotOwned, CodeWrongSettlement:
		return KindAuthorization
	case CodePartyNotFound, CodePartyExpired, CodePartyCancelled, CodeCharacterNotFound,
		CodeSquareNotFound:
		return KindNotFound
	case CodePartyNotOpen, CodePartyNotStarted, CodePartyFull, CodeAlreadyJoined,
		CodePartyEmpty, CodeInvalidTransition, CodeWriteConflict:
		return KindConflict
	case CodeThreadCreateFailed, CodeUploadFailed, CodeBaseLayerMissing:
		return KindUpstream
	}
	return KindInternal
}

// Error is a domain error. Message is safe to show to players; Err holds the
// diagnostic cause, if any.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// E returns a domain error without a cause.
func E(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap returns a domain error carrying err as its cause.
func Wrap(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the first domain error in err's chain.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeUnknown
}

// IsCode reports whether err carries code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
