package governance

import "errors"

// Kind classifies a rejected transition.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindState         Kind = "state"
	KindResource      Kind = "resource"
	KindNotFound      Kind = "not_found"
	KindInternal      Kind = "internal"
)

// Error is a rejected transition with a stable, enumerable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrNameTooLong        = newError(KindValidation, "NameTooLong", "organization name is too long (max 32 bytes)")
	ErrDescriptionTooLong = newError(KindValidation, "DescriptionTooLong", "proposal description is too long (max 256 bytes)")

	ErrUnauthorized = newError(KindAuthorization, "Unauthorized", "unauthorized")

	ErrProposalNotActive     = newError(KindState, "ProposalNotActive", "proposal is not active")
	ErrProposalAlreadyClosed = newError(KindState, "ProposalAlreadyClosed", "proposal is already closed")
	ErrAlreadyVoted          = newError(KindState, "AlreadyVoted", "user has already voted on this proposal")

	ErrProposalLimitReached = newError(KindResource, "ProposalLimitReached", "proposal limit reached")
	ErrVoterLimitReached    = newError(KindResource, "VoterLimitReached", "proposal voter capacity reached")
	ErrCounterOverflow      = newError(KindResource, "CounterOverflow", "counter would overflow")

	ErrOrganizationNotFound = newError(KindNotFound, "OrganizationNotFound", "organization not found")
	ErrProposalNotFound     = newError(KindNotFound, "ProposalNotFound", "proposal not found")
)

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
