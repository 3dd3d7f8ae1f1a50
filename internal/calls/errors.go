package calls

import "errors"

var (
	// ErrNotFound means the call does not exist (or the user has no
	// participant row where one is required).
	ErrNotFound = errors.New("call not found")

	// ErrForbidden means the user is not a member of the call's
	// conversation, or not the initiator for initiator-only actions.
	ErrForbidden = errors.New("not allowed")

	// ErrInvalidState means the action needs an ongoing call (or a
	// participant in a state that permits the transition).
	ErrInvalidState = errors.New("call not active")

	// ErrCallInProgress means the conversation already has an ongoing call.
	ErrCallInProgress = errors.New("conversation already has an ongoing call")

	ErrInvalidArgument = errors.New("invalid argument")
)
