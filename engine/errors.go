package engine

import (
	"fmt"
)

// Kind is the category of a player-caused failure.
type Kind int

const (
	KindConfiguration Kind = iota + 1
	KindAuthorization
	KindStateConflict
	KindResource
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindAuthorization:
		return "authorization"
	case KindStateConflict:
		return "state_conflict"
	case KindResource:
		return "resource"
	case KindNotFound:
		return "not_found"
	}
	return "unknown"
}

// Code identifies a specific failure within its Kind.
type Code string

const (
	CodeInvalidConfig         Code = "invalid_config"
	CodeGameFull              Code = "game_full"
	CodeGameInactive          Code = "game_inactive"
	CodeAlreadyJoined         Code = "already_joined"
	CodeNotParticipant        Code = "not_participant"
	CodeNotYourTurn           Code = "not_your_turn"
	CodeTurnAlreadyCompleted  Code = "turn_already_completed"
	CodeInvalidAction         Code = "invalid_action"
	CodeInsufficientResources Code = "insufficient_resources"
	CodeUnknownItem           Code = "unknown_item"
	CodeNotFound              Code = "not_found"
)

// Error is a structured, user-displayable engine failure. Two Errors match
// under errors.Is when their codes are equal.
type Error struct {
	Kind   Kind   `json:"kind"`
	Code   Code   `json:"code"`
	Action string `json:"action,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Code)
	}
	if e.Action != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Action, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrInvalidConfig         = &Error{Kind: KindConfiguration, Code: CodeInvalidConfig}
	ErrGameFull              = &Error{Kind: KindStateConflict, Code: CodeGameFull}
	ErrGameInactive          = &Error{Kind: KindStateConflict, Code: CodeGameInactive}
	ErrAlreadyJoined         = &Error{Kind: KindStateConflict, Code: CodeAlreadyJoined}
	ErrNotParticipant        = &Error{Kind: KindAuthorization, Code: CodeNotParticipant}
	ErrNotYourTurn           = &Error{Kind: KindAuthorization, Code: CodeNotYourTurn}
	ErrTurnAlreadyCompleted  = &Error{Kind: KindStateConflict, Code: CodeTurnAlreadyCompleted}
	ErrInvalidAction         = &Error{Kind: KindStateConflict, Code: CodeInvalidAction}
	ErrInsufficientResources = &Error{Kind: KindResource, Code: CodeInsufficientResources}
	ErrUnknownItem           = &Error{Kind: KindResource, Code: CodeUnknownItem}
	ErrNotFound              = &Error{Kind: KindNotFound, Code: CodeNotFound}
	ErrGameNotFound          = &Error{Kind: KindNotFound, Code: CodeNotFound, Detail: "game not found"}
)

func configError(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Code: CodeInvalidConfig, Detail: fmt.Sprintf(format, args...)}
}

// invalidAction reports an illegal action. kind picks the category: a bad
// position is a state conflict, a foreign unit is an authorization failure.
func invalidAction(kind Kind, action ActionKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: CodeInvalidAction, Action: string(action), Detail: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Detail: fmt.Sprintf(format, args...)}
}

func withDetail(base *Error, format string, args ...any) *Error {
	e := *base
	e.Detail = fmt.Sprintf(format, args...)
	return &e
}

// ActionError wraps the failure of one action in a batch with its position.
type ActionError struct {
	Index  int
	Action ActionKind
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %d (%s): %v", e.Index, e.Action, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }
