package errors

import "fmt"

// Kind represents the type of error
type Kind int

const (
	ErrInternal Kind = iota
	ErrNotFound
	ErrValidation

	// Room admission and identity.
	ErrNameAlreadyTaken
	ErrBadPassword
	ErrJoinsDisabled
	ErrInvalidRoomID

	// Command validity against current room state.
	ErrStageForbidsAction
	ErrPermissionDenied
	ErrCardNotInHand
	ErrWrongVoteCount
	ErrVoteOnOwnCard
	ErrDuplicateNomination
	ErrNotEnoughPlayers
	ErrUnknownCardID

	// Connection lifecycle.
	ErrSupersededBySameToken

	// Fatal: caller must terminate the process.
	ErrInternalInvariant
)

func (k Kind) String() string {
	switch k {
	case ErrInternal:
		return "internal"
	case ErrNotFound:
		return "not_found"
	case ErrValidation:
		return "validation"
	case ErrNameAlreadyTaken:
		return "name_already_taken"
	case ErrBadPassword:
		return "bad_password"
	case ErrJoinsDisabled:
		return "joins_disabled"
	case ErrInvalidRoomID:
		return "invalid_room_id"
	case ErrStageForbidsAction:
		return "stage_forbids_action"
	case ErrPermissionDenied:
		return "permission_denied"
	case ErrCardNotInHand:
		return "card_not_in_hand"
	case ErrWrongVoteCount:
		return "wrong_vote_count"
	case ErrVoteOnOwnCard:
		return "vote_on_own_card"
	case ErrDuplicateNomination:
		return "duplicate_nomination"
	case ErrNotEnoughPlayers:
		return "not_enough_players"
	case ErrUnknownCardID:
		return "unknown_card_id"
	case ErrSupersededBySameToken:
		return "superseded_by_same_token"
	case ErrInternalInvariant:
		return "internal_invariant"
	default:
		return "unknown"
	}
}

// Error is an application-level error with a kind for classification
type Error struct {
	Kind    Kind
	Message string
	Err     error // underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Constructor functions for common error types

func NotFound(msg string) *Error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func Validation(msg string) *Error {
	return &Error{Kind: ErrValidation, Message: msg}
}

func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func Internal(err error) *Error {
	return &Error{Kind: ErrInternal, Message: "internal error", Err: err}
}

func Internalf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with additional context
func Wrap(err error, kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// NameAlreadyTaken reports a join attempt using a name already bound to a
// different client token in the room.
func NameAlreadyTaken(name string) *Error {
	return &Error{Kind: ErrNameAlreadyTaken, Message: fmt.Sprintf("name %q is already taken", name)}
}

func BadPassword() *Error {
	return &Error{Kind: ErrBadPassword, Message: "incorrect room password"}
}

func JoinsDisabled() *Error {
	return &Error{Kind: ErrJoinsDisabled, Message: "this room does not allow joining mid-game"}
}

func InvalidRoomID(code string) *Error {
	return &Error{Kind: ErrInvalidRoomID, Message: fmt.Sprintf("no room with code %q", code)}
}

func StageForbidsAction(action string) *Error {
	return &Error{Kind: ErrStageForbidsAction, Message: fmt.Sprintf("%s is not allowed in the current stage", action)}
}

func PermissionDenied(msg string) *Error {
	return &Error{Kind: ErrPermissionDenied, Message: msg}
}

func CardNotInHand() *Error {
	return &Error{Kind: ErrCardNotInHand, Message: "that card is not in your hand"}
}

func WrongVoteCount(want, got int) *Error {
	return &Error{Kind: ErrWrongVoteCount, Message: fmt.Sprintf("expected %d votes, got %d", want, got)}
}

func VoteOnOwnCard() *Error {
	return &Error{Kind: ErrVoteOnOwnCard, Message: "you cannot vote for your own nomination"}
}

func DuplicateNomination() *Error {
	return &Error{Kind: ErrDuplicateNomination, Message: "nominated cards must be distinct"}
}

func NotEnoughPlayers() *Error {
	return &Error{Kind: ErrNotEnoughPlayers, Message: "need at least 3 active players"}
}

func UnknownCardID(id string) *Error {
	return &Error{Kind: ErrUnknownCardID, Message: fmt.Sprintf("unknown card id %q", id)}
}

func SupersededBySameToken() *Error {
	return &Error{Kind: ErrSupersededBySameToken, Message: "reconnected from another session"}
}

// InternalInvariant reports a violated invariant. The caller must terminate
// the process rather than continue with inconsistent room state.
func InternalInvariant(msg string) *Error {
	return &Error{Kind: ErrInternalInvariant, Message: msg}
}
