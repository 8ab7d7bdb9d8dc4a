package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResponse is returned when the text-generation service produced no usable text.
	ErrEmptyResponse = errors.New("generation returned no usable text")
	// ErrGenerationFailed wraps transport or service failures of the text-generation service.
	ErrGenerationFailed = errors.New("question generation failed")
	// ErrRateLimited is returned when a caller exceeded the generation quota for the window.
	ErrRateLimited = errors.New("rate limit exceeded, please wait before requesting again")
	// ErrUnknownMode indicates a game mode that has no question policy.
	ErrUnknownMode = errors.New("unknown game mode")
	// ErrInvalidInput covers missing or malformed request fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUserExists is returned on signup with an email or character name already taken.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound indicates no user record matched.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrRoomNotFound is returned when a room has not been initialized.
	ErrRoomNotFound = errors.New("room not found")
	// ErrPlayerNotFound is returned when a user tries to act before joining.
	ErrPlayerNotFound = errors.New("player not found in room")
	// ErrQuestionNotFound indicates a submitted question index is out of range.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option index is out of range.
	ErrOptionNotFound = errors.New("option not found")
	// ErrAlreadyAnswered is returned when a player answers the same question twice.
	ErrAlreadyAnswered = errors.New("question already answered")

	// ErrPolicyMisaligned is returned when a generated policy drifts too far from its scenario.
	ErrPolicyMisaligned = errors.New("policy does not align well with the scenario")

	// ErrNoQuestions is returned when the archive holds no questions yet.
	ErrNoQuestions = errors.New("no questions found")
)

// PartialResultError reports that fewer questions than requested were recovered.
// It is non-fatal: the recovered set is returned alongside it.
type PartialResultError struct {
	Requested int
	Recovered int
}

func (e *PartialResultError) Error() string {
	return fmt.Sprintf("partial result: recovered %d of %d questions", e.Recovered, e.Requested)
}

// IsPartial reports whether err is a non-fatal partial result. A partial result
// wrapped in ErrGenerationFailed is a failure and does not count.
func IsPartial(err error) bool {
	if errors.Is(err, ErrGenerationFailed) {
		return false
	}
	var partial *PartialResultError
	return errors.As(err, &partial)
}
