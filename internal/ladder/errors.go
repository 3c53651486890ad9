package ladder

import "fmt"

// ValidationError rejects malformed input before any state change.
// Safe to retry after correction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

// AuthorizationError rejects a wrong token or a wrong actor. The message is
// deliberately uniform so callers learn nothing beyond "not permitted".
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return "not permitted"
}

// PreconditionError means the match is no longer in the state the action
// targets. Callers racing on the same capability link is an expected
// scenario, so this surfaces as "already handled" rather than a hard failure.
type PreconditionError struct {
	Status MatchStatus
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("action no longer applicable, match is %s", e.Status)
}

// ConflictError rejects a second active match for the same pair.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s", e.Reason)
}
