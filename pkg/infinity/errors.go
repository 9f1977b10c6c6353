package infinity

import (
	"errors"
	"fmt"
)

// Sentinel errors for caller mistakes and missing remote objects.
var (
	ErrMissingCredentials = errors.New("username and password are required")
	ErrNoSetpoint         = errors.New("at least one of heat or cool setpoint is required")
	ErrInvalidHoldUntil   = errors.New("hold-until must be HH:MM")
	ErrInvalidMode        = errors.New("mode must be one of off, heat, cool, auto, fanonly")
	ErrZoneNotFound       = errors.New("zone not found in system config")
	ErrNoSystems          = errors.New("no systems registered to this account")
)

// AuthenticationError reports a failed login or an auth rejection that
// survived the single re-login attempt.
type AuthenticationError struct {
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string {
	if e.Message != "" {
		return "authentication failed: " + e.Message
	}
	if e.Err != nil {
		return "authentication failed: " + e.Err.Error()
	}
	return "authentication failed"
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// APIError reports a non-2xx portal response or a response body that could
// not be parsed. Body holds an excerpt of the raw response.
type APIError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api response (status %d) unparseable: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error { return e.Err }

// CommandPhase names the step of the hold sequence a command failed in.
// A clear-phase failure means the zone's hold is untouched; an apply-phase
// failure means the hold was cleared but the new values were never written.
type CommandPhase string

const (
	PhaseClear  CommandPhase = "clear"
	PhaseSettle CommandPhase = "settle"
	PhaseApply  CommandPhase = "apply"
)

// CommandError reports a failed setpoint/hold command together with the
// phase it failed in, so the operator knows whether a hold was left cleared.
type CommandError struct {
	Phase CommandPhase
	Err   error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("hold sequence failed at %s: %v", e.Phase, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }
