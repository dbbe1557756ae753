package mindloop

import (
	"errors"

	"github.com/mohammad-safakhou/mindloop/provider/openrouter"
)

var (
	ErrEmptyTopic     = errors.New("topic is empty")
	ErrMissingAPIKey  = openrouter.ErrMissingAPIKey
	ErrNoActiveAgents = errors.New("no active agents: enable at least one agent")
	ErrEmptyComment   = errors.New("comment is empty")

	ErrNoCurrentCycle = errors.New("no current cycle")
	ErrAlreadyRunning = errors.New("a cycle is already running")
	ErrBusy           = errors.New("a model call is in progress")
	ErrInvalidPhase   = errors.New("operation not allowed in the current phase")
	ErrRoundLimit     = errors.New("round limit reached")

	ErrNothingToSynthesize = errors.New("no agent results to synthesize")
)

// ConfigurationError reports an intent rejected because settings are
// incomplete or invalid. The user can fix it without retrying later.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string { return e.Err.Error() }
func (e *ConfigurationError) Unwrap() error { return e.Err }

// StateError reports an intent that does not fit the current cycle state.
type StateError struct {
	Err error
}

func (e *StateError) Error() string { return e.Err.Error() }
func (e *StateError) Unwrap() error { return e.Err }

func configErr(err error) error { return &ConfigurationError{Err: err} }

func stateErr(err error) error { return &StateError{Err: err} }

func IsConfigurationError(err error) bool {
	var c *ConfigurationError
	return errors.As(err, &c)
}

func IsStateError(err error) bool {
	var s *StateError
	return errors.As(err, &s)
}
