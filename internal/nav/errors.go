package nav

import (
	"errors"
	"fmt"
)

// ErrRunInProgress is returned when another run of the same kind holds the run lock.
var ErrRunInProgress = errors.New("run already in progress")

// ParseError signals a schema violation in an otherwise successful response.
type ParseError struct {
	Source string
	Field  string
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("parse %s: %s", e.Source, e.Msg)
	}
	return fmt.Sprintf("parse %s: field %s: %s", e.Source, e.Field, e.Msg)
}

// ConfigError signals that a required identifying input is absent. It is
// raised before any fetch is attempted.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Msg)
}

func errorKind(err error, fallback ErrorKind) ErrorKind {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ErrorConfig
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return ErrorParse
	}
	return fallback
}
