package flow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrUnknownFlow is returned by Run for a name that is not registered
	ErrUnknownFlow = errors.New("unknown flow")

	// ErrNoAudio is returned when the speech model produced no audio
	ErrNoAudio = errors.New("speech generation returned no audio")
)

// FieldError describes one failed input constraint
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// ValidationError reports input that could not be decoded or that broke
// a constraint. No model call is made for such input.
type ValidationError struct {
	Flow   string
	Fields []FieldError
	Err    error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid %s input: %v", e.Flow, e.Err)
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		if f.Param != "" {
			parts[i] = fmt.Sprintf("%s failed %s=%s", f.Field, f.Rule, f.Param)
		} else {
			parts[i] = fmt.Sprintf("%s failed %s", f.Field, f.Rule)
		}
	}
	return fmt.Sprintf("invalid %s input: %s", e.Flow, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// newValidationError converts validator errors into a ValidationError
func newValidationError(flow string, err error) *ValidationError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Flow: flow, Err: err}
	}
	fields := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		fields[i] = FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()}
	}
	return &ValidationError{Flow: flow, Fields: fields, Err: err}
}
