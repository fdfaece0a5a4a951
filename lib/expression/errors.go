package expression

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyExpression is returned for blank expressions.
	ErrEmptyExpression = errors.New("expression: expression must not be empty")

	// ErrUnknownEngine is returned when an engine name is not registered.
	ErrUnknownEngine = errors.New("expression: unknown engine")

	// ErrInvalidStatement is returned by the action-dispatch parser.
	ErrInvalidStatement = errors.New("expression: invalid statement")
)

// EvaluationError captures the engine and expression alongside the
// originating error.
type EvaluationError struct {
	Engine string
	Expr   string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("expression: %s engine expr=%q: %v", e.Engine, e.Expr, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func wrapEvaluationError(engine, expr string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}
	return &EvaluationError{Engine: engine, Expr: expr, Err: err}
}
