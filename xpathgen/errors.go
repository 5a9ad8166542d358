package xpathgen

import (
	"errors"
	"fmt"
)

// ErrInvalidExpression marks an expression that failed to compile, failed
// during evaluation, or does not select nodes.
var ErrInvalidExpression = errors.New("invalid xpath expression")

// ExprError carries the offending expression and the underlying cause.
type ExprError struct {
	Expr string
	Err  error
}

func (e *ExprError) Error() string {
	return fmt.Sprintf("xpathgen: %q: %v", e.Expr, e.Err)
}

func (e *ExprError) Unwrap() []error {
	return []error{ErrInvalidExpression, e.Err}
}
