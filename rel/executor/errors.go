package executor

import "github.com/cockroachdb/errors"

// ErrInvalidPlan marks recoverable plan-shape failures: a missing index, a
// null search-key expression, the wrong number of inputs. The engine
// surfaces these to the caller; the operator never retries.
var ErrInvalidPlan = errors.New("invalid plan")

func planErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidPlan)
}
