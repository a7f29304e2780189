package rel

import "fmt"

// RangeError reports that a typed assignment could not represent a value in
// the destination type. Exactly one of Overflow or Underflow is set. Callers
// that can degrade a scan instead of failing match it with errors.As.
type RangeError struct {
	Overflow  bool
	Underflow bool
	Dest      ColumnType
	Value     string
}

func (e *RangeError) Error() string {
	dir := "overflow"
	if e.Underflow {
		dir = "underflow"
	}
	return fmt.Sprintf("type %s of %s storing value %s", dir, e.Dest, e.Value)
}

func overflowError(dest ColumnType, v Value) *RangeError {
	return &RangeError{Overflow: true, Dest: dest, Value: v.String()}
}

func underflowError(dest ColumnType, v Value) *RangeError {
	return &RangeError{Underflow: true, Dest: dest, Value: v.String()}
}
