package binding

import (
	"errors"
	"fmt"
)

// ErrNoID is reported for elements whose adapter yields no usable id.
var ErrNoID = errors.New("binding: element has no id")

// AdapterError wraps a failure raised by an adapter.
type AdapterError struct {
	Binding string
	ID      string
	Op      string
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("binding: %s %q (%s): %v", e.Op, e.ID, e.Binding, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// PanicError is the error recovered from a panicking adapter.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Call runs fn and converts a returned error or panic into an
// *AdapterError.
func Call(name, id, op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &AdapterError{Binding: name, ID: id, Op: op, Err: &PanicError{Value: r}}
		}
	}()
	if ferr := fn(); ferr != nil {
		return &AdapterError{Binding: name, ID: id, Op: op, Err: ferr}
	}
	return nil
}
