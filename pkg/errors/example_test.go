// Package errors provides examples of structured error handling in framekit.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/framekit/pkg/errors"
)

// Example demonstrates basic error creation.
func Example() {
	err := errors.New(errors.ErrorTypeInvalidArgument, "instance cannot be nil").
		WithDetail("collection", "*game.Bullet")

	fmt.Println(err.Error())

	// Output:
	// invalid_argument: instance cannot be nil
}

// ExampleWrap shows how a constructor failure is wrapped with pool context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeConstruction, "failed to construct *game.Bullet").
		WithDetail("type", "*game.Bullet")

	if errors.IsType(err, errors.ErrorTypeConstruction) {
		fmt.Println("construction failed")
	}
	fmt.Println(err)

	// Output:
	// construction failed
	// construction: failed to construct *game.Bullet: unexpected EOF
}

// Example_taxonomy shows how callers separate programmer errors from lookup misses.
func Example_taxonomy() {
	results := []error{
		errors.New(errors.ErrorTypeInvalidOperation, "state machine already started"),
		errors.New(errors.ErrorTypeNotFound, "state *game.Run is not registered"),
		errors.Newf(errors.ErrorTypeInvalidArgument, "type %s is not poolable", "game.Enemy"),
	}

	for _, err := range results {
		switch {
		case errors.IsNotFound(err):
			fmt.Println("recoverable:", err)
		case errors.IsInvalidOperation(err), errors.IsInvalidArgument(err):
			fmt.Println("programmer error:", err)
		}
	}

	// Output:
	// programmer error: invalid_operation: state machine already started
	// recoverable: not_found: state *game.Run is not registered
	// programmer error: invalid_argument: type game.Enemy is not poolable
}
