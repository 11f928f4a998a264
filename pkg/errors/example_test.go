// Package errors provides examples of structured error handling in dflog.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/dflog/pkg/errors"
)

// Example demonstrates basic error creation with details.
func Example() {
	err := errors.New(errors.ErrorTypeSchemaMismatch, "row has 2 values, logger has 3 columns").
		WithDetail("expected", 3).
		WithDetail("got", 2)

	fmt.Println(err.Error())

	// Output:
	// schema_mismatch: row has 2 values, logger has 3 columns
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeParse, "failed to read log file").
		WithDetail("file", "log.txt")

	if errors.IsType(err, errors.ErrorTypeParse) {
		fmt.Println("This is a parse error")
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("Caused by an unexpected EOF")
	}

	// Output:
	// This is a parse error
	// Caused by an unexpected EOF
}

// ExampleIsType demonstrates branching on the error category.
func ExampleIsType() {
	err := errors.Newf(errors.ErrorTypeMisalignedWrite, "%d values pending", 1)

	fmt.Println(errors.IsType(err, errors.ErrorTypeMisalignedWrite))
	fmt.Println(errors.IsType(err, errors.ErrorTypeSchemaMismatch))
	fmt.Println(errors.IsType(io.EOF, errors.ErrorTypeParse))

	// Output:
	// true
	// false
	// false
}
