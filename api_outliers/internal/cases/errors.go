package cases

import (
	"errors"
	"fmt"
	"strings"
)

var (
	errNoColumns       = errors.New("no columns to parse from file")
	errInvalidEncoding = errors.New("invalid UTF-8 encoding")
)

// ParseError reports content that is not a usable CSV table.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error on line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaError reports required columns missing from the header.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

// IsInputError reports whether err was caused by the uploaded content
// rather than by the service.
func IsInputError(err error) bool {
	var parseErr *ParseError
	var schemaErr *SchemaError
	return errors.As(err, &parseErr) || errors.As(err, &schemaErr)
}
