package models

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType int

const (
	ErrEnvironmentUnavailable ErrorType = iota
	ErrQuery
	ErrHashing
	ErrPackageParse
	ErrInvalidConfig
	ErrSigning
	ErrFileOp
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrEnvironmentUnavailable:
		return "EnvironmentUnavailable"
	case ErrQuery:
		return "Query"
	case ErrHashing:
		return "Hashing"
	case ErrPackageParse:
		return "PackageParse"
	case ErrInvalidConfig:
		return "InvalidConfig"
	case ErrSigning:
		return "Signing"
	case ErrFileOp:
		return "FileOp"
	default:
		return "Unknown"
	}
}

// SwidError represents an error during tag generation
type SwidError struct {
	Type    ErrorType
	Package string
	Err     error
}

// Error implements the error interface
func (e *SwidError) Error() string {
	if e.Package != "" {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Package, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Type, e.Err)
}

// Unwrap returns the wrapped error
func (e *SwidError) Unwrap() error {
	return e.Err
}

// IsErrorType reports whether any SwidError in err's chain has the given type
func IsErrorType(err error, t ErrorType) bool {
	for err != nil {
		var se *SwidError
		if !errors.As(err, &se) {
			return false
		}
		if se.Type == t {
			return true
		}
		err = se.Err
	}
	return false
}
