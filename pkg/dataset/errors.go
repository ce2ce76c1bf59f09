package dataset

import "errors"

// Sentinel errors returned by dataset operations. Callers match them with errors.Is.
var (
	ErrMissingDimension = errors.New("dimension does not exist")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrShapeMismatch    = errors.New("shape mismatch")
	ErrDimConflict      = errors.New("conflicting dimension sizes")
	ErrInvalidVariable  = errors.New("invalid variable")
	ErrDuplicateName    = errors.New("duplicate variable name")
	ErrUnsupported      = errors.New("unsupported operation")
)
