package memory

import "fmt"

// EncodingError indicates the embedding model failed or rejected its input,
// for example empty content.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding failed: %v", e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// PersistenceError indicates the durable store was unreachable or a write
// failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NotFoundError indicates a lookup by ID found nothing.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("memory %s not found", e.ID)
}

// InvalidArgumentError indicates a caller-supplied parameter was out of
// range, such as a MinSimilarity outside [0,1] or a negative limit.
type InvalidArgumentError struct {
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument: %s", e.Reason)
}
