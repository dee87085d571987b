package inference

import (
	"errors"
	"fmt"
)

var (
	ErrInferenceUnreachable = errors.New("inference endpoint unreachable")
	ErrInferenceTimeout     = errors.New("inference endpoint timeout")
	ErrInvalidResponse      = errors.New("inference endpoint returned invalid response")
)

// InferenceError is a non-2xx answer from the inference endpoint.
type InferenceError struct {
	StatusCode int
	Message    string
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference endpoint returned %d: %s", e.StatusCode, e.Message)
}
