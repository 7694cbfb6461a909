package execution

import "fmt"

// ValidationError reports a request rejected before any sandbox was provisioned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// FaultError wraps a panic recovered while executing a request.
type FaultError struct {
	Cause any
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("execution fault: %v", e.Cause)
}

// Unwrap returns the panic value when it was an error.
func (e *FaultError) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}
	return nil
}
