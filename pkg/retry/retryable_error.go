package retry

import "fmt"

// RetryableError marks an error as worth another attempt. Whether another
// attempt happens still depends on the policy's attempt limit.
type RetryableError struct {
	Cause error
}

func (re *RetryableError) Error() string {
	return fmt.Sprintf("retryable-error: %v", re.Cause)
}

func (re *RetryableError) Unwrap() error { return re.Cause }

// Temporary reports true so callers checking for temporary errors treat it
// the same way as Do does.
func (re *RetryableError) Temporary() bool { return true }
