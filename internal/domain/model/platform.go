package model

import "fmt"

// PlatformResult is the success payload returned by a platform gateway
// operation. Payload carries the raw gateway response for diagnostics.
type PlatformResult struct {
	Message string
	Payload map[string]any
}

// PlatformError is a typed failure from the platform gateway. Transient
// failures (network, rate limit, platform-side 5xx) are retry-eligible;
// permanent failures (bad target, missing permissions) are not.
type PlatformError struct {
	Op        string
	Code      int
	Transient bool
	Err       error
}

func (e *PlatformError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("platform %s failed (code %d)", e.Op, e.Code)
	}
	return fmt.Sprintf("platform %s failed: %v", e.Op, e.Err)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}
