package provider

import "fmt"

// HostRequiredError is returned when an API is constructed without the host
// it operates on.
type HostRequiredError struct {
	Component string
}

func (e *HostRequiredError) Error() string {
	return fmt.Sprintf("%s requires a span host", e.Component)
}
