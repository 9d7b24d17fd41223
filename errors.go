package socmonitor

import "fmt"

// AuthError indicates the rig's unlock endpoint failed or the response
// lacked a token field.
type AuthError struct {
	Addr string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %s", e.Addr, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NoEndpointError indicates no known status path responded on the rig.
type NoEndpointError struct {
	Addr string
}

func (e *NoEndpointError) Error() string {
	return fmt.Sprintf("%s: no status endpoint found on rig", e.Addr)
}

// StatusError indicates a non-success, non-recoverable HTTP status from a
// status probe.
type StatusError struct {
	Addr string
	Path string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status request %s returned HTTP %d", e.Addr, e.Path, e.Code)
}

// CommandError indicates a start/stop command was rejected by the rig.
type CommandError struct {
	Addr string
	Path string
	Code int
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: command %s returned HTTP %d", e.Addr, e.Path, e.Code)
}

// TransportError wraps a network or timeout failure talking to a rig.
type TransportError struct {
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %s", e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError wraps a failed state-of-charge read from the telemetry
// provider.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("telemetry provider: %s", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
