package solver

import "fmt"

// ConfigError reports caller input that cannot form a session request. It is
// returned synchronously and no session is started.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// NegotiationError reports a failed session negotiation. Status is the HTTP
// status code, or 0 when the request never produced a response.
type NegotiationError struct {
	Status  int
	Message string
	Err     error
}

func (e *NegotiationError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("session negotiation failed: %s", e.Message)
	}
	return fmt.Sprintf("session negotiation failed (HTTP %d): %s", e.Status, e.Message)
}

func (e *NegotiationError) Unwrap() error { return e.Err }

// ProtocolError reports a solver response or frame that violates the wire
// contract.
type ProtocolError struct {
	Message string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Message, e.Err)
	}
	return "protocol error: " + e.Message
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ConnectionError reports a WebSocket transport failure. It is recorded in
// published state; the close that follows decides whether to reconnect.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("websocket connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// genericConnectionError is the published message for transport failures.
const genericConnectionError = "WebSocket connection error"
