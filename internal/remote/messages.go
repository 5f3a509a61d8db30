// ABOUTME: Remote control message type definitions
// ABOUTME: Defines the JSON envelope, command names and reply payloads
package remote

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mictroll/mictroll-go/internal/app"
	"github.com/mictroll/mictroll-go/pkg/audio/device"
	"github.com/mictroll/mictroll-go/pkg/params"
	"github.com/mictroll/mictroll-go/pkg/session"
)

// Client to server commands
const (
	TypeSessionStart = "session/start"
	TypeSessionStop  = "session/stop"
	TypeParamsSet    = "params/set"
	TypeParamsReset  = "params/reset"
	TypeStatusGet    = "status/get"
)

// Server to client replies
const (
	TypeStatus = "status"
	TypeError  = "error"
)

// Error kinds
const (
	KindDeviceNotFound = "device_not_found"
	KindStreamOpen     = "stream_open"
	KindBadRequest     = "bad_request"
	KindUnavailable    = "unavailable"
	KindInternal       = "internal"
)

// Message is the top-level wrapper for all control messages
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage encodes payload into a message of the given type
func NewMessage(msgType string, payload interface{}) (Message, error) {
	msg := Message{Type: msgType}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return msg, fmt.Errorf("failed to encode %s payload: %w", msgType, err)
	}
	msg.Payload = data
	return msg, nil
}

// Decode unmarshals the payload into v
func (m Message) Decode(v interface{}) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", m.Type, err)
	}
	return nil
}

// Status reports the controller state to clients. Command names the
// request it answers and is empty on greetings and periodic pushes.
type Status struct {
	Command       string            `json:"command,omitempty"`
	State         string            `json:"state"`
	SessionID     string            `json:"session_id,omitempty"`
	SinkIndex     int               `json:"sink_index"`
	Params        params.Parameters `json:"params"`
	Stats         session.Stats     `json:"stats"`
	LastError     string            `json:"last_error,omitempty"`
	DeviceMissing bool              `json:"device_missing,omitempty"`
}

// NewStatus converts a controller status for the wire
func NewStatus(st app.Status) Status {
	out := Status{
		State:         st.State.String(),
		SessionID:     st.SessionID,
		SinkIndex:     st.SinkIndex,
		Params:        st.Params,
		Stats:         st.Stats,
		DeviceMissing: st.DeviceMissing,
	}
	if st.LastError != nil {
		out.LastError = st.LastError.Error()
	}
	return out
}

// ErrorReply describes a failed command
type ErrorReply struct {
	Kind       string `json:"kind"`
	Command    string `json:"command,omitempty"`
	Message    string `json:"message"`
	InstallURL string `json:"install_url,omitempty"`
}

func (e *ErrorReply) Error() string {
	if e.InstallURL != "" {
		return fmt.Sprintf("%s: %s (see %s)", e.Kind, e.Message, e.InstallURL)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// classify maps a controller error onto an error reply
func classify(command string, err error) *ErrorReply {
	reply := &ErrorReply{Kind: KindInternal, Command: command, Message: err.Error()}

	var nf *device.NotFoundError
	switch {
	case errors.As(err, &nf):
		reply.Kind = KindDeviceNotFound
		reply.InstallURL = nf.InstallURL
	case errors.Is(err, session.ErrStreamOpen):
		reply.Kind = KindStreamOpen
	case errors.Is(err, app.ErrControllerClosed):
		reply.Kind = KindUnavailable
	}
	return reply
}

func badRequest(command string, err error) *ErrorReply {
	return &ErrorReply{Kind: KindBadRequest, Command: command, Message: err.Error()}
}
