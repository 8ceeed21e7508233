package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Envelope statuses.
const (
	EnvelopeSuccess = "success"
	EnvelopeError   = "error"
)

// Envelope is the response wrapper every remote collection is served in.
type Envelope struct {
	Data      json.RawMessage   `json:"data"`
	Status    string            `json:"status"`
	Message   string            `json:"message,omitempty"`
	Timestamp string            `json:"timestamp,omitempty"`
	Metadata  *EnvelopeMetadata `json:"metadata,omitempty"`
}

// EnvelopeMetadata carries optional paging information.
type EnvelopeMetadata struct {
	Total    *int  `json:"total,omitempty"`
	Page     *int  `json:"page,omitempty"`
	PageSize *int  `json:"pageSize,omitempty"`
	HasMore  *bool `json:"hasMore,omitempty"`
}

// Payload decodes the data field into generic JSON values.
// An absent or null data field yields nil.
func (e *Envelope) Payload() (interface{}, error) {
	if e == nil || len(e.Data) == 0 {
		return nil, nil
	}
	var raw interface{}
	if err := json.Unmarshal(e.Data, &raw); err != nil {
		return nil, fmt.Errorf("decode envelope data: %w", err)
	}
	return raw, nil
}

// DecodeEnvelope parses a response body. A bare JSON array is accepted as
// the data of a successful envelope.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return &Envelope{Status: EnvelopeSuccess, Data: json.RawMessage(trimmed)}, nil
	}
	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode response envelope: %w", err)
	}
	return &env, nil
}

// ErrSessionExpired is returned by authenticated transports once a token
// refresh has failed and the session was invalidated.
var ErrSessionExpired = errors.New("session expired")

// ErrBatchRejected marks a diagnostics write the collector refused outright.
// Resending the same batch cannot succeed.
var ErrBatchRejected = errors.New("diagnostics batch rejected")

// StatusError is returned by sources when the remote answers with a non-2xx status.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("remote returned status %s", e.Status)
	}
	return fmt.Sprintf("remote returned status %d", e.Code)
}

// Diagnostic is a failure event forwarded to the diagnostics sink.
type Diagnostic struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Kind       Kind      `json:"kind"`
	Class      string    `json:"class"`
	StatusCode int       `json:"status_code,omitempty"`
	Message    string    `json:"message"`
	Attempts   int       `json:"attempts"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
}
