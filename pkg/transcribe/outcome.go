package transcribe

import (
	"errors"
	"fmt"
	"time"
)

// Kind is the closed set of outcome variants.
type Kind string

const (
	KindSuccess             Kind = "success"
	KindEngineError         Kind = "engine_error"
	KindProtocolError       Kind = "protocol_error"
	KindInfrastructureError Kind = "infrastructure_error"
)

// Stable error codes reported to callers in the "error" field.
const (
	CodeEngineNotFound      = "engine_not_found"
	CodeSpawnFailed         = "spawn_failed"
	CodeNonZeroExit         = "engine_exit_nonzero"
	CodeNonJSONOutput       = "non_json_output"
	CodeSchemaMismatch      = "schema_mismatch"
	CodeTimeout             = "engine_timeout"
	CodeCanceled            = "engine_canceled"
	CodeOrchestrationFailed = "orchestration_failed"
)

// Outcome is the only value the transcription pipeline hands back to its
// caller. Which fields are set depends on Kind:
//
//	success              Payload
//	engine_error         Code (engine's own error value), Payload, Stderr
//	protocol_error       Code, Raw, Stderr, Detail (parse or validation error)
//	infrastructure_error Code, Detail, and ExitCode/Raw/Stderr when a process ran
type Outcome struct {
	Kind     Kind                   `json:"kind"`
	Code     string                 `json:"code,omitempty"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
	Raw      string                 `json:"raw,omitempty"`
	Stderr   string                 `json:"stderr,omitempty"`
	ExitCode int                    `json:"exit_code"`
	Detail   string                 `json:"detail,omitempty"`
	Duration time.Duration          `json:"duration"`
}

// OutcomeError is returned by Outcome.Err for every non-success outcome.
type OutcomeError struct {
	Kind   Kind
	Code   string
	Detail string
}

func (e *OutcomeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Code, e.Detail)
}

// Is lets callers match configuration failures with ErrEngineNotFound.
func (e *OutcomeError) Is(target error) bool {
	return target == ErrEngineNotFound && e.Code == CodeEngineNotFound
}

// Success reports whether the engine produced a usable transcript.
func (o *Outcome) Success() bool {
	return o != nil && o.Kind == KindSuccess
}

// Err converts a failed outcome into an error. Returns nil on success.
func (o *Outcome) Err() error {
	if o == nil {
		return errors.New("no outcome")
	}
	if o.Kind == KindSuccess {
		return nil
	}
	return &OutcomeError{Kind: o.Kind, Code: o.Code, Detail: o.Detail}
}

// Body renders the JSON object returned to clients.
func (o *Outcome) Body() map[string]interface{} {
	switch o.Kind {
	case KindSuccess:
		return copyPayload(o.Payload)
	case KindEngineError:
		body := copyPayload(o.Payload)
		body["stderr"] = o.Stderr
		return body
	case KindProtocolError:
		return map[string]interface{}{
			"error":      o.Code,
			"raw":        o.Raw,
			"stderr":     o.Stderr,
			"parseError": o.Detail,
		}
	}

	body := map[string]interface{}{"error": o.Code}
	switch o.Code {
	case CodeNonZeroExit:
		body["code"] = o.ExitCode
		body["stderr"] = o.Stderr
	case CodeTimeout, CodeCanceled:
		body["detail"] = o.Detail
		body["raw"] = o.Raw
		body["stderr"] = o.Stderr
	default:
		body["detail"] = o.Detail
	}
	return body
}

func copyPayload(payload map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	return out
}

func infrastructureOutcome(code, detail string) *Outcome {
	return &Outcome{
		Kind:     KindInfrastructureError,
		Code:     code,
		Detail:   detail,
		ExitCode: -1,
	}
}
