package transcribe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Classifier turns an engine's exit status and captured streams into an Outcome.
// The zero value applies the plain protocol rules; NewClassifier adds an
// optional JSON Schema check on successful payloads.
type Classifier struct {
	schema *gojsonschema.Schema
}

// NewClassifier loads the response schema at schemaPath. An empty path
// disables schema validation.
func NewClassifier(schemaPath string) (*Classifier, error) {
	if schemaPath == "" {
		return &Classifier{}, nil
	}

	data, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read response schema: %w", err)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to compile response schema %s: %w", schemaPath, err)
	}

	return &Classifier{schema: schema}, nil
}

// Classify applies the protocol rules with no schema.
func Classify(exitCode int, stdout, stderr []byte) *Outcome {
	return (&Classifier{}).Classify(exitCode, stdout, stderr)
}

// Classify interprets one engine run. A nonzero exit with output is still
// parsed: the engine may have written its result before failing in cleanup.
func (c *Classifier) Classify(exitCode int, stdout, stderr []byte) *Outcome {
	out := string(stdout)
	diag := string(stderr)

	if exitCode != 0 && len(bytes.TrimSpace(stdout)) == 0 {
		return &Outcome{
			Kind:     KindInfrastructureError,
			Code:     CodeNonZeroExit,
			Stderr:   diag,
			ExitCode: exitCode,
			Detail:   fmt.Sprintf("engine exited with code %d and no output", exitCode),
		}
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(stdout, &payload); err != nil || payload == nil {
		detail := "engine output is not a JSON object"
		if err != nil {
			detail = err.Error()
		}
		return &Outcome{
			Kind:     KindProtocolError,
			Code:     CodeNonJSONOutput,
			Raw:      out,
			Stderr:   diag,
			ExitCode: exitCode,
			Detail:   detail,
		}
	}

	if errValue, ok := engineError(payload); ok {
		return &Outcome{
			Kind:     KindEngineError,
			Code:     errValue,
			Payload:  payload,
			Stderr:   diag,
			ExitCode: exitCode,
		}
	}

	if c.schema != nil {
		result, err := c.schema.Validate(gojsonschema.NewGoLoader(payload))
		if err != nil {
			return schemaMismatch(out, diag, exitCode, err.Error())
		}
		if !result.Valid() {
			var problems []string
			for _, e := range result.Errors() {
				problems = append(problems, e.String())
			}
			return schemaMismatch(out, diag, exitCode, strings.Join(problems, "; "))
		}
	}

	return &Outcome{
		Kind:     KindSuccess,
		Payload:  payload,
		Stderr:   diag,
		ExitCode: exitCode,
	}
}

func schemaMismatch(raw, stderr string, exitCode int, detail string) *Outcome {
	return &Outcome{
		Kind:     KindProtocolError,
		Code:     CodeSchemaMismatch,
		Raw:      raw,
		Stderr:   stderr,
		ExitCode: exitCode,
		Detail:   detail,
	}
}

// engineError reports the engine-declared error, using the engine's loose
// notion of "set": null, "", false and 0 all mean no error.
func engineError(payload map[string]interface{}) (string, bool) {
	v, ok := payload["error"]
	if !ok {
		return "", false
	}
	switch e := v.(type) {
	case nil:
		return "", false
	case string:
		return e, e != ""
	case bool:
		if !e {
			return "", false
		}
		return "true", true
	case float64:
		if e == 0 {
			return "", false
		}
		return fmt.Sprint(e), true
	default:
		b, _ := json.Marshal(e)
		return string(b), true
	}
}
