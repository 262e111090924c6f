package agent

import (
	"bytes"
	"encoding/json"
	"errors"
)

var errInputNotObject = errors.New("tool input is not a JSON object")

// argBuffer accumulates the input_json fragments of one tool call. The
// document is only valid once the block closes, so nothing is parsed before
// Resolve.
type argBuffer struct {
	buf bytes.Buffer
}

func (a *argBuffer) Append(fragment string) {
	a.buf.WriteString(fragment)
}

// Resolve returns the compacted input object. An empty buffer is a call
// without arguments.
func (a *argBuffer) Resolve() (json.RawMessage, error) {
	raw := bytes.TrimSpace(a.buf.Bytes())
	if len(raw) == 0 {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid(raw) {
		var v any
		return nil, json.Unmarshal(raw, &v)
	}
	if raw[0] != '{' {
		return nil, errInputNotObject
	}

	var out bytes.Buffer
	if err := json.Compact(&out, raw); err != nil {
		return nil, err
	}
	return json.RawMessage(out.Bytes()), nil
}
