package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// Decode strictly decodes a JSON content tree.
func Decode(data []byte) (RawTree, error) {
	var raw RawTree
	err := DecodeStrict(data, &raw)
	return raw, err
}

// DecodeStrict decodes a single JSON object into v, rejecting unknown fields and
// trailing data. Failures are reported as a *ValidationError.
func DecodeStrict(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return malformed(errors.New("empty request"))
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return malformed(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return malformed(errors.New("unexpected data after the request object"))
	}
	return nil
}

func malformed(err error) error {
	return &ValidationError{Problems: []Problem{{Reason: "malformed request: " + err.Error()}}}
}
