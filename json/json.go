// Package json implements the chat server's wire format and the on-disk
// token file.
//
// Decoding is strict: records the rest of the program could not use
// safely are rejected with an error wrapping converse.ErrValidation.
package json

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fwojciec/converse"
)

// zonelessLayout matches timestamps the server emits without an offset.
// They are interpreted as UTC.
const zonelessLayout = "2006-01-02T15:04:05.999999999"

// ParseTimestamp parses an RFC 3339 timestamp with or without a zone
// offset. Fractional seconds are optional.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(zonelessLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, converse.ErrValidation)
	}
	return t, nil
}

// timestamp decodes a wire timestamp. null and "" decode to the zero time.
type timestamp struct {
	time.Time
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", converse.ErrValidation)
	}
	if s == "" {
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// id decodes an opaque identifier sent either as a string or a number.
type id string

func (i *id) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*i = id(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", converse.ErrValidation)
	}
	*i = id(n.String())
	return nil
}

// decode unmarshals data into v, reporting syntax and type errors as
// validation failures.
func decode(what string, data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w: %w", what, converse.ErrValidation, err)
	}
	return nil
}
