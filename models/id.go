package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
)

// ID is an opaque backend identifier. The backend may hand out numeric ids or UUID
// strings; ID keeps whichever JSON form it arrived in so the value round-trips
// unchanged on the next call. Two IDs are equal when their token text is equal.
type ID struct {
	token   string
	numeric bool
}

var jsonNumber = regexp.MustCompile(`^-?(0|[1-9]\d*)(\.\d+)?([eE][+-]?\d+)?$`)

// IDFromToken builds an ID from text that did not come from a JSON payload, such as a
// URL query value. A token that is a bare JSON number literal is sent back as a number,
// which is the form the backend emits for numeric ids.
func IDFromToken(s string) ID {
	return ID{token: s, numeric: jsonNumber.MatchString(s)}
}

// String returns the token text.
func (id ID) String() string { return id.token }

// Equal compares token text, ignoring the wire form.
func (id ID) Equal(other ID) bool { return id.token == other.token }

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool { return id.token == "" }

// MarshalJSON writes the ID in its original wire form.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	if id.numeric {
		return []byte(id.token), nil
	}
	return json.Marshal(id.token)
}

// UnmarshalJSON accepts a JSON string, a JSON number or null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*id = ID{}
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID{token: s}
		return nil
	case jsonNumber.Match(b):
		*id = ID{token: string(b), numeric: true}
		return nil
	}
	return fmt.Errorf("models: id must be a string or number, got %s", b)
}
