package mocks

import (
	"encoding/json"

	mock "github.com/stretchr/testify/mock"
)

// Respond returns a Run function that decodes payload into the out argument of a
// mocked Call (position 3) or Select (position 2).
func Respond(outIndex int, payload string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		out := args.Get(outIndex)
		if out == nil {
			return
		}
		if err := json.Unmarshal([]byte(payload), out); err != nil {
			panic(err)
		}
	}
}

// RespondCall is Respond for Gateway.Call.
func RespondCall(payload string) func(mock.Arguments) { return Respond(3, payload) }

// RespondSelect is Respond for Gateway.Select.
func RespondSelect(payload string) func(mock.Arguments) { return Respond(2, payload) }
