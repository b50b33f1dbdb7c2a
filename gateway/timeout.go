package gateway

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/lcm-policing/models"
)

// ResolutionTimeout bounds every resolution-mutating call.
const ResolutionTimeout = 12 * time.Second

// CallWithTimeout invokes name on g and fails with a timeout error if no answer arrives
// within d. The call runs on its own goroutine so that a gateway which ignores ctx still
// cannot hold the caller past the deadline; out is only written when the call answers
// in time.
func CallWithTimeout(ctx context.Context, g Gateway, d time.Duration, name string, args Args, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		raw json.RawMessage
		err error
	}
	done := make(chan result, 1)
	go func() {
		var raw json.RawMessage
		err := g.Call(ctx, name, args, &raw)
		done <- result{raw: raw, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return r.err
		}
		if out == nil || len(r.raw) == 0 {
			return nil
		}
		if raw, ok := out.(*json.RawMessage); ok {
			*raw = r.raw
			return nil
		}
		if err := json.Unmarshal(r.raw, out); err != nil {
			return &models.Error{Kind: models.KindRemote, Message: "unexpected response from " + name, Err: err}
		}
		return nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			zap.S().Warnw("remote call timeout", "name", name, "timeout", d)
			return &models.Error{Kind: models.KindTimeout, Message: "The backend did not respond in time.", Err: ctx.Err()}
		}
		return &models.Error{Kind: models.KindRemote, Message: "call cancelled", Err: ctx.Err()}
	}
}
