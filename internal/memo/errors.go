package memo

import (
	"errors"
	"fmt"
)

// DecodeError reports a log that cannot be decoded against the known event
// schema. It is terminal for that log: retrying the same bytes can never
// succeed, so callers record the failure and skip.
type DecodeError struct {
	Topic0 string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %s: %v", e.Topic0, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode %s: %s", e.Topic0, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err is (or wraps) a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

func decodeErrf(topic0, reason string, err error) *DecodeError {
	return &DecodeError{Topic0: topic0, Reason: reason, Err: err}
}
