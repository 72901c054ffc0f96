package radio

import (
	"errors"
	"fmt"
)

// Kind classifies unrecoverable radio errors. Short frames and probe
// mismatches are results, not errors.
type Kind int

const (
	KindTransport Kind = iota + 1
	KindModeControl
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindModeControl:
		return "mode control"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Error wraps a failure with its kind and the operation that hit it
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsKind reports whether err carries a radio Error of kind k
func IsKind(err error, k Kind) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == k
}
