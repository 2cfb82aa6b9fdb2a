package sdk

import "github.com/Alwanly/service-fleet-control/pkg/faults"

// Status is the flattened result code surfaced at the integration
// boundary. Callers only ever see these four values; the full error chain
// is logged, not returned.
type Status int

const (
	StatusOK Status = iota
	StatusInvalidArgument
	StatusUnauthorized
	StatusInternal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInvalidArgument:
		return "invalid_argument"
	case StatusUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// statusOf collapses the fault taxonomy onto the boundary codes. A missing
// referent is the caller's bad input, while conflicts and timeouts are
// transient server conditions the caller may retry.
func statusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	switch faults.KindOf(err) {
	case faults.KindInvalidArgument, faults.KindNotFound:
		return StatusInvalidArgument
	case faults.KindUnauthorized:
		return StatusUnauthorized
	default:
		return StatusInternal
	}
}
