package tracker

import (
	"errors"

	"hwbot/internal/homework"
	"hwbot/internal/notifier"
)

// Result is the terminal state of one cycle.
type Result int

const (
	ResultSuccess Result = iota
	ResultTransportFail
	ResultServerRefusal
	ResultMalformed
	ResultUnexpectedStatus
	ResultDeliveryFail
	// ResultFailed covers errors outside the known taxonomy.
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "SUCCESS"
	case ResultTransportFail:
		return "TRANSPORT_FAIL"
	case ResultServerRefusal:
		return "SERVER_REFUSAL"
	case ResultMalformed:
		return "MALFORMED"
	case ResultUnexpectedStatus:
		return "UNEXPECTED_STATUS"
	case ResultDeliveryFail:
		return "DELIVERY_FAIL"
	default:
		return "FAILED"
	}
}

// Outcome describes one finished cycle.
type Outcome struct {
	Result Result
	Err    error

	// Cursor is the cursor after the cycle.
	Cursor int64

	// Submission is the latest submission the poll returned, if any.
	Submission *homework.Submission
	Sent       bool
	Suppressed bool
}

func (o Outcome) OK() bool { return o.Result == ResultSuccess }

func classify(err error) Result {
	var de *notifier.DeliveryError
	if errors.As(err, &de) {
		return ResultDeliveryFail
	}
	switch homework.KindOf(err) {
	case homework.KindTransport:
		return ResultTransportFail
	case homework.KindServerRefusal:
		return ResultServerRefusal
	case homework.KindMalformed:
		return ResultMalformed
	case homework.KindUnexpectedStatus:
		return ResultUnexpectedStatus
	default:
		return ResultFailed
	}
}
