package order

import "fmt"

// Error is a user-facing order error: the message is safe to return to the
// client with a 4xx status.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func NewError(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// CanTransition reports whether the given actor may move an order from one
// status to another. The rules:
//
//   - admin: any forward move along the pipeline, any non-terminal → cancelled,
//     completed → returned;
//   - client_action: own non-terminal order → cancelled only;
//   - cron: new_order → cancelled (stale orders), shipped → completed (carrier
//     reported delivery);
//   - system: pipeline state before paid → paid (payment webhook).
func CanTransition(from, to Status, source ChangeSource) bool {
	if from == to {
		return false
	}

	switch source {
	case SourceAdmin:
		if to == StatusCancelled {
			return !from.IsTerminal()
		}
		if from == StatusCompleted && to == StatusReturned {
			return true
		}
		fromRank, fromOK := from.Rank()
		toRank, toOK := to.Rank()
		return fromOK && toOK && toRank > fromRank

	case SourceClient:
		return to == StatusCancelled && !from.IsTerminal()

	case SourceCron:
		return (from == StatusNewOrder && to == StatusCancelled) ||
			(from == StatusShipped && to == StatusCompleted)

	case SourceSystem:
		if to != StatusPaid {
			return false
		}
		fromRank, ok := from.Rank()
		if !ok {
			return false
		}
		paidRank, _ := StatusPaid.Rank()
		return fromRank < paidRank

	default:
		return false
	}
}

// GuardTransition is CanTransition with a client-facing error.
func GuardTransition(from, to Status, source ChangeSource) error {
	if !CanTransition(from, to, source) {
		return NewError("status transition from %s to %s is not allowed for %s", from, to, source)
	}
	return nil
}

// editableStatuses are the only states in which order items may be changed.
var editableStatuses = map[Status]bool{
	StatusNewOrder:   true,
	StatusProcessing: true,
}

func ItemsEditable(s Status) bool {
	return editableStatuses[s]
}
