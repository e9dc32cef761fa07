package orders

import (
	"fmt"

	"github.com/neonverse/gamestore-api/internal/types"
)

// Order lifecycle statuses.
const (
	StatusPending       = "pending"
	StatusProcessing    = "processing"
	StatusCompleted     = "completed"
	StatusReceived      = "received"
	StatusCancelRequest = "cancel_request"
	StatusCancelled     = "cancelled"
)

// transitions is the single source of truth for legal status moves.
// Every handler validates against this table; none carry their own
// copy of the lifecycle.
//
//	pending    -> processing | cancel_request | cancelled
//	processing -> completed  | cancel_request | cancelled
//	cancel_request -> cancelled | processing (admin denies the request)
//	completed  -> received (buyer acknowledgement, settles the order)
//	received, cancelled: terminal
var transitions = map[string][]string{
	StatusPending:       {StatusProcessing, StatusCancelRequest, StatusCancelled},
	StatusProcessing:    {StatusCompleted, StatusCancelRequest, StatusCancelled},
	StatusCancelRequest: {StatusCancelled, StatusProcessing},
	StatusCompleted:     {StatusReceived},
	StatusReceived:      {},
	StatusCancelled:     {},
}

// IsTerminal reports whether no further transition is permitted.
func IsTerminal(status string) bool {
	return len(transitions[status]) == 0
}

// CanTransition reports whether the move is in the transition table.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrOrderFinal for moves out of a terminal
// status and ErrInvalidTransition for any other illegal move.
func ValidateTransition(from, to string) error {
	if IsTerminal(from) {
		return fmt.Errorf("%w: order is %s", types.ErrOrderFinal, from)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", types.ErrInvalidTransition, from, to)
	}
	return nil
}
