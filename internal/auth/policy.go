package auth

import (
	"fmt"

	"github.com/neonverse/gamestore-api/internal/types"
)

// Action identifies a guarded state-transition operation.
type Action string

const (
	ActionAdvanceOrder    Action = "order:advance"
	ActionCancelOrder     Action = "order:admin-cancel"
	ActionRequestCancel   Action = "order:request-cancel"
	ActionReceiveOrder    Action = "order:receive"
	ActionReviewGame      Action = "order:review"
	ActionApproveWithdraw Action = "wallet:approve-withdraw"
	ActionApproveTopup    Action = "wallet:approve-topup"
	ActionBanAccount      Action = "account:ban"
)

type rule struct {
	role      string
	ownership bool // actor must own the resource the action touches
}

// policy is the single authorization table consulted by every
// state-transition handler. Ownership means: the buyer on their own
// order, or the seller owning every game in the order.
var policy = map[Action]rule{
	ActionAdvanceOrder:    {role: types.RoleAdmin, ownership: true},
	ActionCancelOrder:     {role: types.RoleAdmin, ownership: true},
	ActionRequestCancel:   {role: types.RoleUser, ownership: true},
	ActionReceiveOrder:    {role: types.RoleUser, ownership: true},
	ActionReviewGame:      {role: types.RoleUser, ownership: true},
	ActionApproveWithdraw: {role: types.RoleSuperAdmin, ownership: false},
	ActionApproveTopup:    {role: types.RoleSuperAdmin, ownership: false},
	ActionBanAccount:      {role: types.RoleSuperAdmin, ownership: false},
}

// Authorize decides whether an actor with the given role and resource
// ownership may perform the action.
func Authorize(role string, owns bool, action Action) error {
	r, known := policy[action]
	if !known {
		return fmt.Errorf("%w: unknown action %s", types.ErrForbidden, action)
	}
	if role != r.role {
		return fmt.Errorf("%w: role %s may not perform %s", types.ErrForbidden, role, action)
	}
	if r.ownership && !owns {
		return fmt.Errorf("%w: actor does not own the resource for %s", types.ErrForbidden, action)
	}
	return nil
}
